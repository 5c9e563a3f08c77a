package election

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

type fakeWeights struct {
	w     map[bigint.U256]bigint.U128
	total bigint.U128
}

func (f *fakeWeights) Weight(account bigint.U256) (bigint.U128, error) {
	return f.w[account], nil
}

func (f *fakeWeights) TotalWeight() (bigint.U128, error) {
	return f.total, nil
}

func seedBlock(rootByte byte) *block.Open {
	var acct bigint.U256
	acct[31] = rootByte
	return &block.Open{Source: acct, Representative: acct, Account: acct}
}

func TestManagerSingleElectionPerRoot(t *testing.T) {
	weights := &fakeWeights{w: map[bigint.U256]bigint.U128{}, total: bigint.U128FromUint64(100)}
	m := NewManager(weights, bigint.U128FromUint64(1), nil)

	seed := seedBlock(1)
	root := seed.Account
	el1 := m.Start(root, seed)
	el2 := m.Start(root, seedBlock(2))
	require.Same(t, el1, el2)
	require.Equal(t, 1, m.Len())
}

func TestManagerVoteConfirmsAndRemoves(t *testing.T) {
	var rep1, rep2 bigint.U256
	rep1[31] = 0xA1
	rep2[31] = 0xA2
	weights := &fakeWeights{
		w: map[bigint.U256]bigint.U128{
			rep1: bigint.U128FromUint64(60),
			rep2: bigint.U128FromUint64(40),
		},
		total: bigint.U128FromUint64(100),
	}
	var confirmedRoot bigint.U256
	var confirmedWinner block.Block
	calls := 0
	m := NewManager(weights, bigint.U128FromUint64(1), func(root bigint.U256, winner block.Block) {
		calls++
		confirmedRoot = root
		confirmedWinner = winner
	})

	seed := seedBlock(9)
	root := seed.Account
	m.Start(root, seed)

	status, err := m.Vote(root, Vote{Account: rep1, Block: seed})
	require.NoError(t, err)
	require.Equal(t, Confirmed, status) // 60/100 already clears half+1

	require.Equal(t, 1, calls)
	require.Equal(t, root, confirmedRoot)
	require.Equal(t, seed.Hash(), confirmedWinner.Hash())
	require.False(t, m.Active(root))
}

func TestManagerVoteUnknownRoot(t *testing.T) {
	weights := &fakeWeights{w: map[bigint.U256]bigint.U128{}, total: bigint.U128FromUint64(10)}
	m := NewManager(weights, bigint.U128FromUint64(1), nil)
	var root bigint.U256
	_, err := m.Vote(root, Vote{})
	require.Error(t, err)
}

func TestManagerAnnouncementRoundOrdersByRootAndConfirmsAfterFour(t *testing.T) {
	weights := &fakeWeights{w: map[bigint.U256]bigint.U128{}, total: bigint.U128FromUint64(100)}
	confirmed := map[bigint.U256]bool{}
	m := NewManager(weights, bigint.U128FromUint64(1000), func(root bigint.U256, _ block.Block) {
		confirmed[root] = true
	})

	a := seedBlock(1)
	b := seedBlock(2)
	m.Start(a.Account, a)
	m.Start(b.Account, b)

	for i := 0; i < 3; i++ {
		items := m.AnnouncementRound()
		require.Len(t, items, 2)
		require.True(t, lessU256(items[0].Root, items[1].Root))
	}
	// fourth round confirms both (no quorum reached, all-stale rule).
	items := m.AnnouncementRound()
	require.Empty(t, items)
	require.Equal(t, 0, m.Len())
	require.True(t, confirmed[a.Account])
	require.True(t, confirmed[b.Account])
}
