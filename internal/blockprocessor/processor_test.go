package blockprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/gapcache"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/store"
)

func newTestHarness(t *testing.T) (*store.Store, *Processor, *election.Manager, bigint.U256, [64]byte, bigint.U256) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	cfg := network.Test()
	_, genesisPriv, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	var genesisPub, openHash bigint.U256
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		genesisPub, openHash, e = ledger.InitGenesis(w, cfg, genesisPriv)
		return e
	}))

	weights := ledger.StoreWeights{Store: s}
	mgr := election.NewManager(weights, bigint.U128FromUint64(1), nil)
	gaps := gapcache.New()
	proc := New(s, mgr, gaps, 0)
	return s, proc, mgr, genesisPub, genesisPriv, openHash
}

func runProcessor(t *testing.T, proc *Processor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go proc.Run(ctx)
	return cancel
}

func TestProcessorAppliesProgressAndStartsElection(t *testing.T) {
	s, proc, mgr, _, genesisPriv, openHash := newTestHarness(t)
	cancel := runProcessor(t, proc)
	defer cancel()

	var mu sync.Mutex
	var notified []bigint.U256
	proc.Subscribe(func(b block.Block, live bool) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, b.Hash())
		require.True(t, live)
	})

	_, privA, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pubA := crypto25519.PublicFromPrivate(privA)

	var maxBal bigint.U128
	for i := range maxBal {
		maxBal[i] = 0xff
	}
	newBal, _ := maxBal.Sub(bigint.U128FromUint64(100))
	send := &block.Send{Previous_: openHash, Destination: pubA, Balance: newBal}
	send.Signature = block.Sign(send, genesisPriv)

	proc.Enqueue(send, false, true)
	proc.Flush()

	mu.Lock()
	require.Equal(t, []bigint.U256{send.Hash()}, notified)
	mu.Unlock()

	require.NoError(t, s.View(func(r store.Reader) error {
		exists, err := store.BlockExists(r, send.Hash())
		require.NoError(t, err)
		require.True(t, exists)
		return nil
	}))
	require.True(t, mgr.Active(send.Root()))
}

func TestProcessorStashesGapAndReplaysOnArrival(t *testing.T) {
	_, proc, _, _, genesisPriv, openHash := newTestHarness(t)
	cancel := runProcessor(t, proc)
	defer cancel()

	var mu sync.Mutex
	var notified []bigint.U256
	proc.Subscribe(func(b block.Block, live bool) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, b.Hash())
	})

	_, privA, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pubA := crypto25519.PublicFromPrivate(privA)

	send1 := &block.Send{Previous_: openHash, Destination: pubA, Balance: bigint.U128FromUint64(10)}
	send1.Signature = block.Sign(send1, genesisPriv)
	send2 := &block.Send{Previous_: send1.Hash(), Destination: pubA, Balance: bigint.U128FromUint64(5)}
	send2.Signature = block.Sign(send2, genesisPriv)

	// send2 arrives first, referencing a previous block nobody has seen yet.
	proc.Enqueue(send2, false, true)
	proc.Flush()

	mu.Lock()
	require.Empty(t, notified)
	mu.Unlock()

	// send1 lands; send2 should be replayed out of unchecked automatically.
	proc.Enqueue(send1, false, true)
	require.Eventually(t, func() bool {
		proc.Flush()
		mu.Lock()
		defer mu.Unlock()
		return len(notified) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.ElementsMatch(t, []bigint.U256{send1.Hash(), send2.Hash()}, notified)
	mu.Unlock()
}

func TestProcessorForkWithoutForceStartsElection(t *testing.T) {
	_, proc, mgr, _, genesisPriv, openHash := newTestHarness(t)
	cancel := runProcessor(t, proc)
	defer cancel()

	_, privB, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pubB := crypto25519.PublicFromPrivate(privB)
	_, privC, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pubC := crypto25519.PublicFromPrivate(privC)

	send1 := &block.Send{Previous_: openHash, Destination: pubB, Balance: bigint.U128FromUint64(50)}
	send1.Signature = block.Sign(send1, genesisPriv)
	send2 := &block.Send{Previous_: openHash, Destination: pubC, Balance: bigint.U128FromUint64(40)}
	send2.Signature = block.Sign(send2, genesisPriv)

	proc.Enqueue(send1, false, true)
	proc.Flush()
	proc.Enqueue(send2, false, false)
	proc.Flush()

	require.True(t, mgr.Active(openHash))
}
