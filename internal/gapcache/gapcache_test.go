package gapcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
)

func TestObserveAndVote(t *testing.T) {
	c := New()
	pred := bigint.U256{1}
	rep := bigint.U256{2}
	c.Observe(pred, time.Now())
	require.Equal(t, 1, c.Vote(pred, rep))
	require.Equal(t, 1, c.Vote(pred, rep)) // same rep, no growth
	require.ElementsMatch(t, []bigint.U256{rep}, c.Voters(pred))
}

func TestOverflowEvictsOldest(t *testing.T) {
	c := New()
	base := time.Now()
	for i := 0; i < MaxEntries+10; i++ {
		var h bigint.U256
		h[31] = byte(i)
		h[30] = byte(i >> 8)
		c.Observe(h, base.Add(time.Duration(i)*time.Millisecond))
	}
	require.Equal(t, MaxEntries, c.Len())
}

func TestQuorumReached(t *testing.T) {
	online := bigint.U128FromUint64(160)
	require.True(t, QuorumReached(bigint.U128FromUint64(10), online, 1, 16))
	require.False(t, QuorumReached(bigint.U128FromUint64(9), online, 1, 16))
}
