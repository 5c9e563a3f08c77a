package voteprocessor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/store"
)

func openStore(t *testing.T) (*store.Store, bigint.U256) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	cfg := network.Test()
	_, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	var openHash bigint.U256
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		_, openHash, e = ledger.InitGenesis(w, cfg, priv)
		return e
	}))
	return s, openHash
}

func TestGenerateThenValidateSameSequenceIsReplay(t *testing.T) {
	s, openHash := openStore(t)
	rep, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)

	gen, err := NewGenerator(s)
	require.NoError(t, err)
	sv, err := gen.Generate(rep, priv, openHash)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sv.Sequence)

	var outcome Outcome
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		outcome, _, e = Validate(w, rep, openHash, sv.Sequence, sv.Signature)
		return e
	}))
	require.Equal(t, Replay, outcome) // we just persisted this exact sequence ourselves
}

func TestValidateRejectsBadSignature(t *testing.T) {
	s, openHash := openStore(t)
	rep, _, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	var garbage bigint.U512
	garbage[0] = 1

	var outcome Outcome
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		outcome, _, e = Validate(w, rep, openHash, 0, garbage)
		return e
	}))
	require.Equal(t, Invalid, outcome)
}

func TestValidateRejectsReplay(t *testing.T) {
	s, openHash := openStore(t)
	rep, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)

	digest := signedDigest(openHash, 5)
	sig := crypto25519.Sign(priv, digest[:])

	var outcome Outcome
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		outcome, _, e = Validate(w, rep, openHash, 5, sig)
		return e
	}))
	require.Equal(t, Vote, outcome)

	// a second vote at the same or lower sequence is a replay.
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		outcome, _, e = Validate(w, rep, openHash, 5, sig)
		return e
	}))
	require.Equal(t, Replay, outcome)
}

func TestProcessorRoutesFreshVoteToElection(t *testing.T) {
	s, openHash := openStore(t)
	weights := ledger.StoreWeights{Store: s}
	mgr := election.NewManager(weights, bigint.U128FromUint64(1), nil)

	var acct bigint.U256
	acct[31] = 7
	seed := &block.Open{Source: acct, Representative: acct, Account: acct}
	mgr.Start(seed.Account, seed)

	proc := New(s, mgr)
	rep, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	digest := signedDigest(seed.Hash(), 1)
	sig := crypto25519.Sign(priv, digest[:])

	outcome, err := proc.HandleIncoming(rep, 1, sig, seed)
	require.NoError(t, err)
	require.Equal(t, Vote, outcome)
	_ = openHash
}
