package bootstrap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/blockprocessor"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/gapcache"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/store"
)

// pipeDialer serves every dial attempt over a fresh in-memory net.Pipe,
// one connection per bootstrap phase, mirroring the real one-connection-
// per-request shape without opening a socket.
type pipeDialer struct{ srv *Server }

func (d pipeDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.srv.Serve(server)
	return client, nil
}

// newHarness seeds a fresh store with genesisPriv's genesis account, the
// same way every node in a real network starts from the identical,
// network-defined genesis rather than a locally generated one.
func newHarness(t *testing.T, genesisPriv [64]byte) (*store.Store, *blockprocessor.Processor, bigint.U256, bigint.U256, network.Config) {
	t.Helper()
	cfg := network.Test()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	var genesisPub, openHash bigint.U256
	require.NoError(t, s.Update(func(w store.Writer) error {
		var e error
		genesisPub, openHash, e = ledger.InitGenesis(w, cfg, genesisPriv)
		return e
	}))
	weights := ledger.StoreWeights{Store: s}
	mgr := election.NewManager(weights, bigint.U128FromUint64(1), nil)
	proc := blockprocessor.New(s, mgr, gapcache.New(), 0)
	return s, proc, genesisPub, openHash, cfg
}

func TestBootstrapPullConvergesClientToServer(t *testing.T) {
	_, genesisPriv, err := crypto25519.GenerateKey()
	require.NoError(t, err)

	serverStore, serverProc, genesisPub, openHash, cfg := newHarness(t, genesisPriv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverProc.Run(ctx)

	_, privA, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pubA := crypto25519.PublicFromPrivate(privA)

	send := &block.Send{Previous_: openHash, Destination: pubA, Balance: bigint.U128FromUint64(10)}
	send.Signature = block.Sign(send, genesisPriv)
	serverProc.Enqueue(send, false, true)
	serverProc.Flush()

	srv := NewServer(serverStore, serverProc)

	clientStore, clientProc, _, _, _ := newHarness(t, genesisPriv)
	go clientProc.Run(ctx)

	attempt := NewAttempt(clientStore, clientProc, pipeDialer{srv}, cfg)
	require.NoError(t, attempt.Run(ctx, "test"))

	require.Eventually(t, func() bool {
		clientProc.Flush()
		var clientHead bigint.U256
		require.NoError(t, clientStore.View(func(r store.Reader) error {
			info, ok, err := store.AccountGet(r, genesisPub)
			if err != nil || !ok {
				return err
			}
			clientHead = info.Head
			return nil
		}))
		return clientHead == send.Hash()
	}, time.Second, time.Millisecond)
}

// TestBootstrapPushSendsLocalOnlyAccountToPeer gives the client an
// account the server has never heard of (its genesis is untouched on
// both sides, so the frontier scan agrees on it and only the unknown
// account is marked unsynced). The pushed open block references a
// source the server doesn't have either, so the deterministic, checkable
// outcome is that it lands in the server's unchecked table rather than
// silently vanishing.
func TestBootstrapPushSendsLocalOnlyAccountToPeer(t *testing.T) {
	_, genesisPriv, err := crypto25519.GenerateKey()
	require.NoError(t, err)

	serverStore, serverProc, _, _, cfg := newHarness(t, genesisPriv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverProc.Run(ctx)
	srv := NewServer(serverStore, serverProc)

	clientStore, clientProc, _, _, _ := newHarness(t, genesisPriv)
	go clientProc.Run(ctx)

	_, priv2, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	pub2 := crypto25519.PublicFromPrivate(priv2)
	missingSource := bigint.U256{9}
	open := &block.Open{Source: missingSource, Representative: pub2, Account: pub2}
	open.Signature = block.Sign(open, priv2)

	require.NoError(t, clientStore.Update(func(w store.Writer) error {
		if err := store.BlockPut(w, open, bigint.U256{}); err != nil {
			return err
		}
		return store.AccountPut(w, pub2, store.AccountInfo{
			Head: open.Hash(), OpenBlock: open.Hash(), BlockCount: 1,
		})
	}))

	attempt := NewAttempt(clientStore, clientProc, pipeDialer{srv}, cfg)
	require.NoError(t, attempt.Run(ctx, "test"))

	require.Eventually(t, func() bool {
		serverProc.Flush()
		var waiters []block.Block
		require.NoError(t, serverStore.View(func(r store.Reader) error {
			var err error
			waiters, err = store.UncheckedGet(r, missingSource)
			return err
		}))
		for _, w := range waiters {
			if w.Hash() == open.Hash() {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}
