package node

import (
	"context"
	"sync"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/peer"
	"github.com/tos-network/ralite/internal/store"
	"github.com/tos-network/ralite/internal/wire"
)

// System wires a handful of Nodes together in-process, the same role
// the original's `paper::system` harness plays for its own test suite:
// a shared genesis, an in-memory fabric routing each node's outbound
// gossip straight into its peers' HandleInbound, and no sockets.
type System struct {
	Nodes       []*Node
	GenesisPub  bigint.U256
	GenesisPriv [64]byte
	OpenHash    bigint.U256

	mu     sync.Mutex
	byAddr map[peer.Endpoint]*Node
}

// NewSystem builds n nodes sharing one genesis account, each one's
// Sender wired to deliver straight into the fabric rather than a
// socket.
func NewSystem(n int, cfg network.Config) (*System, error) {
	_, genesisPriv, err := crypto25519.GenerateKey()
	if err != nil {
		return nil, err
	}

	sys := &System{byAddr: make(map[peer.Endpoint]*Node), GenesisPriv: genesisPriv}
	for i := 0; i < n; i++ {
		s, err := store.OpenMemory()
		if err != nil {
			return nil, err
		}
		var genesisPub, openHash bigint.U256
		if err := s.Update(func(w store.Writer) error {
			var e error
			genesisPub, openHash, e = ledger.InitGenesis(w, cfg, genesisPriv)
			return e
		}); err != nil {
			return nil, err
		}
		sys.GenesisPub, sys.OpenHash = genesisPub, openHash

		self := systemEndpoint(i)
		nd, err := New(s, cfg, &fabricSender{sys: sys, from: self}, self)
		if err != nil {
			return nil, err
		}
		sys.Nodes = append(sys.Nodes, nd)
		sys.byAddr[self] = nd
	}
	return sys, nil
}

func systemEndpoint(i int) peer.Endpoint {
	var ep peer.Endpoint
	ep.IP[10], ep.IP[11] = 0xff, 0xff
	ep.IP[12], ep.IP[13], ep.IP[14], ep.IP[15] = 10, 0, 0, byte(i+1)
	ep.Port = 7075
	return ep
}

// Connect inserts every node's endpoint into every other node's peer
// table, the in-process equivalent of the original harness's nodes all
// sharing one io_service and discovering each other via keepalive.
func (sys *System) Connect() {
	for i, a := range sys.Nodes {
		for j := range sys.Nodes {
			if i == j {
				continue
			}
			a.Peers.Insert(systemEndpoint(j), 18)
		}
	}
}

// Run starts every node's processor loop and periodic timers until ctx
// is cancelled.
func (sys *System) Run(ctx context.Context) {
	for _, n := range sys.Nodes {
		go n.Run(ctx)
	}
}

// Flush blocks until every node's block processor queue has drained.
func (sys *System) Flush() {
	for _, n := range sys.Nodes {
		n.Processor.Flush()
	}
}

// fabricSender delivers a Send call directly into the addressed node's
// HandleInbound, standing in for the UDP socket a real node would use.
type fabricSender struct {
	sys  *System
	from peer.Endpoint
}

func (f *fabricSender) Send(ep peer.Endpoint, h wire.Header, payload []byte) error {
	f.sys.mu.Lock()
	target, ok := f.sys.byAddr[ep]
	f.sys.mu.Unlock()
	if !ok {
		return nil
	}
	return target.HandleInbound(f.from, h, payload)
}
