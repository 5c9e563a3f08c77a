// Package node wires every subsystem — store, ledger, active elections,
// block and vote processors, peer set, gossip, and bootstrap — into one
// running core (spec §2, §5). Nothing here parses a config file or opens
// a listening socket: that belongs to the external entry point spec.md
// §1 scopes out of this repository; Node consumes an already-open store
// and an already-constructed gossip.Sender.
package node

import (
	"context"
	"log/slog"
	"time"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/blockprocessor"
	"github.com/tos-network/ralite/internal/bootstrap"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/gapcache"
	"github.com/tos-network/ralite/internal/gossip"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/log"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/peer"
	"github.com/tos-network/ralite/internal/store"
	"github.com/tos-network/ralite/internal/voteprocessor"
	"github.com/tos-network/ralite/internal/wire"
)

// Node bundles one running core's subsystems.
type Node struct {
	Store     *store.Store
	Elections *election.Manager
	Processor *blockprocessor.Processor
	Votes     *voteprocessor.Processor
	VoteGen   *voteprocessor.Generator
	Peers     *peer.Set
	Gossip    *gossip.Gossip
	Bootstrap *bootstrap.Server

	cfg network.Config
	log *slog.Logger
}

// New assembles a Node around an already-open store. self is this
// node's own endpoint, excluded from its own peer table; sender is the
// transport gossip fans outbound traffic across.
func New(s *store.Store, cfg network.Config, sender gossip.Sender, self peer.Endpoint) (*Node, error) {
	n := &Node{
		Store: s,
		cfg:   cfg,
		log:   log.New("module", "node"),
	}

	weights := ledger.StoreWeights{Store: s}
	n.Elections = election.NewManager(weights, bigint.U128(cfg.QuorumMinimumWeight), n.onConfirm)
	n.Processor = blockprocessor.New(s, n.Elections, gapcache.New(), 0)
	n.Votes = voteprocessor.New(s, n.Elections)

	gen, err := voteprocessor.NewGenerator(s)
	if err != nil {
		return nil, err
	}
	n.VoteGen = gen

	n.Peers = peer.New(self, cfg.KeepaliveInterval)
	n.Gossip = gossip.New(n.Peers, sender, cfg)
	n.Bootstrap = bootstrap.NewServer(s, n.Processor)

	n.Processor.Subscribe(n.onApplied)
	return n, nil
}

// Run drives the block processor's consumer loop and the three periodic
// timers spec.md §4.13/§5 describe — election announcement, keepalive,
// and peer purge — until ctx is cancelled.
func (n *Node) Run(ctx context.Context) {
	go n.Processor.Run(ctx)

	announce := time.NewTicker(n.cfg.ElectionAnnounceInterval)
	keepalive := time.NewTicker(n.cfg.KeepaliveInterval)
	purge := time.NewTicker(n.cfg.PeerCutoff)
	defer announce.Stop()
	defer keepalive.Stop()
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-announce.C:
			for _, a := range n.Elections.AnnouncementRound() {
				n.Gossip.RebroadcastConfirmed(a.Winner)
			}
		case now := <-keepalive.C:
			n.Gossip.Keepalive(now)
		case now := <-purge.C:
			if evicted := n.Gossip.Purge(now); evicted > 0 {
				n.log.Debug("purged stale peers", "count", evicted)
			}
		}
	}
}

// onApplied fans a freshly landed live block out to the peer sample
// (spec §4.11's "publication fans out to list_sqrt() peers").
func (n *Node) onApplied(b block.Block, live bool) {
	if live {
		n.Gossip.Publish(b)
	}
}

// onConfirm is the active elections manager's ConfirmFunc: winner may
// differ from whatever the ledger currently holds for root, so it is
// re-enqueued with force=true to roll the ledger back to the fork point
// and reapply it, then rebroadcast as newly confirmed (spec §4.6, §4.11).
func (n *Node) onConfirm(root bigint.U256, winner block.Block) {
	n.log.Info("election confirmed", "root", root, "winner", winner.Hash())
	n.Processor.Enqueue(winner, true, true)
	n.Gossip.RebroadcastConfirmed(winner)
}

// HandleInbound dispatches one decoded UDP message from an already-
// identified peer (spec §2: "publish/confirm_req ⇒ block processor;
// confirm_ack ⇒ vote processor; keepalive ⇒ peer set").
func (n *Node) HandleInbound(from peer.Endpoint, h wire.Header, body []byte) error {
	n.Peers.Contacted(from, h.VersionUsing, time.Now())

	switch h.Type {
	case wire.TypePublish, wire.TypeConfirmReq:
		b, err := wire.DecodeBlockMessage(h, body)
		if err != nil {
			return err
		}
		n.Processor.Enqueue(b, false, true)
		return nil
	case wire.TypeConfirmAck:
		ack, err := wire.DecodeConfirmAck(h, body)
		if err != nil {
			return err
		}
		_, err = n.Votes.HandleIncoming(ack.Account, ack.Sequence, ack.Signature, ack.Block)
		return err
	case wire.TypeKeepalive:
		k, err := wire.DecodeKeepalive(body)
		if err != nil {
			return err
		}
		for _, ep := range k.Peers {
			if ep == (wire.Endpoint{}) {
				continue
			}
			n.Peers.Insert(peer.Endpoint{IP: ep.IP, Port: ep.Port}, h.VersionUsing)
		}
		return nil
	default:
		n.log.Debug("unhandled message type", "type", h.Type)
		return nil
	}
}
