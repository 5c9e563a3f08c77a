// Package gossip implements block and vote fan-out over the peer set
// (spec §4.11): publication reaches a sqrt-sized random sample,
// rebroadcast of newly confirmed or received blocks additionally
// targets the current top representatives, and keepalives are sent
// and stale peers purged on a fixed period.
package gossip

import (
	"time"

	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/peer"
	"github.com/tos-network/ralite/internal/wire"
)

// protocolVersion values populate every outgoing header; the node
// understands down to minProtocolVersion.
const (
	protocolVersion    = 18
	minProtocolVersion = 17
)

// topRepresentatives bounds how many additional peers a confirmed- or
// received-block rebroadcast targets beyond the sqrt sample (spec
// §4.11).
const topRepresentatives = 8

// Sender abstracts the UDP transport: Gossip never touches a socket
// directly.
type Sender interface {
	Send(ep peer.Endpoint, header wire.Header, payload []byte) error
}

// Gossip fans outbound messages out across the peer set.
type Gossip struct {
	peers  *peer.Set
	sender Sender
	cfg    network.Config
}

func New(peers *peer.Set, sender Sender, cfg network.Config) *Gossip {
	return &Gossip{peers: peers, sender: sender, cfg: cfg}
}

func (g *Gossip) header(typ wire.Type) wire.Header {
	return wire.Header{
		Tag:          g.cfg.Tag,
		VersionMax:   protocolVersion,
		VersionUsing: protocolVersion,
		VersionMin:   minProtocolVersion,
		Type:         typ,
	}
}

// Publish fans b out to a sqrt-sized random peer sample (spec §4.11).
func (g *Gossip) Publish(b block.Block) {
	h, body := wire.EncodeBlockMessage(g.header(wire.TypePublish), b)
	for _, ep := range g.peers.ListSqrt() {
		_ = g.sender.Send(ep, h, body)
	}
}

// RebroadcastConfirmed sends a confirm_req for b to the sqrt sample
// plus the current top representatives, the extra reach a newly
// confirmed or newly received block gets (spec §4.11).
func (g *Gossip) RebroadcastConfirmed(b block.Block) {
	h, body := wire.EncodeBlockMessage(g.header(wire.TypeConfirmReq), b)
	seen := make(map[peer.Endpoint]struct{})
	for _, ep := range g.peers.ListSqrt() {
		seen[ep] = struct{}{}
		_ = g.sender.Send(ep, h, body)
	}
	for _, rep := range g.peers.Representatives(topRepresentatives) {
		if _, ok := seen[rep.Endpoint]; ok {
			continue
		}
		_ = g.sender.Send(rep.Endpoint, h, body)
	}
}

// Keepalive samples up to 8 random peers and sends each of them a
// keepalive carrying that sample, skipping any peer the reachout guard
// reports was already sent one within its period (spec §4.10, §4.11).
func (g *Gossip) Keepalive(now time.Time) {
	var sample wire.Keepalive
	var eps [8]peer.Endpoint
	n := g.peers.RandomFill(eps[:])
	for i := 0; i < n; i++ {
		sample.Peers[i] = wire.Endpoint{IP: eps[i].IP, Port: eps[i].Port}
	}
	body := wire.EncodeKeepalive(sample)
	h := g.header(wire.TypeKeepalive)
	for i := 0; i < n; i++ {
		ep := eps[i]
		if !g.peers.Reachout(ep, now) {
			continue
		}
		_ = g.sender.Send(ep, h, body)
	}
}

// Purge drops peers silent for 5x the keepalive period (spec §4.11).
func (g *Gossip) Purge(now time.Time) int {
	return g.peers.Purge(now.Add(-5 * g.cfg.KeepaliveInterval))
}
