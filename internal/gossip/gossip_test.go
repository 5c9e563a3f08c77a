package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/peer"
	"github.com/tos-network/ralite/internal/wire"
)

type recordingSender struct {
	sent []peer.Endpoint
}

func (r *recordingSender) Send(ep peer.Endpoint, _ wire.Header, _ []byte) error {
	r.sent = append(r.sent, ep)
	return nil
}

func mappedEndpoint(last byte) peer.Endpoint {
	var ep peer.Endpoint
	ep.IP[10], ep.IP[11] = 0xff, 0xff
	ep.IP[12], ep.IP[13], ep.IP[14], ep.IP[15] = 10, 0, 0, last
	ep.Port = 7075
	return ep
}

func TestPublishFansOutToSqrtSample(t *testing.T) {
	self := mappedEndpoint(0)
	peers := peer.New(self, time.Minute)
	for i := byte(1); i <= 9; i++ {
		peers.Insert(mappedEndpoint(i), 18)
	}
	sender := &recordingSender{}
	g := New(peers, sender, network.Test())

	send := &block.Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}}
	g.Publish(send)
	require.Len(t, sender.sent, 3) // ceil(sqrt(9)) == 3
}

func TestRebroadcastConfirmedIncludesTopRepsWithoutDuplicates(t *testing.T) {
	self := mappedEndpoint(0)
	peers := peer.New(self, time.Minute)
	repEp := mappedEndpoint(50)
	peers.Insert(repEp, 18)
	peers.SetRepWeight(repEp, bigint.U256{1}, bigint.U128FromUint64(100))

	sender := &recordingSender{}
	g := New(peers, sender, network.Test())
	send := &block.Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}}
	g.RebroadcastConfirmed(send)

	count := 0
	for _, ep := range sender.sent {
		if ep == repEp {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestKeepaliveRespectsReachoutGuard(t *testing.T) {
	self := mappedEndpoint(0)
	peers := peer.New(self, time.Hour)
	other := mappedEndpoint(1)
	peers.Insert(other, 18)

	sender := &recordingSender{}
	g := New(peers, sender, network.Test())
	now := time.Now()
	g.Keepalive(now)
	require.Len(t, sender.sent, 1)

	g.Keepalive(now.Add(time.Millisecond))
	require.Len(t, sender.sent, 1) // guarded: no repeat within reachoutTTL
}

func TestPurgeUsesFivePeriods(t *testing.T) {
	cfg := network.Test()
	self := mappedEndpoint(0)
	peers := peer.New(self, time.Minute)
	stale := mappedEndpoint(1)
	peers.Contacted(stale, 18, time.Now().Add(-6*cfg.KeepaliveInterval))

	sender := &recordingSender{}
	g := New(peers, sender, cfg)
	removed := g.Purge(time.Now())
	require.Equal(t, 1, removed)
}
