package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/network"
)

func baseHeader(t Type) Header {
	return Header{Tag: network.TagTest, VersionMax: 18, VersionUsing: 18, VersionMin: 1, Type: t}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := baseHeader(TypePublish).WithBlockVariant(block.KindSend)
	enc := EncodeHeader(h)
	require.Len(t, enc, HeaderSize)

	dec, err := DecodeHeader(enc)
	require.NoError(t, err)
	require.Equal(t, h, dec)
	require.Equal(t, block.KindSend, dec.BlockVariant())
}

func TestKeepaliveRoundTrip(t *testing.T) {
	var k Keepalive
	k.Peers[0] = Endpoint{Port: 7075}
	k.Peers[0].IP[15] = 1
	enc := EncodeKeepalive(k)
	dec, err := DecodeKeepalive(enc)
	require.NoError(t, err)
	require.Equal(t, k, dec)
}

func TestBlockMessageRoundTrip(t *testing.T) {
	send := &block.Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}, Balance: bigint.U128{3}}
	_, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	send.Signature = block.Sign(send, priv)

	h, body := EncodeBlockMessage(baseHeader(TypeConfirmReq), send)
	require.Equal(t, block.KindSend, h.BlockVariant())

	got, err := DecodeBlockMessage(h, body)
	require.NoError(t, err)
	require.Equal(t, send.Hash(), got.Hash())
}

func TestConfirmAckRoundTrip(t *testing.T) {
	acct, priv, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	open := &block.Open{Source: acct, Representative: acct, Account: acct}
	open.Signature = block.Sign(open, priv)

	ack := ConfirmAck{Account: acct, Signature: bigint.U512{9}, Sequence: 42, Block: open}
	h, body := EncodeConfirmAck(baseHeader(TypeConfirmAck), ack)

	got, err := DecodeConfirmAck(h, body)
	require.NoError(t, err)
	require.Equal(t, ack.Account, got.Account)
	require.Equal(t, ack.Signature, got.Signature)
	require.Equal(t, ack.Sequence, got.Sequence)
	require.Equal(t, open.Hash(), got.Block.Hash())
}

func TestFrontierPairTerminator(t *testing.T) {
	var p FrontierPair
	require.True(t, p.IsTerminator())
	p.Account[0] = 1
	require.False(t, p.IsTerminator())

	enc := EncodeFrontierPair(p)
	dec, err := DecodeFrontierPair(enc)
	require.NoError(t, err)
	require.Equal(t, p, dec)
}

func TestBulkPullRoundTrip(t *testing.T) {
	p := BulkPull{Start: bigint.U256{1}, End: bigint.U256{2}}
	dec, err := DecodeBulkPull(EncodeBulkPull(p))
	require.NoError(t, err)
	require.Equal(t, p, dec)
}
