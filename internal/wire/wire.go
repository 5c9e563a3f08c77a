// Package wire implements the node's on-the-wire message framing (spec
// §4.9, §6): an 8-byte header shared by every message, followed by a
// type-specific payload. Block payloads reuse block.EncodeBinary /
// block.DecodeBinary directly; everything else is hand-rolled
// fixed-width encoding in the same style.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/network"
)

// ErrBadEncoding is returned for truncated or malformed wire data.
var ErrBadEncoding = errors.New("wire: bad encoding")

// Type discriminates the message kinds in the header's type byte.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeKeepalive
	TypePublish
	TypeConfirmReq
	TypeConfirmAck
	TypeFrontierReq
	TypeBulkPull
	TypeBulkPush
)

// Extension bits within the header's 16-bit extensions field (spec
// §4.9). Bits [11:8] carry the block variant for messages that embed
// one block payload.
const (
	extIPv4Only        uint16 = 1 << 1
	extBootstrapServer uint16 = 1 << 2
	blockVariantShift         = 8
	blockVariantMask   uint16 = 0xf << blockVariantShift
)

// Header is the 8 bytes every message begins with.
type Header struct {
	Tag          network.Tag
	VersionMax   uint8
	VersionUsing uint8
	VersionMin   uint8
	Type         Type
	Extensions   uint16
}

// HeaderSize is the encoded size of Header.
const HeaderSize = 8

// BlockVariant reads the block-kind nibble out of Extensions.
func (h Header) BlockVariant() block.Kind {
	return block.Kind((h.Extensions & blockVariantMask) >> blockVariantShift)
}

// WithBlockVariant returns a copy of h with its block-variant nibble
// set to k.
func (h Header) WithBlockVariant(k block.Kind) Header {
	h.Extensions = (h.Extensions &^ blockVariantMask) | (uint16(k) << blockVariantShift)
	return h
}

func (h Header) IPv4Only() bool        { return h.Extensions&extIPv4Only != 0 }
func (h Header) BootstrapServer() bool { return h.Extensions&extBootstrapServer != 0 }

// EncodeHeader writes h's 8-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0], buf[1] = h.Tag[0], h.Tag[1]
	buf[2] = h.VersionMax
	buf[3] = h.VersionUsing
	buf[4] = h.VersionMin
	buf[5] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[6:], h.Extensions)
	return buf
}

// DecodeHeader parses the leading 8 bytes of data as a Header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrBadEncoding
	}
	return Header{
		Tag:          network.Tag{data[0], data[1]},
		VersionMax:   data[2],
		VersionUsing: data[3],
		VersionMin:   data[4],
		Type:         Type(data[5]),
		Extensions:   binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// Endpoint is one Keepalive peer entry: an IPv6 (or v6-mapped IPv4)
// address and UDP port.
type Endpoint struct {
	IP   [16]byte
	Port uint16
}

const endpointSize = 16 + 2

// Keepalive carries up to 8 peer endpoints (spec §4.9).
type Keepalive struct {
	Peers [8]Endpoint
}

func EncodeKeepalive(k Keepalive) []byte {
	buf := make([]byte, 0, endpointSize*len(k.Peers))
	for _, ep := range k.Peers {
		buf = append(buf, ep.IP[:]...)
		var port [2]byte
		binary.LittleEndian.PutUint16(port[:], ep.Port)
		buf = append(buf, port[:]...)
	}
	return buf
}

func DecodeKeepalive(data []byte) (Keepalive, error) {
	var k Keepalive
	if len(data) != endpointSize*len(k.Peers) {
		return Keepalive{}, ErrBadEncoding
	}
	off := 0
	for i := range k.Peers {
		copy(k.Peers[i].IP[:], data[off:])
		off += 16
		k.Peers[i].Port = binary.LittleEndian.Uint16(data[off:])
		off += 2
	}
	return k, nil
}

// EncodeBlockMessage encodes a Publish or ConfirmReq payload: just the
// block body, with its kind recorded in the header's extension bits.
func EncodeBlockMessage(h Header, b block.Block) (Header, []byte) {
	return h.WithBlockVariant(b.Kind()), block.EncodeBinary(b)
}

// DecodeBlockMessage parses a Publish or ConfirmReq payload using the
// block variant recorded in h.
func DecodeBlockMessage(h Header, data []byte) (block.Block, error) {
	return block.DecodeBinary(h.BlockVariant(), data)
}

// ConfirmAck is a representative's vote, carrying the block it votes
// for (spec §4.9).
type ConfirmAck struct {
	Account   bigint.U256
	Signature bigint.U512
	Sequence  uint64
	Block     block.Block
}

// EncodeConfirmAck lays out account(32) ‖ signature(64) ‖ sequence(u64 LE)
// ‖ block, returning the header with its block-variant nibble set.
func EncodeConfirmAck(h Header, ack ConfirmAck) (Header, []byte) {
	buf := make([]byte, 0, 32+64+8)
	buf = append(buf, ack.Account[:]...)
	buf = append(buf, ack.Signature[:]...)
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], ack.Sequence)
	buf = append(buf, seq[:]...)
	buf = append(buf, block.EncodeBinary(ack.Block)...)
	return h.WithBlockVariant(ack.Block.Kind()), buf
}

func DecodeConfirmAck(h Header, data []byte) (ConfirmAck, error) {
	if len(data) < 32+64+8 {
		return ConfirmAck{}, ErrBadEncoding
	}
	var ack ConfirmAck
	off := 0
	copy(ack.Account[:], data[off:])
	off += 32
	copy(ack.Signature[:], data[off:])
	off += 64
	ack.Sequence = binary.LittleEndian.Uint64(data[off:])
	off += 8
	b, err := block.DecodeBinary(h.BlockVariant(), data[off:])
	if err != nil {
		return ConfirmAck{}, err
	}
	ack.Block = b
	return ack, nil
}

// FrontierReq opens a bootstrap frontier scan (spec §4.9, §4.12).
type FrontierReq struct {
	StartAccount bigint.U256
	Age          uint32
	Count        uint32
}

func EncodeFrontierReq(f FrontierReq) []byte {
	buf := make([]byte, 0, 32+4+4)
	buf = append(buf, f.StartAccount[:]...)
	var age, count [4]byte
	binary.LittleEndian.PutUint32(age[:], f.Age)
	binary.LittleEndian.PutUint32(count[:], f.Count)
	buf = append(buf, age[:]...)
	buf = append(buf, count[:]...)
	return buf
}

func DecodeFrontierReq(data []byte) (FrontierReq, error) {
	if len(data) != 32+4+4 {
		return FrontierReq{}, ErrBadEncoding
	}
	var f FrontierReq
	copy(f.StartAccount[:], data[:32])
	f.Age = binary.LittleEndian.Uint32(data[32:36])
	f.Count = binary.LittleEndian.Uint32(data[36:40])
	return f, nil
}

// FrontierPair is one entry in a FrontierReq response stream,
// terminated by an all-zero pair.
type FrontierPair struct {
	Account bigint.U256
	Head    bigint.U256
}

func (p FrontierPair) IsTerminator() bool {
	return p.Account.IsZero() && p.Head.IsZero()
}

func EncodeFrontierPair(p FrontierPair) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, p.Account[:]...)
	buf = append(buf, p.Head[:]...)
	return buf
}

func DecodeFrontierPair(data []byte) (FrontierPair, error) {
	if len(data) != 64 {
		return FrontierPair{}, ErrBadEncoding
	}
	var p FrontierPair
	copy(p.Account[:], data[:32])
	copy(p.Head[:], data[32:64])
	return p, nil
}

// BulkPull requests the chain between end (exclusive) and start
// (inclusive), delivered back-to-front (spec §4.9, §4.12).
type BulkPull struct {
	Start bigint.U256
	End   bigint.U256
}

func EncodeBulkPull(p BulkPull) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, p.Start[:]...)
	buf = append(buf, p.End[:]...)
	return buf
}

func DecodeBulkPull(data []byte) (BulkPull, error) {
	if len(data) != 64 {
		return BulkPull{}, ErrBadEncoding
	}
	var p BulkPull
	copy(p.Start[:], data[:32])
	copy(p.End[:], data[32:64])
	return p, nil
}

// EncodeBulkPushEntry frames one block of a BulkPush stream: a
// one-byte kind followed by the block body. block.KindInvalid (zero)
// with no body is the stream terminator ("not_a_block").
func EncodeBulkPushEntry(b block.Block) []byte {
	return append([]byte{byte(b.Kind())}, block.EncodeBinary(b)...)
}

// BulkPushTerminator is the sentinel byte sequence ending a BulkPush
// stream.
var BulkPushTerminator = []byte{byte(block.KindInvalid)}

// DecodeBulkPushEntry parses one framed BulkPush entry, reporting done
// when it reads the terminator.
func DecodeBulkPushEntry(data []byte) (b block.Block, done bool, err error) {
	if len(data) < 1 {
		return nil, false, ErrBadEncoding
	}
	kind := block.Kind(data[0])
	if kind == block.KindInvalid {
		return nil, true, nil
	}
	b, err = block.DecodeBinary(kind, data[1:])
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}
