// Package block implements the four ledger block variants — open, send,
// receive, change — their hashing rule, and their binary and JSON wire
// codecs (spec §3, §4.1, §6).
//
// The source's virtual-method block hierarchy becomes a tagged sum here:
// one Kind byte plus a struct per variant, dispatched over in small
// switches rather than through an interface vtable. Blocks are immutable
// once constructed.
package block

import (
	"encoding/binary"
	"errors"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/crypto25519"
)

// Kind discriminates the four block variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSend
	KindReceive
	KindOpen
	KindChange
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindOpen:
		return "open"
	case KindChange:
		return "change"
	default:
		return "invalid"
	}
}

// ErrBadEncoding is returned by binary/JSON decoders on truncated or
// malformed input.
var ErrBadEncoding = errors.New("block: bad encoding")

// Block is the common capability set every variant satisfies (spec §3).
// Previous returns the zero hash for variants that lack one (open).
type Block interface {
	Kind() Kind
	Hash() bigint.U256
	Root() bigint.U256
	Previous() bigint.U256
	SignatureValue() bigint.U512
	WorkValue() uint64
	hashables() []byte
	marshalBinary() []byte
}

// Sign computes a signature over b's hashable fields; used by wallets
// (external) via this one function, per the design note in spec §9 about
// breaking the node/wallet cycle.
func Sign(b Block, priv [64]byte) bigint.U512 {
	return crypto25519.Sign(priv, b.hashables())
}

// VerifySignature reports whether b's signature validates under signer.
func VerifySignature(b Block, signer bigint.U256) bool {
	return crypto25519.Verify(signer, b.hashables(), b.SignatureValue())
}

func hashOf(b Block) bigint.U256 { return crypto25519.Hash256(b.hashables()) }

func appendWorkLE(buf []byte, work uint64) []byte {
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], work)
	return append(buf, w[:]...)
}

// ---- send ----

type Send struct {
	Previous_    bigint.U256
	Destination bigint.U256
	Balance     bigint.U128
	Signature   bigint.U512
	Work        uint64
}

func (s *Send) Kind() Kind                  { return KindSend }
func (s *Send) Root() bigint.U256           { return s.Previous_ }
func (s *Send) Previous() bigint.U256       { return s.Previous_ }
func (s *Send) SignatureValue() bigint.U512 { return s.Signature }
func (s *Send) WorkValue() uint64           { return s.Work }
func (s *Send) Hash() bigint.U256           { return hashOf(s) }
func (s *Send) hashables() []byte {
	buf := make([]byte, 0, 32+32+16)
	buf = append(buf, s.Previous_[:]...)
	buf = append(buf, s.Destination[:]...)
	buf = append(buf, s.Balance[:]...)
	return buf
}
func (s *Send) marshalBinary() []byte {
	buf := s.hashables()
	buf = append(buf, s.Signature[:]...)
	return appendWorkLE(buf, s.Work)
}

// ---- receive ----

type Receive struct {
	Previous_ bigint.U256
	Source    bigint.U256
	Signature bigint.U512
	Work      uint64
}

func (r *Receive) Kind() Kind                  { return KindReceive }
func (r *Receive) Root() bigint.U256           { return r.Previous_ }
func (r *Receive) Previous() bigint.U256       { return r.Previous_ }
func (r *Receive) SignatureValue() bigint.U512 { return r.Signature }
func (r *Receive) WorkValue() uint64           { return r.Work }
func (r *Receive) Hash() bigint.U256           { return hashOf(r) }
func (r *Receive) hashables() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, r.Previous_[:]...)
	buf = append(buf, r.Source[:]...)
	return buf
}
func (r *Receive) marshalBinary() []byte {
	buf := r.hashables()
	buf = append(buf, r.Signature[:]...)
	return appendWorkLE(buf, r.Work)
}

// ---- open ----

type Open struct {
	Source         bigint.U256
	Representative bigint.U256
	Account        bigint.U256
	Signature      bigint.U512
	Work           uint64
}

func (o *Open) Kind() Kind                  { return KindOpen }
func (o *Open) Root() bigint.U256           { return o.Account }
func (o *Open) Previous() bigint.U256       { return bigint.U256{} }
func (o *Open) SignatureValue() bigint.U512 { return o.Signature }
func (o *Open) WorkValue() uint64           { return o.Work }
func (o *Open) Hash() bigint.U256           { return hashOf(o) }
func (o *Open) hashables() []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, o.Source[:]...)
	buf = append(buf, o.Representative[:]...)
	buf = append(buf, o.Account[:]...)
	return buf
}
func (o *Open) marshalBinary() []byte {
	buf := o.hashables()
	buf = append(buf, o.Signature[:]...)
	return appendWorkLE(buf, o.Work)
}

// ---- change ----

type Change struct {
	Previous_      bigint.U256
	Representative bigint.U256
	Signature      bigint.U512
	Work           uint64
}

func (c *Change) Kind() Kind                  { return KindChange }
func (c *Change) Root() bigint.U256           { return c.Previous_ }
func (c *Change) Previous() bigint.U256       { return c.Previous_ }
func (c *Change) SignatureValue() bigint.U512 { return c.Signature }
func (c *Change) WorkValue() uint64           { return c.Work }
func (c *Change) Hash() bigint.U256           { return hashOf(c) }
func (c *Change) hashables() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, c.Previous_[:]...)
	buf = append(buf, c.Representative[:]...)
	return buf
}
func (c *Change) marshalBinary() []byte {
	buf := c.hashables()
	buf = append(buf, c.Signature[:]...)
	return appendWorkLE(buf, c.Work)
}

// EncodeBinary serializes b per the fixed layout in spec §6.
func EncodeBinary(b Block) []byte { return b.marshalBinary() }

// DecodeBinary parses data as a block of the given kind.
func DecodeBinary(kind Kind, data []byte) (Block, error) {
	switch kind {
	case KindSend:
		if len(data) != 32+32+16+64+8 {
			return nil, ErrBadEncoding
		}
		s := &Send{}
		off := 0
		copy(s.Previous_[:], data[off:])
		off += 32
		copy(s.Destination[:], data[off:])
		off += 32
		copy(s.Balance[:], data[off:])
		off += 16
		copy(s.Signature[:], data[off:])
		off += 64
		s.Work = binary.LittleEndian.Uint64(data[off:])
		return s, nil
	case KindReceive:
		if len(data) != 32+32+64+8 {
			return nil, ErrBadEncoding
		}
		r := &Receive{}
		off := 0
		copy(r.Previous_[:], data[off:])
		off += 32
		copy(r.Source[:], data[off:])
		off += 32
		copy(r.Signature[:], data[off:])
		off += 64
		r.Work = binary.LittleEndian.Uint64(data[off:])
		return r, nil
	case KindOpen:
		if len(data) != 32+32+32+64+8 {
			return nil, ErrBadEncoding
		}
		o := &Open{}
		off := 0
		copy(o.Source[:], data[off:])
		off += 32
		copy(o.Representative[:], data[off:])
		off += 32
		copy(o.Account[:], data[off:])
		off += 32
		copy(o.Signature[:], data[off:])
		off += 64
		o.Work = binary.LittleEndian.Uint64(data[off:])
		return o, nil
	case KindChange:
		if len(data) != 32+32+64+8 {
			return nil, ErrBadEncoding
		}
		c := &Change{}
		off := 0
		copy(c.Previous_[:], data[off:])
		off += 32
		copy(c.Representative[:], data[off:])
		off += 32
		copy(c.Signature[:], data[off:])
		off += 64
		c.Work = binary.LittleEndian.Uint64(data[off:])
		return c, nil
	default:
		return nil, ErrBadEncoding
	}
}

// Size returns the fixed encoded length of a block of the given kind,
// used by stream readers (bootstrap bulk_pull/bulk_push) to know how
// many bytes to read before the next frame. Zero for an unknown kind.
func Size(kind Kind) int {
	switch kind {
	case KindSend:
		return 32 + 32 + 16 + 64 + 8
	case KindReceive:
		return 32 + 32 + 64 + 8
	case KindOpen:
		return 32 + 32 + 32 + 64 + 8
	case KindChange:
		return 32 + 32 + 64 + 8
	default:
		return 0
	}
}
