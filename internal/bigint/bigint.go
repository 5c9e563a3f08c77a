// Package bigint implements the fixed-width big-endian integers used on
// the wire and in the store: 128-bit amounts/weights, 256-bit
// hashes/accounts/private keys, and 512-bit signatures. Each type is a
// plain byte array so it is comparable, zero-value-valid, and usable as a
// map key without boxing.
package bigint

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// ErrTooLarge is returned when decoding a big.Int that does not fit in the
// target width.
var ErrTooLarge = errors.New("bigint: value does not fit in target width")

// U128 is an unsigned 128-bit integer, big-endian.
type U128 [16]byte

// U256 is an unsigned 256-bit integer, big-endian. Used for hashes,
// accounts (public keys), and private keys.
type U256 [32]byte

// U512 is an unsigned 512-bit integer, big-endian. Used for signatures.
type U512 [64]byte

func (u U128) Big() *big.Int { return new(big.Int).SetBytes(u[:]) }
func (u U256) Big() *big.Int { return new(big.Int).SetBytes(u[:]) }

// Bytes returns a copy of the underlying big-endian bytes.
func (u U128) Bytes() []byte { b := u; return b[:] }
func (u U256) Bytes() []byte { b := u; return b[:] }
func (u U512) Bytes() []byte { b := u; return b[:] }

func (u U128) IsZero() bool { return u == U128{} }
func (u U256) IsZero() bool { return u == U256{} }

// Cmp returns -1, 0, or 1 comparing u to v as unsigned big-endian integers.
func (u U128) Cmp(v U128) int {
	for i := range u {
		if u[i] != v[i] {
			if u[i] < v[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// U128FromBig encodes n into a big-endian 128-bit value, erroring if n
// does not fit or is negative.
func U128FromBig(n *big.Int) (U128, error) {
	var out U128
	if n.Sign() < 0 || n.BitLen() > 128 {
		return out, ErrTooLarge
	}
	n.FillBytes(out[:])
	return out, nil
}

// U128FromUint64 widens a uint64 into the low bytes of a U128.
func U128FromUint64(v uint64) U128 {
	var out U128
	binary.BigEndian.PutUint64(out[8:], v)
	return out
}

// Sub computes u-v for u>=v; the second return is false on underflow.
func (u U128) Sub(v U128) (U128, bool) {
	if u.Cmp(v) < 0 {
		return U128{}, false
	}
	res := new(big.Int).Sub(u.Big(), v.Big())
	var out U128
	res.FillBytes(out[:])
	return out, true
}

// Add computes u+v, returning false if the result overflows 128 bits.
func (u U128) Add(v U128) (U128, bool) {
	res := new(big.Int).Add(u.Big(), v.Big())
	if res.BitLen() > 128 {
		return U128{}, false
	}
	var out U128
	res.FillBytes(out[:])
	return out, true
}

func U256FromBytes(b []byte) (out U256) {
	copy(out[32-len(b):], b)
	return
}
