// Package crypto25519 wraps the signing and hashing primitives the
// ledger core treats as opaque collaborators: Ed25519 signatures and
// Blake2b-256 hashing, behind a small package boundary so the backend
// can be swapped without touching call sites.
package crypto25519

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/blake2b"

	"github.com/tos-network/ralite/internal/bigint"
)

// GenerateKey produces a fresh Ed25519 keypair using the system CSPRNG.
func GenerateKey() (pub bigint.U256, priv [64]byte, err error) {
	p, s, err := stded25519.GenerateKey(rand.Reader)
	if err != nil {
		return pub, priv, err
	}
	copy(pub[:], p)
	copy(priv[:], s)
	return pub, priv, nil
}

// PublicFromPrivate recovers the public key embedded in a full private key.
func PublicFromPrivate(priv [64]byte) bigint.U256 {
	var out bigint.U256
	copy(out[:], priv[32:])
	return out
}

// Sign produces a 64-byte Ed25519 signature over msg.
func Sign(priv [64]byte, msg []byte) bigint.U512 {
	sig := stded25519.Sign(stded25519.PrivateKey(priv[:]), msg)
	var out bigint.U512
	copy(out[:], sig)
	return out
}

// Verify reports whether sig is a valid Ed25519 signature over msg under pub.
func Verify(pub bigint.U256, msg []byte, sig bigint.U512) bool {
	return stded25519.Verify(stded25519.PublicKey(pub[:]), msg, sig[:])
}

// Hash256 returns the Blake2b-256 digest of the concatenation of data.
func Hash256(data ...[]byte) bigint.U256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // blake2b.New256 only fails for bad key sizes; nil is always valid
	}
	for _, d := range data {
		h.Write(d)
	}
	var out bigint.U256
	copy(out[:], h.Sum(nil))
	return out
}

// Hash40 returns the first 5 bytes of the Blake2b-256 digest, used for the
// address checksum (spec §4.1, §6).
func Hash40(data []byte) [5]byte {
	full := Hash256(data)
	var out [5]byte
	copy(out[:], full[:5])
	return out
}

// WorkVerify reports whether work satisfies the proof-of-work threshold
// for root: Blake2b-64(work ‖ root) read as a little-endian uint64 must
// be >= threshold. The work nonce is hashed as its 8 little-endian bytes,
// followed by the 32 root bytes.
func WorkVerify(root bigint.U256, work uint64, threshold uint64) bool {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic(err)
	}
	var workLE [8]byte
	for i := 0; i < 8; i++ {
		workLE[i] = byte(work >> (8 * i))
	}
	h.Write(workLE[:])
	h.Write(root[:])
	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(sum[i]) << (8 * i)
	}
	return v >= threshold
}
