package store

import "github.com/tos-network/ralite/internal/bigint"

// ChecksumKey is a hierarchical XOR checksum bucket: a 56-bit account
// prefix plus an 8-bit mask selecting how many of those bits are
// significant (spec §3).
type ChecksumKey struct {
	Prefix [7]byte
	Mask   byte
}

func checksumKey(k ChecksumKey) []byte {
	return key(tblChecksum, k.Prefix[:], []byte{k.Mask})
}

func ChecksumGet(r Reader, k ChecksumKey) (bigint.U256, bool, error) {
	v, ok, err := r.Get(checksumKey(k))
	if err != nil || !ok {
		return bigint.U256{}, false, err
	}
	return bigint.U256FromBytes(v), true, nil
}

func ChecksumPut(w Writer, k ChecksumKey, hash bigint.U256) error {
	return w.Put(checksumKey(k), hash[:])
}

// ChecksumXOR folds hash into the running checksum for bucket k.
func ChecksumXOR(w Writer, k ChecksumKey, hash bigint.U256) error {
	cur, _, err := ChecksumGet(w, k)
	if err != nil {
		return err
	}
	var next bigint.U256
	for i := range next {
		next[i] = cur[i] ^ hash[i]
	}
	return ChecksumPut(w, k, next)
}

// BucketFor derives the ChecksumKey an account falls into at the given
// mask (number of significant leading bits, in multiples of 8 up to 56).
func BucketFor(account bigint.U256, maskBits byte) ChecksumKey {
	var k ChecksumKey
	k.Mask = maskBits
	nBytes := int(maskBits / 8)
	copy(k.Prefix[:], account[:nBytes])
	return k
}
