// Package address implements the human-readable encoding of a 256-bit
// account public key: a configurable prefix, 52 base-32 characters
// encoding the key, and 8 base-32 characters encoding a 40-bit Blake2b
// checksum of the key (spec §4.1, §6).
package address

import (
	"errors"
	"strings"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/crypto25519"
)

// ErrBadAddress is returned when the prefix, length, alphabet, or
// checksum of a textual address do not match.
var ErrBadAddress = errors.New("address: bad address")

// alphabet is the Bitcoin-style base-32 alphabet minus confusable glyphs.
const alphabet = "13456789abcdefghijkmnopqrstuwxyz"

var reverse [256]int8

func init() {
	for i := range reverse {
		reverse[i] = -1
	}
	for i, c := range alphabet {
		reverse[byte(c)] = int8(i)
	}
}

// Encode renders key as "<prefix>_<52 chars><8 checksum chars>".
func Encode(prefix string, key bigint.U256) string {
	var sb strings.Builder
	sb.Grow(len(prefix) + 1 + 60)
	sb.WriteString(prefix)
	sb.WriteByte('_')
	sb.WriteString(encodeBase32(key[:], 52))

	sum := crypto25519.Hash40(key[:])
	reversed := reverseBits40(sum)
	sb.WriteString(encodeBase32(reversed[:], 8))
	return sb.String()
}

// Decode parses a textual address, verifying the prefix and checksum.
func Decode(prefix, s string) (bigint.U256, error) {
	var out bigint.U256
	want := prefix + "_"
	if !strings.HasPrefix(s, want) {
		return out, ErrBadAddress
	}
	body := s[len(want):]
	if len(body) != 60 {
		return out, ErrBadAddress
	}
	keyPart, sumPart := body[:52], body[52:]

	keyBytes, err := decodeBase32(keyPart, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], keyBytes)

	sumBytes, err := decodeBase32(sumPart, 5)
	if err != nil {
		return out, err
	}
	var sum [5]byte
	copy(sum[:], sumBytes)
	want5 := reverseBits40(crypto25519.Hash40(out[:]))
	if want5 != sum {
		return bigint.U256{}, ErrBadAddress
	}
	return out, nil
}

// encodeBase32 encodes data as exactly outLen base-32 characters,
// most-significant bit first, zero-padded on the left.
func encodeBase32(data []byte, outLen int) string {
	bits := make([]byte, 0, outLen)
	// Treat data as one big-endian bit string; emit 5-bit groups MSB
	// first, padding the whole value on the left with zero bits so the
	// output is exactly outLen characters.
	totalBits := outLen * 5
	bitBuf := make([]byte, totalBits)
	dataBits := len(data) * 8
	offset := totalBits - dataBits
	for i := 0; i < dataBits; i++ {
		byteIdx := i / 8
		bitIdx := 7 - uint(i%8)
		bit := (data[byteIdx] >> bitIdx) & 1
		bitBuf[offset+i] = bit
	}
	out := make([]byte, outLen)
	for i := 0; i < outLen; i++ {
		var v byte
		for j := 0; j < 5; j++ {
			v = v<<1 | bitBuf[i*5+j]
		}
		out[i] = alphabet[v]
		bits = append(bits, v)
	}
	return string(out)
}

func decodeBase32(s string, outBytes int) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrBadAddress
	}
	totalBits := len(s) * 5
	bitBuf := make([]byte, totalBits)
	for i := 0; i < len(s); i++ {
		v := reverse[s[i]]
		if v < 0 {
			return nil, ErrBadAddress
		}
		for j := 0; j < 5; j++ {
			bitBuf[i*5+j] = byte(v>>(4-j)) & 1
		}
	}
	outBits := outBytes * 8
	offset := totalBits - outBits
	if offset < 0 {
		return nil, ErrBadAddress
	}
	// Any set bit before offset means the value overflows outBytes.
	for i := 0; i < offset; i++ {
		if bitBuf[i] != 0 {
			return nil, ErrBadAddress
		}
	}
	out := make([]byte, outBytes)
	for i := 0; i < outBits; i++ {
		if bitBuf[offset+i] != 0 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out, nil
}

func reverseBits40(in [5]byte) [5]byte {
	var out [5]byte
	for i := 0; i < 40; i++ {
		srcByte, srcBit := i/8, uint(i%8)
		bit := (in[srcByte] >> srcBit) & 1
		dstBit := 39 - i
		dstByte, dstBitIdx := dstBit/8, uint(dstBit%8)
		if bit != 0 {
			out[dstByte] |= 1 << dstBitIdx
		}
	}
	return out
}
