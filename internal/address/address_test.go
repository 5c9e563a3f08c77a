package address

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/crypto25519"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pub, _, err := crypto25519.GenerateKey()
	require.NoError(t, err)

	s := Encode("ral", pub)
	require.True(t, len(s) > len("ral_")+60-1)

	got, err := Decode("ral", s)
	require.NoError(t, err)
	require.Equal(t, pub, got)
}

func TestDecodeRejectsWrongPrefix(t *testing.T) {
	pub, _, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	s := Encode("ral", pub)

	_, err = Decode("rtt", s)
	require.ErrorIs(t, err, ErrBadAddress)
}

func TestDecodeRejectsTamperedChecksum(t *testing.T) {
	pub, _, err := crypto25519.GenerateKey()
	require.NoError(t, err)
	s := Encode("ral", pub)

	tampered := []byte(s)
	last := tampered[len(tampered)-1]
	for _, c := range []byte(alphabet) {
		if c != last {
			tampered[len(tampered)-1] = c
			break
		}
	}
	_, err = Decode("ral", string(tampered))
	require.ErrorIs(t, err, ErrBadAddress)
}

func TestDecodeRejectsBadLength(t *testing.T) {
	_, err := Decode("ral", "ral_tooshort")
	require.ErrorIs(t, err, ErrBadAddress)
}

func TestEncodeZeroKey(t *testing.T) {
	s := Encode("ral", bigint.U256{})
	got, err := Decode("ral", s)
	require.NoError(t, err)
	require.Equal(t, bigint.U256{}, got)
}
