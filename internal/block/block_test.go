package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/ralite/internal/bigint"
)

func sampleBlocks() []Block {
	return []Block{
		&Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}, Balance: bigint.U128{3}, Signature: bigint.U512{4}, Work: 0x1122334455667788},
		&Receive{Previous_: bigint.U256{5}, Source: bigint.U256{6}, Signature: bigint.U512{7}, Work: 42},
		&Open{Source: bigint.U256{8}, Representative: bigint.U256{9}, Account: bigint.U256{10}, Signature: bigint.U512{11}, Work: 7},
		&Change{Previous_: bigint.U256{12}, Representative: bigint.U256{13}, Signature: bigint.U512{14}, Work: 0},
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	for _, b := range sampleBlocks() {
		raw := EncodeBinary(b)
		got, err := DecodeBinary(b.Kind(), raw)
		require.NoError(t, err)
		require.Equal(t, EncodeBinary(b), EncodeBinary(got))
		require.Equal(t, b.Hash(), got.Hash())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	for _, b := range sampleBlocks() {
		raw, err := EncodeJSON("rtt", b)
		require.NoError(t, err)
		got, err := DecodeJSON("rtt", raw)
		require.NoError(t, err)
		require.Equal(t, EncodeBinary(b), EncodeBinary(got))
	}
}

func TestHashExcludesSignatureAndWork(t *testing.T) {
	s1 := &Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}, Balance: bigint.U128{3}, Signature: bigint.U512{4}, Work: 1}
	s2 := &Send{Previous_: bigint.U256{1}, Destination: bigint.U256{2}, Balance: bigint.U128{3}, Signature: bigint.U512{9}, Work: 2}
	require.Equal(t, s1.Hash(), s2.Hash())
}

func TestRootByVariant(t *testing.T) {
	s := &Send{Previous_: bigint.U256{1}}
	require.Equal(t, s.Previous_, s.Root())
	o := &Open{Account: bigint.U256{9}}
	require.Equal(t, o.Account, o.Root())
	require.True(t, o.Previous().IsZero())
}
