package store

import (
	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

// uncheckedKey is predecessor-hash ‖ block-hash: the multi-value table
// keyed by the missing predecessor, disambiguated by the waiting block's
// own hash so distinct waiters never collide (spec §3: "duplicates
// allowed (multi-value)").
func uncheckedKey(predecessor, blockHash bigint.U256) []byte {
	return key(tblUnchecked, predecessor[:], blockHash[:])
}

// UncheckedPut stores b, keyed by the predecessor hash it is waiting on.
func UncheckedPut(w Writer, predecessor bigint.U256, b block.Block) error {
	v := append([]byte{byte(b.Kind())}, block.EncodeBinary(b)...)
	return w.Put(uncheckedKey(predecessor, b.Hash()), v)
}

// UncheckedDel removes one waiting block once it has been processed.
func UncheckedDel(w Writer, predecessor, blockHash bigint.U256) error {
	return w.Delete(uncheckedKey(predecessor, blockHash))
}

// UncheckedGet returns every block currently waiting on predecessor.
func UncheckedGet(r Reader, predecessor bigint.U256) ([]block.Block, error) {
	prefix := key(tblUnchecked, predecessor[:])
	it := r.Iterator(prefix)
	defer it.Release()
	var out []block.Block
	for it.Next() {
		v := it.Value()
		if len(v) < 1 {
			return nil, ErrCorrupt
		}
		b, err := block.DecodeBinary(block.Kind(v[0]), v[1:])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, it.Error()
}
