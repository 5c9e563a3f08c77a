package store

import (
	"crypto/rand"
	"math/big"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

// blockTableOrder is the fixed lookup order block_get consults (spec
// §4.3): block hashes across the four tables must be disjoint, which the
// ledger enforces by never inserting the same hash twice.
var blockTableOrder = []struct {
	table byte
	kind  block.Kind
}{
	{tblSendBlocks, block.KindSend},
	{tblReceiveBlocks, block.KindReceive},
	{tblOpenBlocks, block.KindOpen},
	{tblChangeBlocks, block.KindChange},
}

func tableForKind(k block.Kind) byte {
	switch k {
	case block.KindSend:
		return tblSendBlocks
	case block.KindReceive:
		return tblReceiveBlocks
	case block.KindOpen:
		return tblOpenBlocks
	case block.KindChange:
		return tblChangeBlocks
	default:
		return 0
	}
}

func blockKey(hash bigint.U256) []byte { return hash[:] }

// BlockGet consults the four block tables in fixed order and returns the
// first hit, along with the successor hash recorded alongside it (zero if
// this block has no recorded successor yet).
func BlockGet(r Reader, hash bigint.U256) (block.Block, bigint.U256, bool, error) {
	for _, t := range blockTableOrder {
		v, ok, err := r.Get(key(t.table, blockKey(hash)))
		if err != nil {
			return nil, bigint.U256{}, false, err
		}
		if !ok {
			continue
		}
		if len(v) < 32 {
			return nil, bigint.U256{}, false, ErrCorrupt
		}
		body, succ := v[:len(v)-32], v[len(v)-32:]
		b, err := block.DecodeBinary(t.kind, body)
		if err != nil {
			return nil, bigint.U256{}, false, err
		}
		return b, bigint.U256FromBytes(succ), true, nil
	}
	return nil, bigint.U256{}, false, nil
}

// BlockExists reports whether hash appears in any block table.
func BlockExists(r Reader, hash bigint.U256) (bool, error) {
	for _, t := range blockTableOrder {
		ok, err := r.Has(key(t.table, blockKey(hash)))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// BlockSuccessor reads the trailing successor hash stored alongside hash,
// the zero hash if hash has no recorded child yet.
func BlockSuccessor(r Reader, hash bigint.U256) (bigint.U256, bool, error) {
	_, succ, ok, err := BlockGet(r, hash)
	return succ, ok, err
}

// parentOf returns the hash of b's parent block, or the zero hash for
// open (which has none).
func parentOf(b block.Block) bigint.U256 {
	switch v := b.(type) {
	case *block.Open:
		return bigint.U256{}
	default:
		_ = v
		return b.Previous()
	}
}

// BlockPut writes b under its own hash with the given successor (zero if
// unknown yet), then — unless b is an open block — rewrites its parent's
// stored successor field to point at b's hash.
func BlockPut(w Writer, b block.Block, successor bigint.U256) error {
	hash := b.Hash()
	v := append(block.EncodeBinary(b), successor[:]...)
	if err := w.Put(key(tableForKind(b.Kind()), blockKey(hash)), v); err != nil {
		return err
	}
	parent := parentOf(b)
	if parent.IsZero() {
		return nil
	}
	return setSuccessor(w, parent, hash)
}

// setSuccessor rewrites parent's stored successor to child, the single
// mutation permitted against an otherwise-immutable stored block (spec
// §3 lifecycle).
func setSuccessor(w Writer, parent, child bigint.U256) error {
	for _, t := range blockTableOrder {
		k := key(t.table, blockKey(parent))
		v, ok, err := w.Get(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if len(v) < 32 {
			return ErrCorrupt
		}
		body := v[:len(v)-32]
		return w.Put(k, append(append([]byte{}, body...), child[:]...))
	}
	return ErrNotFound
}

// BlockDelete removes hash from whichever block table holds it and, if it
// has a parent, resets the parent's recorded successor back to zero.
// Used only by rollback (spec §4.4): undoing a block physically removes
// it, the sole exception to blocks being immutable once stored.
func BlockDelete(w Writer, hash bigint.U256) error {
	for _, t := range blockTableOrder {
		k := key(t.table, blockKey(hash))
		v, ok, err := w.Get(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if len(v) < 32 {
			return ErrCorrupt
		}
		body := v[:len(v)-32]
		b, err := block.DecodeBinary(t.kind, body)
		if err != nil {
			return err
		}
		if err := w.Delete(k); err != nil {
			return err
		}
		if err := BlocksInfoDel(w, hash); err != nil {
			return err
		}
		parent := parentOf(b)
		if parent.IsZero() {
			return nil
		}
		return setSuccessor(w, parent, bigint.U256{})
	}
	return ErrNotFound
}

// BlockRandom picks a table weighted by entry count, then returns the
// entry at or after a uniform random 256-bit key, wrapping to the first
// entry if none is >=.
func BlockRandom(r Reader) (block.Block, bool, error) {
	counts := make([]int, len(blockTableOrder))
	total := 0
	for i, t := range blockTableOrder {
		it := r.Iterator(prefixOf(t.table))
		n := 0
		for it.Next() {
			n++
		}
		it.Release()
		if err := it.Error(); err != nil {
			return nil, false, err
		}
		counts[i] = n
		total += n
	}
	if total == 0 {
		return nil, false, nil
	}
	pick, err := rand.Int(rand.Reader, big.NewInt(int64(total)))
	if err != nil {
		return nil, false, err
	}
	idx := pick.Int64()
	var chosen int
	for i, c := range counts {
		if idx < int64(c) {
			chosen = i
			break
		}
		idx -= int64(c)
	}
	t := blockTableOrder[chosen]
	randKeyBytes := make([]byte, 32)
	if _, err := rand.Read(randKeyBytes); err != nil {
		return nil, false, err
	}

	it := r.Iterator(prefixOf(t.table))
	defer it.Release()
	var first []byte
	var firstVal []byte
	for it.Next() {
		if first == nil {
			first = append([]byte{}, it.Key()[1:]...)
			firstVal = append([]byte{}, it.Value()...)
		}
		k := it.Key()[1:]
		if bytesGE(k, randKeyBytes) {
			body := it.Value()[:len(it.Value())-32]
			b, err := block.DecodeBinary(t.kind, body)
			if err != nil {
				return nil, false, err
			}
			return b, true, nil
		}
	}
	if err := it.Error(); err != nil {
		return nil, false, err
	}
	if first == nil {
		return nil, false, nil
	}
	body := firstVal[:len(firstVal)-32]
	b, err := block.DecodeBinary(t.kind, body)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func bytesGE(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return true
}
