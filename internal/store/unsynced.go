package store

import "github.com/tos-network/ralite/internal/bigint"

func unsyncedKey(hash bigint.U256) []byte { return key(tblUnsynced, hash[:]) }

// UnsyncedMark records that hash is locally present and may be missing
// from some peer's copy of the ledger, for later push during bootstrap.
func UnsyncedMark(w Writer, hash bigint.U256) error {
	return w.Put(unsyncedKey(hash), []byte{})
}

func UnsyncedUnmark(w Writer, hash bigint.U256) error {
	return w.Delete(unsyncedKey(hash))
}

func UnsyncedHas(r Reader, hash bigint.U256) (bool, error) {
	return r.Has(unsyncedKey(hash))
}

func UnsyncedIterate(r Reader, fn func(hash bigint.U256) error) error {
	it := r.Iterator(prefixOf(tblUnsynced))
	defer it.Release()
	for it.Next() {
		var h bigint.U256
		copy(h[:], it.Key()[1:])
		if err := fn(h); err != nil {
			return err
		}
	}
	return it.Error()
}
