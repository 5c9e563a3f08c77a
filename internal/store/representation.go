package store

import "github.com/tos-network/ralite/internal/bigint"

func representationKey(rep bigint.U256) []byte { return key(tblRepresentation, rep[:]) }

// RepresentationGet returns the running voting weight assigned to rep,
// zero if rep has never been assigned any.
func RepresentationGet(r Reader, rep bigint.U256) (bigint.U128, error) {
	v, ok, err := r.Get(representationKey(rep))
	if err != nil || !ok {
		return bigint.U128{}, err
	}
	if len(v) != 16 {
		return bigint.U128{}, ErrCorrupt
	}
	return bigint.U128(v), nil
}

// RepresentationSet overwrites rep's weight with weight, deleting the
// entry when weight is zero.
func RepresentationSet(w Writer, rep bigint.U256, weight bigint.U128) error {
	if weight.IsZero() {
		return w.Delete(representationKey(rep))
	}
	return w.Put(representationKey(rep), weight[:])
}

// RepresentationIncrease adds amount to rep's current weight.
func RepresentationIncrease(w Writer, rep bigint.U256, amount bigint.U128) error {
	cur, err := RepresentationGet(w, rep)
	if err != nil {
		return err
	}
	sum, ok := cur.Add(amount)
	if !ok {
		return ErrCorrupt
	}
	return RepresentationSet(w, rep, sum)
}

// RepresentationDecrease subtracts amount from rep's current weight.
func RepresentationDecrease(w Writer, rep bigint.U256, amount bigint.U128) error {
	cur, err := RepresentationGet(w, rep)
	if err != nil {
		return err
	}
	diff, ok := cur.Sub(amount)
	if !ok {
		return ErrCorrupt
	}
	return RepresentationSet(w, rep, diff)
}

// RepresentationIterate walks every nonzero representative weight.
func RepresentationIterate(r Reader, fn func(rep bigint.U256, weight bigint.U128) error) error {
	it := r.Iterator(prefixOf(tblRepresentation))
	defer it.Release()
	for it.Next() {
		var rep bigint.U256
		copy(rep[:], it.Key()[1:])
		if len(it.Value()) != 16 {
			return ErrCorrupt
		}
		if err := fn(rep, bigint.U128(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}
