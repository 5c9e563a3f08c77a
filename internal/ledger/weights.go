package ledger

import (
	"math/big"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/store"
)

// StoreWeights adapts the store's representation table to
// election.WeightSource, reading through a fresh snapshot on every
// call so the active elections manager always tallies against
// currently-committed weight.
type StoreWeights struct {
	Store *store.Store
}

func (w StoreWeights) Weight(account bigint.U256) (bigint.U128, error) {
	var weight bigint.U128
	err := w.Store.View(func(r store.Reader) error {
		var e error
		weight, e = store.RepresentationGet(r, account)
		return e
	})
	return weight, err
}

// TotalWeight sums every representative's weight, standing in for the
// network's online voting supply (spec §4.6). A full implementation
// would weight only currently-reachable representatives; see
// DESIGN.md for why that peer-liveness cross-reference is out of
// scope here.
func (w StoreWeights) TotalWeight() (bigint.U128, error) {
	total := new(big.Int)
	err := w.Store.View(func(r store.Reader) error {
		return store.RepresentationIterate(r, func(_ bigint.U256, weight bigint.U128) error {
			total.Add(total, weight.Big())
			return nil
		})
	})
	if err != nil {
		return bigint.U128{}, err
	}
	out, convErr := bigint.U128FromBig(total)
	if convErr != nil {
		return bigint.U128{}, convErr
	}
	return out, nil
}
