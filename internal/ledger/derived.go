package ledger

import (
	"errors"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/store"
)

// ErrUnknownBlock is returned by the derived-read helpers when asked
// about a hash the store has never seen.
var ErrUnknownBlock = errors.New("ledger: unknown block")

// AccountOf walks backward from hash to locate its owning account,
// short-circuiting on a frontier hit (hash is a chain head) or a
// blocks_info snapshot, and otherwise walking to the chain's open block
// (spec §4.4: "account(hash) walks backward/forward using frontiers and
// blocks_info snapshots to locate the owning account").
func AccountOf(r store.Reader, hash bigint.U256) (bigint.U256, error) {
	if acc, ok, err := store.FrontierGet(r, hash); err != nil {
		return bigint.U256{}, err
	} else if ok {
		return acc, nil
	}
	cur := hash
	for {
		if info, ok, err := store.BlocksInfoGet(r, cur); err != nil {
			return bigint.U256{}, err
		} else if ok {
			return info.Account, nil
		}
		b, _, ok, err := store.BlockGet(r, cur)
		if err != nil {
			return bigint.U256{}, err
		}
		if !ok {
			return bigint.U256{}, ErrUnknownBlock
		}
		if o, isOpen := b.(*block.Open); isOpen {
			return o.Account, nil
		}
		cur = b.Previous()
	}
}

// sendAmount returns the value transferred by the send at sendHash: its
// prior balance minus its stored post-balance.
func sendAmount(r store.Reader, sendHash bigint.U256) (bigint.U128, error) {
	b, _, ok, err := store.BlockGet(r, sendHash)
	if err != nil {
		return bigint.U128{}, err
	}
	if !ok {
		return bigint.U128{}, ErrUnknownBlock
	}
	send, isSend := b.(*block.Send)
	if !isSend {
		return bigint.U128{}, ErrUnknownBlock
	}
	prior, err := BalanceAt(r, send.Previous_)
	if err != nil {
		return bigint.U128{}, err
	}
	amount, ok := prior.Sub(send.Balance)
	if !ok {
		return bigint.U128{}, ErrUnknownBlock
	}
	return amount, nil
}

// BalanceAt computes the balance immediately after hash was applied,
// dispatching on block kind: send blocks carry their post-balance
// directly; receive/open add the matching send's amount; change
// carries its predecessor's balance forward unchanged.
func BalanceAt(r store.Reader, hash bigint.U256) (bigint.U128, error) {
	if info, ok, err := store.BlocksInfoGet(r, hash); err != nil {
		return bigint.U128{}, err
	} else if ok {
		return info.Balance, nil
	}
	b, _, ok, err := store.BlockGet(r, hash)
	if err != nil {
		return bigint.U128{}, err
	}
	if !ok {
		return bigint.U128{}, ErrUnknownBlock
	}
	switch v := b.(type) {
	case *block.Send:
		return v.Balance, nil
	case *block.Open:
		return sendAmount(r, v.Source)
	case *block.Receive:
		prior, err := BalanceAt(r, v.Previous_)
		if err != nil {
			return bigint.U128{}, err
		}
		amount, err := sendAmount(r, v.Source)
		if err != nil {
			return bigint.U128{}, err
		}
		sum, ok := prior.Add(amount)
		if !ok {
			return bigint.U128{}, ErrUnknownBlock
		}
		return sum, nil
	case *block.Change:
		return BalanceAt(r, v.Previous_)
	default:
		return bigint.U128{}, ErrUnknownBlock
	}
}

// AmountAt returns the value moved by hash: the transfer amount for
// send/receive/open, zero for change.
func AmountAt(r store.Reader, hash bigint.U256) (bigint.U128, error) {
	b, _, ok, err := store.BlockGet(r, hash)
	if err != nil {
		return bigint.U128{}, err
	}
	if !ok {
		return bigint.U128{}, ErrUnknownBlock
	}
	switch v := b.(type) {
	case *block.Send:
		prior, err := BalanceAt(r, v.Previous_)
		if err != nil {
			return bigint.U128{}, err
		}
		amt, ok := prior.Sub(v.Balance)
		if !ok {
			return bigint.U128{}, ErrUnknownBlock
		}
		return amt, nil
	case *block.Open:
		return sendAmount(r, v.Source)
	case *block.Receive:
		return sendAmount(r, v.Source)
	case *block.Change:
		return bigint.U128{}, nil
	default:
		return bigint.U128{}, ErrUnknownBlock
	}
}

// WeightOf reads account's current voting weight from the representation
// table, the zero weight if it has none.
func WeightOf(r store.Reader, account bigint.U256) (bigint.U128, error) {
	return store.RepresentationGet(r, account)
}

// representativeAt returns the representative named by the block at
// repBlockHash (an open or change block).
func representativeAt(r store.Reader, repBlockHash bigint.U256) (bigint.U256, error) {
	b, _, ok, err := store.BlockGet(r, repBlockHash)
	if err != nil || !ok {
		return bigint.U256{}, err
	}
	switch v := b.(type) {
	case *block.Open:
		return v.Representative, nil
	case *block.Change:
		return v.Representative, nil
	default:
		return bigint.U256{}, ErrUnknownBlock
	}
}
