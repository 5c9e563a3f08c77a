package ledger

import (
	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/store"
)

// repBlockAt returns the nearest ancestor of (and including) hash that
// carries a representative — the hash a fresh rep_block should point at
// once the block after it is undone.
func repBlockAt(r store.Reader, hash bigint.U256) (bigint.U256, error) {
	cur := hash
	for {
		b, _, ok, err := store.BlockGet(r, cur)
		if err != nil {
			return bigint.U256{}, err
		}
		if !ok {
			return bigint.U256{}, ErrUnknownBlock
		}
		switch b.Kind() {
		case block.KindOpen, block.KindChange:
			return cur, nil
		}
		cur = b.Previous()
	}
}

// Rollback repeatedly undoes the account's head block until hash is no
// longer reachable from it — i.e. until hash itself has been undone
// (spec §4.4). Used by active elections when the network confirms a
// competing fork over a block already applied locally.
func Rollback(w store.Writer, hash bigint.U256) error {
	acc, err := AccountOf(w, hash)
	if err != nil {
		return err
	}
	for {
		info, ok, err := store.AccountGet(w, acc)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownBlock
		}
		head := info.Head
		if err := undoOne(w, acc, info); err != nil {
			return err
		}
		if head == hash {
			return nil
		}
	}
}

// undoOne undoes the single block currently at the head of acc's chain.
func undoOne(w store.Writer, acc bigint.U256, info store.AccountInfo) error {
	b, _, ok, err := store.BlockGet(w, info.Head)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownBlock
	}
	switch v := b.(type) {
	case *block.Send:
		return undoSend(w, acc, info, v)
	case *block.Receive:
		return undoReceive(w, acc, info, v)
	case *block.Open:
		return undoOpen(w, acc, info, v)
	case *block.Change:
		return undoChange(w, acc, info, v)
	default:
		return ErrUnknownBlock
	}
}

func undoSend(w store.Writer, acc bigint.U256, info store.AccountInfo, s *block.Send) error {
	prior, err := BalanceAt(w, s.Previous_)
	if err != nil {
		return err
	}
	amount, ok := prior.Sub(s.Balance)
	if !ok {
		return ErrUnknownBlock
	}
	if err := store.PendingDel(w, store.PendingKey{Destination: s.Destination, SendHash: info.Head}); err != nil {
		return err
	}
	rep, err := representativeAt(w, info.RepBlock)
	if err != nil {
		return err
	}
	if err := store.RepresentationIncrease(w, rep, amount); err != nil {
		return err
	}
	if err := store.BlockDelete(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierDel(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierPut(w, s.Previous_, acc); err != nil {
		return err
	}
	if err := updateChecksum(w, acc, info.Head, s.Previous_); err != nil {
		return err
	}
	info.Head = s.Previous_
	info.Balance = prior
	info.BlockCount--
	return store.AccountPut(w, acc, info)
}

func undoReceive(w store.Writer, acc bigint.U256, info store.AccountInfo, rcv *block.Receive) error {
	prior, err := BalanceAt(w, rcv.Previous_)
	if err != nil {
		return err
	}
	amount, ok := info.Balance.Sub(prior)
	if !ok {
		return ErrUnknownBlock
	}
	sourceAcc, err := AccountOf(w, rcv.Source)
	if err != nil {
		return err
	}
	if err := store.PendingPut(w, store.PendingKey{Destination: acc, SendHash: rcv.Source}, store.PendingValue{Source: sourceAcc, Amount: amount}); err != nil {
		return err
	}
	rep, err := representativeAt(w, info.RepBlock)
	if err != nil {
		return err
	}
	if err := store.RepresentationDecrease(w, rep, amount); err != nil {
		return err
	}
	if err := store.BlockDelete(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierDel(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierPut(w, rcv.Previous_, acc); err != nil {
		return err
	}
	if err := updateChecksum(w, acc, info.Head, rcv.Previous_); err != nil {
		return err
	}
	info.Head = rcv.Previous_
	info.Balance = prior
	info.BlockCount--
	return store.AccountPut(w, acc, info)
}

func undoOpen(w store.Writer, acc bigint.U256, info store.AccountInfo, o *block.Open) error {
	amount := info.Balance
	sourceAcc, err := AccountOf(w, o.Source)
	if err != nil {
		return err
	}
	if err := store.PendingPut(w, store.PendingKey{Destination: acc, SendHash: o.Source}, store.PendingValue{Source: sourceAcc, Amount: amount}); err != nil {
		return err
	}
	if err := store.RepresentationDecrease(w, o.Representative, amount); err != nil {
		return err
	}
	if err := store.BlockDelete(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierDel(w, info.Head); err != nil {
		return err
	}
	if err := updateChecksum(w, acc, info.Head, bigint.U256{}); err != nil {
		return err
	}
	return store.AccountDel(w, acc)
}

func undoChange(w store.Writer, acc bigint.U256, info store.AccountInfo, c *block.Change) error {
	oldRepBlock, err := repBlockAt(w, c.Previous_)
	if err != nil {
		return err
	}
	oldRep, err := representativeAt(w, oldRepBlock)
	if err != nil {
		return err
	}
	if err := store.RepresentationDecrease(w, c.Representative, info.Balance); err != nil {
		return err
	}
	if err := store.RepresentationIncrease(w, oldRep, info.Balance); err != nil {
		return err
	}
	if err := store.BlockDelete(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierDel(w, info.Head); err != nil {
		return err
	}
	if err := store.FrontierPut(w, c.Previous_, acc); err != nil {
		return err
	}
	if err := updateChecksum(w, acc, info.Head, c.Previous_); err != nil {
		return err
	}
	info.Head = c.Previous_
	info.RepBlock = oldRepBlock
	info.BlockCount--
	return store.AccountPut(w, acc, info)
}
