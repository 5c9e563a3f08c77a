package ledger

import (
	"time"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/store"
)

// Process validates and, if valid, applies b to the store under the
// active write transaction (spec §4.4). It never returns a non-nil error
// for an expected validation outcome — those are reported through
// Result.Code — only for store I/O failure.
func Process(w store.Writer, b block.Block) (Result, error) {
	switch v := b.(type) {
	case *block.Send:
		return processSend(w, v)
	case *block.Receive:
		return processReceive(w, v)
	case *block.Open:
		return processOpen(w, v)
	case *block.Change:
		return processChange(w, v)
	default:
		return Result{}, ErrUnknownBlock
	}
}

func now() uint64 { return uint64(time.Now().Unix()) }

// resolveSigner finds the account whose current head is prev, the
// ordinary case for a non-open block extending its chain. If prev exists
// in the store but is not anyone's current frontier, another block has
// already been built on it: a fork on root=prev.
func resolveSigner(r store.Reader, prev bigint.U256) (signer bigint.U256, isFork bool, err error) {
	exists, err := store.BlockExists(r, prev)
	if err != nil || !exists {
		return bigint.U256{}, false, err
	}
	acc, ok, err := store.FrontierGet(r, prev)
	if err != nil {
		return bigint.U256{}, false, err
	}
	if !ok {
		return bigint.U256{}, true, nil
	}
	return acc, false, nil
}

func processSend(w store.Writer, s *block.Send) (Result, error) {
	hash := s.Hash()
	if exists, err := store.BlockExists(w, hash); err != nil || exists {
		return Result{Code: Old}, err
	}
	prevExists, err := store.BlockExists(w, s.Previous_)
	if err != nil {
		return Result{}, err
	}
	if !prevExists {
		return Result{Code: GapPrevious}, nil
	}
	signer, fork, err := resolveSigner(w, s.Previous_)
	if err != nil {
		return Result{}, err
	}
	if fork {
		acc, _ := AccountOf(w, s.Previous_)
		return Result{Code: Fork, Account: acc}, nil
	}
	if !block.VerifySignature(s, signer) {
		return Result{Code: BadSignature}, nil
	}
	info, ok, err := store.AccountGet(w, signer)
	if err != nil {
		return Result{}, err
	}
	if !ok || info.Head != s.Previous_ {
		return Result{Code: Fork, Account: signer}, nil
	}
	if s.Balance.Cmp(info.Balance) > 0 {
		return Result{Code: NegativeSpend, Account: signer}, nil
	}
	amount, ok := info.Balance.Sub(s.Balance)
	if !ok {
		return Result{}, ErrUnknownBlock
	}

	if err := store.BlockPut(w, s, bigint.U256{}); err != nil {
		return Result{}, err
	}
	rep, err := representativeAt(w, info.RepBlock)
	if err != nil {
		return Result{}, err
	}
	if err := store.RepresentationDecrease(w, rep, amount); err != nil {
		return Result{}, err
	}
	if err := store.PendingPut(w, store.PendingKey{Destination: s.Destination, SendHash: hash}, store.PendingValue{Source: signer, Amount: amount}); err != nil {
		return Result{}, err
	}
	info.Head = hash
	info.Balance = s.Balance
	info.BlockCount++
	info.ModifiedSecs = now()
	if err := store.AccountPut(w, signer, info); err != nil {
		return Result{}, err
	}
	if err := store.FrontierDel(w, s.Previous_); err != nil {
		return Result{}, err
	}
	if err := store.FrontierPut(w, hash, signer); err != nil {
		return Result{}, err
	}
	if err := updateChecksum(w, signer, s.Previous_, hash); err != nil {
		return Result{}, err
	}
	if err := store.MaybeSnapshot(w, hash, info.BlockCount, signer, s.Balance); err != nil {
		return Result{}, err
	}
	return Result{Code: Progress, Account: signer, Amount: amount, PendingAccount: s.Destination}, nil
}

func processReceive(w store.Writer, rcv *block.Receive) (Result, error) {
	hash := rcv.Hash()
	if exists, err := store.BlockExists(w, hash); err != nil || exists {
		return Result{Code: Old}, err
	}
	prevExists, err := store.BlockExists(w, rcv.Previous_)
	if err != nil {
		return Result{}, err
	}
	if !prevExists {
		return Result{Code: GapPrevious}, nil
	}
	signer, fork, err := resolveSigner(w, rcv.Previous_)
	if err != nil {
		return Result{}, err
	}
	if fork {
		acc, _ := AccountOf(w, rcv.Previous_)
		return Result{Code: Fork, Account: acc}, nil
	}
	if !block.VerifySignature(rcv, signer) {
		return Result{Code: BadSignature}, nil
	}
	info, ok, err := store.AccountGet(w, signer)
	if err != nil {
		return Result{}, err
	}
	if !ok || info.Head != rcv.Previous_ {
		return Result{Code: Fork, Account: signer}, nil
	}
	sourceExists, err := store.BlockExists(w, rcv.Source)
	if err != nil {
		return Result{}, err
	}
	if !sourceExists {
		return Result{Code: GapSource, Account: signer}, nil
	}
	sourceBlock, _, _, err := store.BlockGet(w, rcv.Source)
	if err != nil {
		return Result{}, err
	}
	if sourceBlock.Kind() != block.KindSend {
		return Result{Code: NotReceiveFromSend, Account: signer}, nil
	}
	pv, ok, err := store.PendingGet(w, store.PendingKey{Destination: signer, SendHash: rcv.Source})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Code: Unreceivable, Account: signer}, nil
	}
	newBalance, ok := info.Balance.Add(pv.Amount)
	if !ok {
		return Result{}, ErrUnknownBlock
	}

	if err := store.BlockPut(w, rcv, bigint.U256{}); err != nil {
		return Result{}, err
	}
	if err := store.PendingDel(w, store.PendingKey{Destination: signer, SendHash: rcv.Source}); err != nil {
		return Result{}, err
	}
	rep, err := representativeAt(w, info.RepBlock)
	if err != nil {
		return Result{}, err
	}
	if err := store.RepresentationIncrease(w, rep, pv.Amount); err != nil {
		return Result{}, err
	}
	info.Head = hash
	info.Balance = newBalance
	info.BlockCount++
	info.ModifiedSecs = now()
	if err := store.AccountPut(w, signer, info); err != nil {
		return Result{}, err
	}
	if err := store.FrontierDel(w, rcv.Previous_); err != nil {
		return Result{}, err
	}
	if err := store.FrontierPut(w, hash, signer); err != nil {
		return Result{}, err
	}
	if err := updateChecksum(w, signer, rcv.Previous_, hash); err != nil {
		return Result{}, err
	}
	if err := store.MaybeSnapshot(w, hash, info.BlockCount, signer, newBalance); err != nil {
		return Result{}, err
	}
	return Result{Code: Progress, Account: signer, Amount: pv.Amount, PendingAccount: pv.Source}, nil
}

func processOpen(w store.Writer, o *block.Open) (Result, error) {
	hash := o.Hash()
	if exists, err := store.BlockExists(w, hash); err != nil || exists {
		return Result{Code: Old}, err
	}
	if o.Account == BurnAccount {
		return Result{Code: OpenedBurnAccount}, nil
	}
	alreadyOpen, err := store.AccountExists(w, o.Account)
	if err != nil {
		return Result{}, err
	}
	if alreadyOpen {
		return Result{Code: Fork, Account: o.Account}, nil
	}
	sourceExists, err := store.BlockExists(w, o.Source)
	if err != nil {
		return Result{}, err
	}
	if !sourceExists {
		return Result{Code: GapSource, Account: o.Account}, nil
	}
	sourceBlock, _, _, err := store.BlockGet(w, o.Source)
	if err != nil {
		return Result{}, err
	}
	send, isSend := sourceBlock.(*block.Send)
	if !isSend {
		return Result{Code: NotReceiveFromSend, Account: o.Account}, nil
	}
	if send.Destination != o.Account {
		return Result{Code: AccountMismatch, Account: o.Account}, nil
	}
	if !block.VerifySignature(o, o.Account) {
		return Result{Code: BadSignature}, nil
	}
	pv, ok, err := store.PendingGet(w, store.PendingKey{Destination: o.Account, SendHash: o.Source})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Code: Unreceivable, Account: o.Account}, nil
	}

	if err := store.BlockPut(w, o, bigint.U256{}); err != nil {
		return Result{}, err
	}
	if err := store.PendingDel(w, store.PendingKey{Destination: o.Account, SendHash: o.Source}); err != nil {
		return Result{}, err
	}
	if err := store.RepresentationIncrease(w, o.Representative, pv.Amount); err != nil {
		return Result{}, err
	}
	info := store.AccountInfo{
		Head:         hash,
		RepBlock:     hash,
		OpenBlock:    hash,
		Balance:      pv.Amount,
		ModifiedSecs: now(),
		BlockCount:   1,
	}
	if err := store.AccountPut(w, o.Account, info); err != nil {
		return Result{}, err
	}
	if err := store.FrontierPut(w, hash, o.Account); err != nil {
		return Result{}, err
	}
	if err := updateChecksum(w, o.Account, bigint.U256{}, hash); err != nil {
		return Result{}, err
	}
	if err := store.MaybeSnapshot(w, hash, 1, o.Account, pv.Amount); err != nil {
		return Result{}, err
	}
	return Result{Code: Progress, Account: o.Account, Amount: pv.Amount, PendingAccount: pv.Source}, nil
}

func processChange(w store.Writer, c *block.Change) (Result, error) {
	hash := c.Hash()
	if exists, err := store.BlockExists(w, hash); err != nil || exists {
		return Result{Code: Old}, err
	}
	prevExists, err := store.BlockExists(w, c.Previous_)
	if err != nil {
		return Result{}, err
	}
	if !prevExists {
		return Result{Code: GapPrevious}, nil
	}
	signer, fork, err := resolveSigner(w, c.Previous_)
	if err != nil {
		return Result{}, err
	}
	if fork {
		acc, _ := AccountOf(w, c.Previous_)
		return Result{Code: Fork, Account: acc}, nil
	}
	if !block.VerifySignature(c, signer) {
		return Result{Code: BadSignature}, nil
	}
	info, ok, err := store.AccountGet(w, signer)
	if err != nil {
		return Result{}, err
	}
	if !ok || info.Head != c.Previous_ {
		return Result{Code: Fork, Account: signer}, nil
	}
	oldRep, err := representativeAt(w, info.RepBlock)
	if err != nil {
		return Result{}, err
	}

	if err := store.BlockPut(w, c, bigint.U256{}); err != nil {
		return Result{}, err
	}
	if err := store.RepresentationDecrease(w, oldRep, info.Balance); err != nil {
		return Result{}, err
	}
	if err := store.RepresentationIncrease(w, c.Representative, info.Balance); err != nil {
		return Result{}, err
	}
	info.Head = hash
	info.RepBlock = hash
	info.BlockCount++
	info.ModifiedSecs = now()
	if err := store.AccountPut(w, signer, info); err != nil {
		return Result{}, err
	}
	if err := store.FrontierDel(w, c.Previous_); err != nil {
		return Result{}, err
	}
	if err := store.FrontierPut(w, hash, signer); err != nil {
		return Result{}, err
	}
	if err := updateChecksum(w, signer, c.Previous_, hash); err != nil {
		return Result{}, err
	}
	if err := store.MaybeSnapshot(w, hash, info.BlockCount, signer, info.Balance); err != nil {
		return Result{}, err
	}
	return Result{Code: Progress, Account: signer}, nil
}
