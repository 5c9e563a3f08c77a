package store

import (
	"encoding/binary"

	"github.com/tos-network/ralite/internal/bigint"
)

// AccountInfo is the accounts table value: the per-account head pointer
// and cached chain statistics (spec §3).
type AccountInfo struct {
	Head         bigint.U256
	RepBlock     bigint.U256
	OpenBlock    bigint.U256
	Balance      bigint.U128
	ModifiedSecs uint64
	BlockCount   uint64
}

const accountInfoSize = 32 + 32 + 32 + 16 + 8 + 8

func (a AccountInfo) encode() []byte {
	buf := make([]byte, 0, accountInfoSize)
	buf = append(buf, a.Head[:]...)
	buf = append(buf, a.RepBlock[:]...)
	buf = append(buf, a.OpenBlock[:]...)
	buf = append(buf, a.Balance[:]...)
	var m, c [8]byte
	binary.BigEndian.PutUint64(m[:], a.ModifiedSecs)
	binary.BigEndian.PutUint64(c[:], a.BlockCount)
	buf = append(buf, m[:]...)
	buf = append(buf, c[:]...)
	return buf
}

func decodeAccountInfo(b []byte) (AccountInfo, bool) {
	if len(b) != accountInfoSize {
		return AccountInfo{}, false
	}
	var a AccountInfo
	off := 0
	copy(a.Head[:], b[off:])
	off += 32
	copy(a.RepBlock[:], b[off:])
	off += 32
	copy(a.OpenBlock[:], b[off:])
	off += 32
	copy(a.Balance[:], b[off:])
	off += 16
	a.ModifiedSecs = binary.BigEndian.Uint64(b[off:])
	off += 8
	a.BlockCount = binary.BigEndian.Uint64(b[off:])
	return a, true
}

func accountKey(account bigint.U256) []byte { return key(tblAccounts, account[:]) }

// AccountGet reads the accounts table entry for account, if present.
func AccountGet(r Reader, account bigint.U256) (AccountInfo, bool, error) {
	v, ok, err := r.Get(accountKey(account))
	if err != nil || !ok {
		return AccountInfo{}, false, err
	}
	info, ok := decodeAccountInfo(v)
	if !ok {
		return AccountInfo{}, false, ErrCorrupt
	}
	return info, true, nil
}

// AccountPut writes (creating or overwriting) the accounts table entry.
func AccountPut(w Writer, account bigint.U256, info AccountInfo) error {
	return w.Put(accountKey(account), info.encode())
}

// AccountDel removes the accounts table entry. Ledger rollback calls it
// when undoing an account's open block.
func AccountDel(w Writer, account bigint.U256) error {
	return w.Delete(accountKey(account))
}

// AccountExists reports whether account has ever been opened.
func AccountExists(r Reader, account bigint.U256) (bool, error) {
	return r.Has(accountKey(account))
}

// AccountIterate walks every account entry in key order.
func AccountIterate(r Reader, fn func(account bigint.U256, info AccountInfo) error) error {
	it := r.Iterator(prefixOf(tblAccounts))
	defer it.Release()
	for it.Next() {
		var acc bigint.U256
		copy(acc[:], it.Key()[1:])
		info, ok := decodeAccountInfo(it.Value())
		if !ok {
			return ErrCorrupt
		}
		if err := fn(acc, info); err != nil {
			return err
		}
	}
	return it.Error()
}

func frontierKey(hash bigint.U256) []byte { return key(tblFrontiers, hash[:]) }

// FrontierGet resolves a block hash to the account whose head it is.
func FrontierGet(r Reader, hash bigint.U256) (bigint.U256, bool, error) {
	v, ok, err := r.Get(frontierKey(hash))
	if err != nil || !ok {
		return bigint.U256{}, false, err
	}
	return bigint.U256FromBytes(v), true, nil
}

// FrontierPut records hash as the head of account.
func FrontierPut(w Writer, hash, account bigint.U256) error {
	return w.Put(frontierKey(hash), account[:])
}

// FrontierDel removes the reverse index entry for hash.
func FrontierDel(w Writer, hash bigint.U256) error {
	return w.Delete(frontierKey(hash))
}
