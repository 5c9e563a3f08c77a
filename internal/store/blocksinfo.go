package store

import "github.com/tos-network/ralite/internal/bigint"

// BlockInfoInterval is the chain-length stride at which a blocks_info
// snapshot is written (spec §3: "every N (=32) blocks").
const BlockInfoInterval = 32

// BlockInfo is a sparse {account, balance-after} snapshot used to
// accelerate account(hash) lookups without walking the full chain.
type BlockInfo struct {
	Account bigint.U256
	Balance bigint.U128
}

func blocksInfoKey(hash bigint.U256) []byte { return key(tblBlocksInfo, hash[:]) }

func (b BlockInfo) encode() []byte {
	buf := make([]byte, 0, 48)
	buf = append(buf, b.Account[:]...)
	buf = append(buf, b.Balance[:]...)
	return buf
}

func decodeBlockInfo(b []byte) (BlockInfo, bool) {
	if len(b) != 48 {
		return BlockInfo{}, false
	}
	var out BlockInfo
	copy(out.Account[:], b[:32])
	copy(out.Balance[:], b[32:])
	return out, true
}

func BlocksInfoGet(r Reader, hash bigint.U256) (BlockInfo, bool, error) {
	v, ok, err := r.Get(blocksInfoKey(hash))
	if err != nil || !ok {
		return BlockInfo{}, false, err
	}
	info, ok := decodeBlockInfo(v)
	if !ok {
		return BlockInfo{}, false, ErrCorrupt
	}
	return info, true, nil
}

func BlocksInfoPut(w Writer, hash bigint.U256, info BlockInfo) error {
	return w.Put(blocksInfoKey(hash), info.encode())
}

func BlocksInfoDel(w Writer, hash bigint.U256) error {
	return w.Delete(blocksInfoKey(hash))
}

// MaybeSnapshot writes a blocks_info entry for hash iff blockCount (the
// chain length including hash) is a multiple of BlockInfoInterval.
func MaybeSnapshot(w Writer, hash bigint.U256, blockCount uint64, account bigint.U256, balance bigint.U128) error {
	if blockCount%BlockInfoInterval != 0 {
		return nil
	}
	return BlocksInfoPut(w, hash, BlockInfo{Account: account, Balance: balance})
}
