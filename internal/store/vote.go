package store

import (
	"encoding/binary"

	"github.com/tos-network/ralite/internal/bigint"
)

// StoredVote is the highest-sequence vote observed per representative
// (spec §3, §4.8). BlockHash is kept rather than the full block payload;
// the voted-for block itself is always separately reachable via
// BlockGet/the election's candidate set, so this keeps the table
// fixed-width.
type StoredVote struct {
	Sequence  uint64
	BlockHash bigint.U256
	Signature bigint.U512
}

const storedVoteSize = 8 + 32 + 64

func voteKey(account bigint.U256) []byte { return key(tblVote, account[:]) }

func (v StoredVote) encode() []byte {
	buf := make([]byte, 0, storedVoteSize)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], v.Sequence)
	buf = append(buf, seq[:]...)
	buf = append(buf, v.BlockHash[:]...)
	buf = append(buf, v.Signature[:]...)
	return buf
}

func decodeStoredVote(b []byte) (StoredVote, bool) {
	if len(b) != storedVoteSize {
		return StoredVote{}, false
	}
	var v StoredVote
	v.Sequence = binary.BigEndian.Uint64(b[:8])
	copy(v.BlockHash[:], b[8:40])
	copy(v.Signature[:], b[40:])
	return v, true
}

func VoteGet(r Reader, account bigint.U256) (StoredVote, bool, error) {
	v, ok, err := r.Get(voteKey(account))
	if err != nil || !ok {
		return StoredVote{}, false, err
	}
	sv, ok := decodeStoredVote(v)
	if !ok {
		return StoredVote{}, false, ErrCorrupt
	}
	return sv, true, nil
}

func VotePut(w Writer, account bigint.U256, v StoredVote) error {
	return w.Put(voteKey(account), v.encode())
}
