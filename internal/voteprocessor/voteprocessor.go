// Package voteprocessor implements representative vote validation and
// generation (spec §4.8): each representative's highest-sequence vote
// is kept in the store's vote table, replays are rejected, and fresh
// votes are routed to whichever election is tracking the voted-for
// root.
package voteprocessor

import (
	"encoding/binary"
	"log/slog"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/log"
	"github.com/tos-network/ralite/internal/store"
)

// Outcome classifies the result of Validate (spec §4.8).
type Outcome int

const (
	Vote Outcome = iota
	Replay
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Vote:
		return "vote"
	case Replay:
		return "replay"
	default:
		return "invalid"
	}
}

func sequenceLE(seq uint64) [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], seq)
	return out
}

// signedDigest is the message a vote's signature actually covers:
// Blake2b(block.hash ‖ sequence_LE64).
func signedDigest(blockHash bigint.U256, sequence uint64) bigint.U256 {
	seq := sequenceLE(sequence)
	return crypto25519.Hash256(blockHash[:], seq[:])
}

// Validate checks a vote's signature and sequence against the stored
// vote for account, atomically replacing it when the new vote is
// strictly newer (spec §4.8).
func Validate(w store.Writer, account, blockHash bigint.U256, sequence uint64, sig bigint.U512) (Outcome, store.StoredVote, error) {
	digest := signedDigest(blockHash, sequence)
	if !crypto25519.Verify(account, digest[:], sig) {
		return Invalid, store.StoredVote{}, nil
	}
	stored, ok, err := store.VoteGet(w, account)
	if err != nil {
		return Invalid, store.StoredVote{}, err
	}
	if ok && stored.Sequence >= sequence {
		return Replay, stored, nil
	}
	fresh := store.StoredVote{Sequence: sequence, BlockHash: blockHash, Signature: sig}
	if err := store.VotePut(w, account, fresh); err != nil {
		return Invalid, store.StoredVote{}, err
	}
	return Vote, fresh, nil
}

// Processor wires Validate to the active elections manager: a fresh
// vote for a root currently under election is tallied immediately.
type Processor struct {
	store     *store.Store
	elections *election.Manager
	log       *slog.Logger
}

func New(s *store.Store, elections *election.Manager) *Processor {
	return &Processor{store: s, elections: elections, log: log.New("module", "voteprocessor")}
}

// HandleIncoming validates an incoming confirm_ack and, if it is a
// fresh vote, routes it to candidate's election (if one is active).
// candidate is the block payload carried alongside the vote in the
// confirm_ack message.
func (p *Processor) HandleIncoming(account bigint.U256, sequence uint64, sig bigint.U512, candidate block.Block) (Outcome, error) {
	var outcome Outcome
	err := p.store.Update(func(w store.Writer) error {
		var e error
		outcome, _, e = Validate(w, account, candidate.Hash(), sequence, sig)
		return e
	})
	if err != nil {
		return Invalid, err
	}
	if outcome == Vote {
		root := candidate.Root()
		if _, err := p.elections.Vote(root, election.Vote{Account: account, Block: candidate}); err != nil {
			p.log.Debug("vote for inactive election", "root", root, "err", err)
		}
	}
	return outcome, nil
}
