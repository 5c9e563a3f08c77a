// Package election implements per-fork vote tallying, quorum checks, and
// confirmation — the active elections manager (spec §4.6). One election
// exists per contested root at a time; votes from representatives are
// tallied by weight, and a provisional winner is confirmed once its
// weight crosses quorum or four announcement rounds pass without the
// winner changing.
package election

import (
	"sync"
	"time"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

// WeightSource resolves a representative's current voting weight; in
// the running node this is backed by the store's representation table.
type WeightSource interface {
	Weight(account bigint.U256) (bigint.U128, error)
	// TotalWeight sums the representation table, standing in for "online
	// supply" (spec §4.6); see DESIGN.md for why full peer-liveness
	// weighting is out of scope here.
	TotalWeight() (bigint.U128, error)
}

// Vote is one representative's endorsement of a specific block for a
// root this election is tracking.
type Vote struct {
	Account bigint.U256
	Block   block.Block
}

// Status is returned by Election.Tally after each vote.
type Status int

const (
	Unchanged Status = iota
	Changed
	Confirmed
)

// Election tracks one contested root (spec §4.6).
type Election struct {
	mu sync.Mutex

	root       bigint.U256
	weights    WeightSource
	repVotes   map[bigint.U256]block.Block // representative -> latest block observed
	lastWinner block.Block
	lastVote   time.Time
	announce   int
	confirmed  bool
}

// New starts tracking an election for block's root, seeding the
// provisional winner with block itself (the first-seen candidate).
func New(root bigint.U256, seed block.Block, weights WeightSource) *Election {
	return &Election{
		root:       root,
		weights:    weights,
		repVotes:   make(map[bigint.U256]block.Block),
		lastWinner: seed,
	}
}

func (e *Election) Root() bigint.U256 { return e.root }

// Winner returns the current provisional (or, once Confirmed, final)
// winning block.
func (e *Election) Winner() block.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastWinner
}

func (e *Election) Confirmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmed
}

// Vote records rep's endorsement of a candidate block for this
// election's root and re-tallies. v.Block.Root() must equal e.Root();
// callers are expected to have checked this already (the manager routes
// votes by root).
func (e *Election) Vote(v Vote, quorum bigint.U128, now time.Time) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.confirmed {
		return Unchanged
	}
	e.repVotes[v.Account] = v.Block
	e.lastVote = now
	return e.tallyLocked(quorum)
}

// candidateWeights sums, per distinct candidate block hash, the weight
// of every representative currently voting for it.
func (e *Election) candidateWeights() (map[bigint.U256]bigint.U128, map[bigint.U256]block.Block) {
	sums := make(map[bigint.U256]bigint.U128)
	blocks := make(map[bigint.U256]block.Block)
	for rep, b := range e.repVotes {
		w, err := e.weights.Weight(rep)
		if err != nil {
			continue
		}
		h := b.Hash()
		blocks[h] = b
		sum, ok := sums[h].Add(w)
		if !ok {
			sum = w
		}
		sums[h] = sum
	}
	return sums, blocks
}

func (e *Election) tallyLocked(quorum bigint.U128) Status {
	sums, blocks := e.candidateWeights()
	var bestHash bigint.U256
	var bestWeight bigint.U128
	found := false
	for h, w := range sums {
		if !found || w.Cmp(bestWeight) > 0 {
			bestHash, bestWeight, found = h, w, true
		}
	}
	if !found {
		return Unchanged
	}
	winner := blocks[bestHash]
	status := Unchanged
	if e.lastWinner == nil || e.lastWinner.Hash() != bestHash {
		e.lastWinner = winner
		e.announce = 0
		status = Changed
	}
	if bestWeight.Cmp(quorum) >= 0 {
		e.confirmed = true
		return Confirmed
	}
	return status
}

// Announce records one announcement round having passed without a
// quorum confirmation, declaring the provisional winner confirmed
// outright after four consecutive rounds with no change (spec §4.6).
func (e *Election) Announce() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.confirmed {
		return Unchanged
	}
	e.announce++
	if e.announce >= 4 {
		e.confirmed = true
		return Confirmed
	}
	return Unchanged
}
