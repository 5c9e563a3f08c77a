// Package gapcache keeps short-term memory of blocks whose predecessors
// are unknown, so that enough representative weight endorsing a gap
// triggers a bootstrap attempt toward the peers that voted for it (spec
// §4.5).
package gapcache

import (
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tos-network/ralite/internal/bigint"
)

// MaxEntries bounds the cache at 256 recent gap records (spec §4.5).
const MaxEntries = 256

// Entry records one gap block's arrival and the set of representatives
// that have voted for its predecessor so far.
type Entry struct {
	Arrival     time.Time
	Predecessor bigint.U256
	Voters      map[bigint.U256]struct{} // representative -> voted
}

// Cache is a bounded LRU of gap Entry records keyed by predecessor
// hash, the same hashicorp/golang-lru library internal/voteprocessor's
// Generator uses for its own per-account cache.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func New() *Cache {
	c, err := lru.New(MaxEntries)
	if err != nil {
		// Only returned for a non-positive size, which MaxEntries never is.
		panic(err)
	}
	return &Cache{lru: c}
}

// Observe records that a block referencing predecessor has arrived but
// predecessor is not in the store, evicting the least-recently-used
// entry if the cache is full.
func (c *Cache) Observe(predecessor bigint.U256, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lru.Get(predecessor); ok {
		v.(*Entry).Arrival = now
		return
	}
	c.lru.Add(predecessor, &Entry{Arrival: now, Predecessor: predecessor, Voters: make(map[bigint.U256]struct{})})
}

// Vote records that rep has endorsed the gap on predecessor, returning
// the number of distinct voters now on record for it.
func (c *Cache) Vote(predecessor, rep bigint.U256) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(predecessor)
	if !ok {
		return 0
	}
	e := v.(*Entry)
	e.Voters[rep] = struct{}{}
	return len(e.Voters)
}

// Voters returns the representatives on record as having endorsed the
// gap on predecessor, used to target a bootstrap attempt at them.
func (c *Cache) Voters(predecessor bigint.U256) []bigint.U256 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(predecessor)
	if !ok {
		return nil
	}
	e := v.(*Entry)
	out := make([]bigint.U256, 0, len(e.Voters))
	for voter := range e.Voters {
		out = append(out, voter)
	}
	return out
}

// Forget removes predecessor's entry, typically once the gap is filled.
func (c *Cache) Forget(predecessor bigint.U256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(predecessor)
}

// Len reports how many gap records are currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// QuorumReached reports whether the endorsing weight for predecessor
// divided by onlineWeight meets or exceeds the configured gap-vote
// fraction (spec §4.5 default 1/16).
func QuorumReached(endorsingWeight, onlineWeight bigint.U128, num, den uint64) bool {
	if onlineWeight.IsZero() {
		return false
	}
	// endorsingWeight/onlineWeight >= num/den  <=>  endorsingWeight*den >= onlineWeight*num
	lhs := new(big.Int).Mul(endorsingWeight.Big(), new(big.Int).SetUint64(den))
	rhs := new(big.Int).Mul(onlineWeight.Big(), new(big.Int).SetUint64(num))
	return lhs.Cmp(rhs) >= 0
}
