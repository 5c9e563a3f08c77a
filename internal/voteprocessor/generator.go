package voteprocessor

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/store"
)

// sequenceCacheSize bounds the generator's write-through sequence
// cache; a representative node votes for a bounded working set of
// roots at a time, so this comfortably covers normal operation.
const sequenceCacheSize = 4096

// Generator produces this node's own votes (spec §4.8: vote_generate),
// keeping a write-through LRU of each local account's last-used
// sequence number so repeated generation for the same representative
// does not re-read the vote table on every call.
type Generator struct {
	store *store.Store
	cache *lru.Cache
}

func NewGenerator(s *store.Store) (*Generator, error) {
	c, err := lru.New(sequenceCacheSize)
	if err != nil {
		return nil, err
	}
	return &Generator{store: s, cache: c}, nil
}

// Generate signs blockHash as account's vote, using the next sequence
// number after whatever was last persisted (or cached), and persists
// the result before returning it.
func (g *Generator) Generate(account bigint.U256, priv [64]byte, blockHash bigint.U256) (store.StoredVote, error) {
	seq, err := g.nextSequence(account)
	if err != nil {
		return store.StoredVote{}, err
	}
	digest := signedDigest(blockHash, seq)
	sig := crypto25519.Sign(priv, digest[:])
	fresh := store.StoredVote{Sequence: seq, BlockHash: blockHash, Signature: sig}
	if err := g.store.Update(func(w store.Writer) error {
		return store.VotePut(w, account, fresh)
	}); err != nil {
		return store.StoredVote{}, err
	}
	g.cache.Add(account, seq)
	return fresh, nil
}

func (g *Generator) nextSequence(account bigint.U256) (uint64, error) {
	if v, ok := g.cache.Get(account); ok {
		return v.(uint64) + 1, nil
	}
	var seq uint64
	err := g.store.View(func(r store.Reader) error {
		stored, ok, e := store.VoteGet(r, account)
		if e != nil {
			return e
		}
		if ok {
			seq = stored.Sequence + 1
		}
		return nil
	})
	return seq, err
}
