// Package blockprocessor implements the serialized insertion pipeline
// between the network and the ledger (spec §4.7): a single-consumer
// queue that applies incoming blocks under write transactions, stashes
// blocks with unknown dependencies in the unchecked table, and hands
// forks off to the active elections manager.
package blockprocessor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/election"
	"github.com/tos-network/ralite/internal/gapcache"
	"github.com/tos-network/ralite/internal/ledger"
	"github.com/tos-network/ralite/internal/log"
	"github.com/tos-network/ralite/internal/store"
)

// Item is one unit of work handed to the processor: a block plus
// whether it should be rolled-back-and-replaced if it turns out to
// fork the current chain (bootstrap pulls never force; live
// confirmations from a settled election do).
type Item struct {
	Block block.Block
	Force bool
	Live  bool
}

// Observer is notified once a block has been durably applied.
type Observer func(b block.Block, live bool)

// Processor drains a bounded queue of Items on a single goroutine,
// applying each one to the ledger under its own write transaction
// (spec §5: "at most one outstanding write transaction in the
// process").
type Processor struct {
	store     *store.Store
	elections *election.Manager
	gaps      *gapcache.Cache

	items chan Item

	mu        sync.Mutex
	cond      *sync.Cond
	pending   int
	observers []Observer

	log *slog.Logger
}

// New builds a Processor. queueSize bounds the channel the network
// and bootstrap threads hand work through.
func New(s *store.Store, elections *election.Manager, gaps *gapcache.Cache, queueSize int) *Processor {
	if queueSize <= 0 {
		queueSize = 4096
	}
	p := &Processor{
		store:     s,
		elections: elections,
		gaps:      gaps,
		items:     make(chan Item, queueSize),
		log:       log.New("module", "blockprocessor"),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Subscribe registers obs to be called once per block reaching
// Progress, whether freshly processed or released out of unchecked.
func (p *Processor) Subscribe(obs Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs)
}

// Enqueue hands b to the processor. It blocks only if the queue is
// full, providing the back-pressure network readers suspend on
// (spec §5).
func (p *Processor) Enqueue(b block.Block, force, live bool) {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()
	p.items <- Item{Block: b, Force: force, Live: live}
}

// Run drains the queue until ctx is cancelled. It is meant to run on
// its own goroutine; the processor does all of its work on this one
// goroutine by design (spec §5: "single-threaded consumer loop").
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.items:
			if err := p.store.Update(func(w store.Writer) error {
				return p.applyLocked(w, item)
			}); err != nil {
				p.log.Error("apply failed", "err", err)
			}
			p.mu.Lock()
			p.pending--
			if p.pending == 0 {
				p.cond.Broadcast()
			}
			p.mu.Unlock()
		}
	}
}

// Flush blocks until the queue is empty and the processor is idle.
func (p *Processor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.cond.Wait()
	}
}

func (p *Processor) applyLocked(w store.Writer, item Item) error {
	res, err := ledger.Process(w, item.Block)
	if err != nil {
		return err
	}
	switch res.Code {
	case ledger.Progress:
		p.notify(item.Block, item.Live)
		if item.Live {
			p.elections.Start(item.Block.Root(), item.Block)
		}
		return p.applyUnchecked(w, item.Block.Hash())
	case ledger.GapPrevious:
		return p.stashGap(w, item.Block.Previous(), item.Block)
	case ledger.GapSource:
		src, ok := sourceOf(item.Block)
		if !ok {
			return nil
		}
		return p.stashGap(w, src, item.Block)
	case ledger.Fork:
		return p.handleFork(w, item)
	default:
		p.log.Debug("block dropped", "code", res.Code.String(), "hash", item.Block.Hash())
		return nil
	}
}

// stashGap records b as waiting on missing, and notes the gap so a
// quorum of endorsing votes can trigger a bootstrap attempt (spec
// §4.5, §4.7).
func (p *Processor) stashGap(w store.Writer, missing bigint.U256, b block.Block) error {
	if err := store.UncheckedPut(w, missing, b); err != nil {
		return err
	}
	p.gaps.Observe(missing, time.Now())
	return nil
}

// applyUnchecked re-drives every block that was waiting on hash,
// recursively, now that hash itself has landed.
func (p *Processor) applyUnchecked(w store.Writer, hash bigint.U256) error {
	waiters, err := store.UncheckedGet(w, hash)
	if err != nil {
		return err
	}
	for _, waiter := range waiters {
		if err := store.UncheckedDel(w, hash, waiter.Hash()); err != nil {
			return err
		}
		res, err := ledger.Process(w, waiter)
		if err != nil {
			return err
		}
		switch res.Code {
		case ledger.Progress:
			p.notify(waiter, false)
			p.gaps.Forget(hash)
			if err := p.applyUnchecked(w, waiter.Hash()); err != nil {
				return err
			}
		case ledger.GapPrevious:
			if err := p.stashGap(w, waiter.Previous(), waiter); err != nil {
				return err
			}
		case ledger.GapSource:
			if src, ok := sourceOf(waiter); ok {
				if err := p.stashGap(w, src, waiter); err != nil {
					return err
				}
			}
		default:
			p.log.Debug("unchecked block dropped", "code", res.Code.String(), "hash", waiter.Hash())
		}
	}
	return nil
}

// handleFork resolves a Fork result: with force it rolls the ledger
// back to the competing block and reapplies item.Block; otherwise it
// starts (or joins) an election tracking the two competitors.
func (p *Processor) handleFork(w store.Writer, item Item) error {
	competing, err := competingBlock(w, item.Block)
	if err != nil {
		return err
	}
	if competing == nil {
		return nil
	}
	if !item.Force {
		p.elections.Start(item.Block.Root(), competing)
		return nil
	}
	if err := ledger.Rollback(w, competing.Hash()); err != nil {
		return err
	}
	res, err := ledger.Process(w, item.Block)
	if err != nil {
		return err
	}
	if res.Code != ledger.Progress {
		return nil
	}
	p.notify(item.Block, item.Live)
	return p.applyUnchecked(w, item.Block.Hash())
}

func (p *Processor) notify(b block.Block, live bool) {
	p.mu.Lock()
	obs := append([]Observer(nil), p.observers...)
	p.mu.Unlock()
	for _, o := range obs {
		o(b, live)
	}
}

// sourceOf returns the source hash a receive or open block claims,
// the dependency GapSource is waiting on.
func sourceOf(b block.Block) (bigint.U256, bool) {
	switch v := b.(type) {
	case *block.Receive:
		return v.Source, true
	case *block.Open:
		return v.Source, true
	default:
		return bigint.U256{}, false
	}
}

// competingBlock returns whatever block currently occupies b's root
// in the ledger: the account's open block if b is itself an open, or
// the recorded successor of b's previous-block root otherwise.
func competingBlock(r store.Reader, b block.Block) (block.Block, error) {
	root := b.Root()
	if _, isOpen := b.(*block.Open); isOpen {
		info, ok, err := store.AccountGet(r, root)
		if err != nil || !ok {
			return nil, err
		}
		blk, _, ok, err := store.BlockGet(r, info.OpenBlock)
		if !ok {
			return nil, err
		}
		return blk, nil
	}
	succ, ok, err := store.BlockSuccessor(r, root)
	if err != nil || !ok || succ.IsZero() {
		return nil, err
	}
	blk, _, ok, err := store.BlockGet(r, succ)
	if !ok {
		return nil, err
	}
	return blk, nil
}
