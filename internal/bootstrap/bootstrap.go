// Package bootstrap implements the TCP catch-up protocol a lagging node
// runs against a single peer: a frontier scan, a pull phase that fills
// every account whose local head disagrees with the peer's, and a push
// phase that sends back whatever the peer is missing (spec §4.12).
//
// Each connection is plain TCP framed with the same wire.Header every
// UDP message uses; frontier_req, bulk_pull and bulk_push payloads are
// streamed rather than length-prefixed, each terminated by its own
// sentinel.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/blockprocessor"
	"github.com/tos-network/ralite/internal/log"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/store"
	"github.com/tos-network/ralite/internal/wire"
)

// Dialer opens a connection to a bootstrap peer. Production wiring uses
// net.Dialer; tests substitute an in-memory net.Pipe pair.
type Dialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// NetDialer dials real TCP.
type NetDialer struct{ D net.Dialer }

func (d NetDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	return d.D.DialContext(ctx, "tcp", addr)
}

const maxPullAttempts = 3

// pullJob describes one account's outstanding catch-up range.
type pullJob struct {
	account    bigint.U256
	localHead  bigint.U256
	remoteHead bigint.U256
	attempts   int
}

// Attempt drives one bootstrap run against a single peer through the
// Idle → Frontier → Pulling → Pushing → Done state machine (spec §4.12,
// §4.13). A fresh Attempt is used per run.
type Attempt struct {
	store *store.Store
	proc  *blockprocessor.Processor

	dialer Dialer
	cfg    network.Config

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu       sync.Mutex
	pulls    []pullJob
	unsynced []bigint.U256

	log *slog.Logger
}

// NewAttempt builds an Attempt. The semaphore caps concurrent pull
// connections at cfg.BootstrapConnections; the limiter paces applied
// blocks per second, the per-connection rate counter the connection
// count is targeted against (spec §4.12).
func NewAttempt(s *store.Store, proc *blockprocessor.Processor, dialer Dialer, cfg network.Config) *Attempt {
	n := cfg.BootstrapConnections
	if n <= 0 {
		n = 1
	}
	return &Attempt{
		store:   s,
		proc:    proc,
		dialer:  dialer,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(n)),
		limiter: rate.NewLimiter(rate.Limit(2000*n), 2000*n),
		log:     log.New("module", "bootstrap"),
	}
}

// Run executes one full attempt against peerAddr.
func (a *Attempt) Run(ctx context.Context, peerAddr string) error {
	if err := a.frontier(ctx, peerAddr); err != nil {
		return fmt.Errorf("bootstrap frontier: %w", err)
	}
	if err := a.pullAll(ctx, peerAddr); err != nil {
		return fmt.Errorf("bootstrap pull: %w", err)
	}
	if err := a.push(ctx, peerAddr); err != nil {
		return fmt.Errorf("bootstrap push: %w", err)
	}
	a.log.Info("bootstrap attempt done", "peer", peerAddr, "pulled", len(a.pulls), "pushed", len(a.unsynced))
	return nil
}

func (a *Attempt) header(typ wire.Type) wire.Header {
	return wire.Header{Tag: a.cfg.Tag, VersionMax: 18, VersionUsing: 18, VersionMin: 17, Type: typ}
}

// frontier opens a connection, requests the peer's full account/head
// stream, and diffs it against the local ledger: disagreeing accounts
// become pull jobs, local-only accounts become push candidates (spec
// §4.12 step 1).
func (a *Attempt) frontier(ctx context.Context, peerAddr string) error {
	conn, err := a.dialer.Dial(ctx, peerAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := wire.FrontierReq{StartAccount: bigint.U256{}, Age: ^uint32(0), Count: ^uint32(0)}
	if _, err := conn.Write(wire.EncodeHeader(a.header(wire.TypeFrontierReq))); err != nil {
		return err
	}
	if _, err := conn.Write(wire.EncodeFrontierReq(req)); err != nil {
		return err
	}

	seenRemote := make(map[bigint.U256]struct{})
	r := bufio.NewReader(conn)
	buf := make([]byte, 64)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		pair, err := wire.DecodeFrontierPair(buf)
		if err != nil {
			return err
		}
		if pair.IsTerminator() {
			break
		}
		seenRemote[pair.Account] = struct{}{}

		var localHead bigint.U256
		info, ok, err := a.localAccount(pair.Account)
		if err != nil {
			return err
		}
		if ok {
			localHead = info.Head
		}
		if localHead != pair.Head {
			a.mu.Lock()
			a.pulls = append(a.pulls, pullJob{account: pair.Account, localHead: localHead, remoteHead: pair.Head})
			a.mu.Unlock()
		}
	}

	return a.store.View(func(rd store.Reader) error {
		return store.AccountIterate(rd, func(account bigint.U256, _ store.AccountInfo) error {
			if _, ok := seenRemote[account]; !ok {
				a.mu.Lock()
				a.unsynced = append(a.unsynced, account)
				a.mu.Unlock()
			}
			return nil
		})
	})
}

func (a *Attempt) localAccount(account bigint.U256) (store.AccountInfo, bool, error) {
	var info store.AccountInfo
	var ok bool
	err := a.store.View(func(r store.Reader) error {
		var e error
		info, ok, e = store.AccountGet(r, account)
		return e
	})
	return info, ok, err
}

// pullAll drains the pull queue across up to cfg.BootstrapConnections
// concurrent connections (spec §4.12 step 2).
func (a *Attempt) pullAll(ctx context.Context, peerAddr string) error {
	a.mu.Lock()
	jobs := a.pulls
	a.mu.Unlock()

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	for i := range jobs {
		job := jobs[i]
		if err := a.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer a.sem.Release(1)
			errs <- a.pullOne(ctx, peerAddr, job)
		}()
	}
	wg.Wait()
	close(errs)
	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// pullOne runs a single BulkPull over its own connection, retrying on a
// transport error for at most maxPullAttempts attempts in all (spec
// §4.12 step 2, §4.13).
func (a *Attempt) pullOne(ctx context.Context, peerAddr string, job pullJob) error {
	for job.attempts < maxPullAttempts {
		job.attempts++
		if err := a.runPull(ctx, peerAddr, job); err != nil {
			a.log.Warn("bulk_pull retrying", "account", job.account, "attempt", job.attempts, "err", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("bulk_pull: account %x: exceeded %d attempts", job.account, maxPullAttempts)
}

func (a *Attempt) runPull(ctx context.Context, peerAddr string, job pullJob) error {
	conn, err := a.dialer.Dial(ctx, peerAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(wire.EncodeHeader(a.header(wire.TypeBulkPull))); err != nil {
		return err
	}
	pull := wire.BulkPull{Start: job.remoteHead, End: job.localHead}
	if _, err := conn.Write(wire.EncodeBulkPull(pull)); err != nil {
		return err
	}

	r := bufio.NewReader(conn)
	for {
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		kind := block.Kind(kindByte)
		if kind == block.KindInvalid {
			return nil
		}
		size := block.Size(kind)
		if size == 0 {
			return wire.ErrBadEncoding
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return err
		}
		b, err := block.DecodeBinary(kind, body)
		if err != nil {
			return err
		}
		if err := a.limiter.WaitN(ctx, 1); err != nil {
			return err
		}
		a.proc.Enqueue(b, false, false)
	}
}

// push sends every locally-held account the peer never reported back:
// the full chain from genesis-reachable open block up to the local
// head, oldest block first, terminated by not_a_block (spec §4.12 step
// 3).
func (a *Attempt) push(ctx context.Context, peerAddr string) error {
	a.mu.Lock()
	unsynced := a.unsynced
	a.mu.Unlock()
	if len(unsynced) == 0 {
		return nil
	}

	conn, err := a.dialer.Dial(ctx, peerAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(wire.EncodeHeader(a.header(wire.TypeBulkPush))); err != nil {
		return err
	}

	for _, account := range unsynced {
		chain, err := a.chainFor(account)
		if err != nil {
			return err
		}
		for i := len(chain) - 1; i >= 0; i-- {
			if _, err := conn.Write(wire.EncodeBulkPushEntry(chain[i])); err != nil {
				return err
			}
		}
	}
	_, err = conn.Write(wire.BulkPushTerminator)
	return err
}

// chainFor walks account's chain backward from its current head,
// newest first, stopping at the open block.
func (a *Attempt) chainFor(account bigint.U256) ([]block.Block, error) {
	var out []block.Block
	err := a.store.View(func(r store.Reader) error {
		info, ok, err := store.AccountGet(r, account)
		if err != nil || !ok {
			return err
		}
		hash := info.Head
		for !hash.IsZero() {
			b, _, ok, err := store.BlockGet(r, hash)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("bootstrap: chain walk hit missing block")
			}
			out = append(out, b)
			if hash == info.OpenBlock {
				break
			}
			hash = b.Previous()
		}
		return nil
	})
	return out, err
}
