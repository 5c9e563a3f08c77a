package election

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

// ErrNoElection is returned by Vote when root has no active election.
type ErrNoElection struct{ Root bigint.U256 }

func (e ErrNoElection) Error() string { return "election: no active election for root" }

// MaxAnnouncePerRound caps how many elections are serviced by one
// announcement round (spec §4.6: "the manager picks the 32 lowest-root-hash
// active elections").
const MaxAnnouncePerRound = 32

// ConfirmFunc is invoked exactly once per election, when it is confirmed
// either by quorum or by four stale announcement rounds. winner is the
// block the election settled on; it may differ from whatever the ledger
// currently holds for root, in which case the caller is expected to roll
// the ledger back to the fork point and reapply winner.
type ConfirmFunc func(root bigint.U256, winner block.Block)

// Announcement is one root due for a confirm_req rebroadcast this round.
type Announcement struct {
	Root   bigint.U256
	Winner block.Block
}

// Manager holds the set of currently active elections, enforcing at most
// one election per root and driving the periodic announcement loop (spec
// §4.6).
type Manager struct {
	mu        sync.Mutex
	elections map[bigint.U256]*Election
	weights   WeightSource
	minWeight bigint.U128
	onConfirm ConfirmFunc
}

// NewManager builds a Manager. minWeight is the network's configured
// quorum floor (network.Config.QuorumMinimumWeight); quorum is otherwise
// half the current total representation weight plus one, per spec §4.6.
func NewManager(weights WeightSource, minWeight bigint.U128, onConfirm ConfirmFunc) *Manager {
	return &Manager{
		elections: make(map[bigint.U256]*Election),
		weights:   weights,
		minWeight: minWeight,
		onConfirm: onConfirm,
	}
}

// Start begins tracking root's election, seeded with block as the
// provisional winner. If an election for root already exists it is
// returned unchanged (at most one election per root).
func (m *Manager) Start(root bigint.U256, seed block.Block) *Election {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.elections[root]; ok {
		return el
	}
	el := New(root, seed, m.weights)
	m.elections[root] = el
	return el
}

// Active reports whether root currently has an election in progress.
func (m *Manager) Active(root bigint.U256) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.elections[root]
	return ok
}

// Len reports how many elections are currently active.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.elections)
}

// quorumLocked computes the confirmation threshold for the current total
// weight: max(total/2+1, minWeight).
func (m *Manager) quorumLocked() (bigint.U128, error) {
	total, err := m.weights.TotalWeight()
	if err != nil {
		return bigint.U128{}, err
	}
	half := halfPlusOne(total)
	if half.Cmp(m.minWeight) > 0 {
		return half, nil
	}
	return m.minWeight, nil
}

// halfPlusOne computes floor(w/2)+1, saturating at the 128-bit max
// rather than erroring (w is already a valid U128, so w/2+1 always fits).
func halfPlusOne(w bigint.U128) bigint.U128 {
	n := new(big.Int).Rsh(w.Big(), 1)
	n.Add(n, big.NewInt(1))
	out, err := bigint.U128FromBig(n)
	if err != nil {
		for i := range out {
			out[i] = 0xff
		}
	}
	return out
}

// Vote routes a representative's endorsement to the election for
// root, re-tallying it. If tallying confirms the election it is
// removed from the active set and onConfirm is invoked.
func (m *Manager) Vote(root bigint.U256, v Vote) (Status, error) {
	m.mu.Lock()
	el, ok := m.elections[root]
	m.mu.Unlock()
	if !ok {
		return Unchanged, ErrNoElection{Root: root}
	}
	quorum, err := m.quorumLocked()
	if err != nil {
		return Unchanged, err
	}
	status := el.Vote(v, quorum, time.Now())
	if status == Confirmed {
		m.finish(el)
	}
	return status, nil
}

// AnnouncementRound advances one announcement tick (spec §4.6: every
// 16s, test networks 10ms): it selects up to MaxAnnouncePerRound active
// elections ordered by ascending root hash, advances each one's
// announcement counter, finishes any that become confirmed as a result,
// and returns the confirm_req rebroadcast work for everything still
// active so the caller can gossip it to a peer sample.
func (m *Manager) AnnouncementRound() []Announcement {
	m.mu.Lock()
	roots := make([]bigint.U256, 0, len(m.elections))
	for root := range m.elections {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return lessU256(roots[i], roots[j])
	})
	if len(roots) > MaxAnnouncePerRound {
		roots = roots[:MaxAnnouncePerRound]
	}
	elections := make([]*Election, 0, len(roots))
	for _, root := range roots {
		elections = append(elections, m.elections[root])
	}
	m.mu.Unlock()

	out := make([]Announcement, 0, len(elections))
	for _, el := range elections {
		if el.Announce() == Confirmed {
			m.finish(el)
			continue
		}
		out = append(out, Announcement{Root: el.Root(), Winner: el.Winner()})
	}
	return out
}

func (m *Manager) finish(el *Election) {
	m.mu.Lock()
	delete(m.elections, el.root)
	m.mu.Unlock()
	if m.onConfirm != nil {
		m.onConfirm(el.Root(), el.Winner())
	}
}

func lessU256(a, b bigint.U256) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
