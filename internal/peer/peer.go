// Package peer tracks the set of known network endpoints: contact and
// attempt timestamps, representative weight, and protocol version. The
// table is sharded across a fixed number of buckets, each
// independently locked, with cespare/xxhash picking the shard for a
// given endpoint — a striped-map shape well suited to a high-churn
// lookup table touched on every keepalive and gossip round.
package peer

import (
	"encoding/binary"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tos-network/ralite/internal/bigint"
)

// Endpoint is always IPv6; IPv4 peers are stored v6-mapped (spec
// §4.10).
type Endpoint struct {
	IP   [16]byte
	Port uint16
}

func (e Endpoint) key() [18]byte {
	var k [18]byte
	copy(k[:16], e.IP[:])
	binary.BigEndian.PutUint16(k[16:], e.Port)
	return k
}

// FromUDPAddr builds an Endpoint from a standard net.UDPAddr,
// v6-mapping a bare IPv4 address.
func FromUDPAddr(addr *net.UDPAddr) Endpoint {
	var ep Endpoint
	copy(ep.IP[:], addr.IP.To16())
	ep.Port = uint16(addr.Port)
	return ep
}

// Entry is one tracked peer's full state.
type Entry struct {
	Endpoint      Endpoint
	LastContact   time.Time
	LastAttempt   time.Time
	LastBootstrap time.Time
	LastRepReq    time.Time
	LastRepResp   time.Time
	RepWeight     bigint.U128
	RepAccount    bigint.U256
	Version       uint8
}

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[[18]byte]*Entry
}

// Set is the node's peer table (spec §4.10).
type Set struct {
	self        Endpoint
	reachouts   sync.Map // Endpoint -> time.Time, last keepalive sent
	reachoutTTL time.Duration
	shards      [shardCount]*shard
}

// New builds an empty Set. self is this node's own endpoint, rejected
// from ever being inserted as a peer; reachoutTTL bounds how often a
// keepalive may be resent to the same endpoint.
func New(self Endpoint, reachoutTTL time.Duration) *Set {
	s := &Set{self: self, reachoutTTL: reachoutTTL}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[[18]byte]*Entry)}
	}
	return s
}

func (s *Set) shardFor(ep Endpoint) *shard {
	k := ep.key()
	h := xxhash.Sum64(k[:])
	return s.shards[h%uint64(len(s.shards))]
}

// Reserved reports whether ep falls in a range the protocol refuses
// to ever contact: unspecified, IETF documentation (2001:db8::/32 and
// its IPv4-mapped v4 counterpart 192.0.2.0/24 family), or multicast
// (spec §4.10).
func Reserved(ep Endpoint) bool {
	ip := net.IP(ep.IP[:])
	if ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		return v4[0] == 192 && v4[1] == 0 && v4[2] == 2
	}
	return ip[0] == 0x20 && ip[1] == 0x01 && ip[2] == 0x0d && ip[3] == 0xb8
}

// Insert adds ep if it is new (and not reserved or self), returning
// whether it was actually added.
func (s *Set) Insert(ep Endpoint, version uint8) bool {
	if ep == s.self || Reserved(ep) {
		return false
	}
	sh := s.shardFor(ep)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k := ep.key()
	if _, ok := sh.entries[k]; ok {
		return false
	}
	sh.entries[k] = &Entry{Endpoint: ep, Version: version}
	return true
}

// Contacted upserts ep's last-contact timestamp, inserting it first
// if unseen.
func (s *Set) Contacted(ep Endpoint, version uint8, now time.Time) {
	if ep == s.self || Reserved(ep) {
		return
	}
	sh := s.shardFor(ep)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k := ep.key()
	e, ok := sh.entries[k]
	if !ok {
		e = &Entry{Endpoint: ep}
		sh.entries[k] = e
	}
	e.LastContact = now
	e.Version = version
}

// SetRepWeight records the representative weight and account
// associated with ep, learned from a rep_resp.
func (s *Set) SetRepWeight(ep Endpoint, account bigint.U256, weight bigint.U128) {
	sh := s.shardFor(ep)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[ep.key()]; ok {
		e.RepAccount = account
		e.RepWeight = weight
	}
}

// Get returns a copy of ep's entry, if tracked.
func (s *Set) Get(ep Endpoint) (Entry, bool) {
	sh := s.shardFor(ep)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[ep.key()]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len reports how many peers are currently tracked.
func (s *Set) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

func (s *Set) all() []Entry {
	out := make([]Entry, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.entries {
			out = append(out, *e)
		}
		sh.mu.Unlock()
	}
	return out
}

// RandomFill fills out with up to len(out) distinct peers chosen
// uniformly at random, returning the number filled.
func (s *Set) RandomFill(out []Endpoint) int {
	entries := s.all()
	rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	n := 0
	for n < len(out) && n < len(entries) {
		out[n] = entries[n].Endpoint
		n++
	}
	return n
}

// ListSqrt returns ceil(sqrt(n)) random peers, the gossip fan-out
// sample (spec §4.10, §4.11).
func (s *Set) ListSqrt() []Endpoint {
	entries := s.all()
	n := sqrtCeil(len(entries))
	rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	out := make([]Endpoint, 0, n)
	for i := 0; i < n && i < len(entries); i++ {
		out = append(out, entries[i].Endpoint)
	}
	return out
}

func sqrtCeil(n int) int {
	if n <= 0 {
		return 0
	}
	r := 0
	for r*r < n {
		r++
	}
	return r
}

// Representatives returns the k peers with the highest recorded
// representative weight.
func (s *Set) Representatives(k int) []Entry {
	entries := s.all()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RepWeight.Cmp(entries[j].RepWeight) > 0
	})
	if k > len(entries) {
		k = len(entries)
	}
	return entries[:k]
}

// Purge evicts every peer whose last contact is older than cutoff.
func (s *Set) Purge(cutoff time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if e.LastContact.Before(cutoff) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Reachout reports whether a keepalive to ep is permitted right now,
// recording this attempt if so. It guards against sending the same
// endpoint more than one keepalive per reachoutTTL (spec §4.10).
func (s *Set) Reachout(ep Endpoint, now time.Time) bool {
	if v, ok := s.reachouts.Load(ep); ok {
		if now.Sub(v.(time.Time)) < s.reachoutTTL {
			return false
		}
	}
	s.reachouts.Store(ep, now)
	return true
}
