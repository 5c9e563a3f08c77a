// Package network carries the parameters that the rest of the core treats
// as opaque constants elsewhere: magic bytes, work thresholds, genesis
// block fields, and the timer intervals that drive elections and gossip.
// Three presets are provided; nothing here reads a config file (external,
// per spec §1).
package network

import "time"

// Tag identifies a network by its two wire magic bytes.
type Tag [2]byte

var (
	TagTest = Tag{'R', 'A'}
	TagBeta = Tag{'R', 'B'}
	TagLive = Tag{'R', 'C'}
)

// Config bundles every network-dependent constant the core consults.
// It is constructed once at node startup and passed down explicitly;
// nothing in the core reads a package-level global.
type Config struct {
	Tag Tag

	// AddressPrefix is the short ticker prefixed onto human-readable
	// addresses, e.g. "ral".
	AddressPrefix string

	// WorkThreshold is the value crypto25519.WorkVerify compares
	// Blake2b-64(work‖root) against. Nothing in the core calls WorkVerify
	// with it, so blocks are not rejected for insufficient work.
	WorkThreshold uint64

	// GenesisAmount is the full 128-bit supply credited to the genesis
	// account's open block.
	GenesisAmount [16]byte

	// InactiveSupply is added to the genesis representative's weight
	// per the representation invariant (spec §3 invariant 3).
	InactiveSupply [16]byte

	// Timing.
	ElectionAnnounceInterval time.Duration
	KeepaliveInterval        time.Duration
	PeerCutoff               time.Duration
	BootstrapFrontierTimeout time.Duration
	BootstrapConnectionIdle  time.Duration
	BootstrapConnections     int

	// QuorumMinimumWeight is the floor for the quorum threshold so that
	// small test networks still make progress (spec §4.6).
	QuorumMinimumWeight [16]byte

	// GapVoteFractionNum/GapVoteFractionDen is the fraction of online
	// supply that must endorse a gap block before a bootstrap attempt
	// is triggered toward its voters (spec §4.5, default 1/16).
	GapVoteFractionNum uint64
	GapVoteFractionDen uint64
}

func maxAmount() [16]byte {
	var b [16]byte
	for i := range b {
		b[i] = 0xff
	}
	return b
}

// Test is the preset used by unit and integration tests: trivial work
// threshold, 10 ms election cadence.
func Test() Config {
	return Config{
		Tag:                      TagTest,
		AddressPrefix:            "rtt",
		WorkThreshold:            0, // any nonce satisfies it
		GenesisAmount:            maxAmount(),
		InactiveSupply:           [16]byte{},
		ElectionAnnounceInterval: 10 * time.Millisecond,
		KeepaliveInterval:        100 * time.Millisecond,
		PeerCutoff:               500 * time.Millisecond,
		BootstrapFrontierTimeout: 200 * time.Millisecond,
		BootstrapConnectionIdle:  200 * time.Millisecond,
		BootstrapConnections:     4,
		QuorumMinimumWeight:      [16]byte{},
		GapVoteFractionNum:       1,
		GapVoteFractionDen:       16,
	}
}

// Beta is the preset for the public test network.
func Beta() Config {
	c := Test()
	c.Tag = TagBeta
	c.AddressPrefix = "rtb"
	c.WorkThreshold = 0xffffff0000000000
	c.ElectionAnnounceInterval = 16 * time.Second
	c.KeepaliveInterval = 60 * time.Second
	c.PeerCutoff = 5 * 60 * time.Second
	c.BootstrapFrontierTimeout = 30 * time.Second
	c.BootstrapConnectionIdle = 15 * time.Second
	c.BootstrapConnections = 16
	return c
}

// Live is the preset for the production network.
func Live() Config {
	c := Beta()
	c.Tag = TagLive
	c.AddressPrefix = "ral"
	c.WorkThreshold = 0xffffffc000000000
	return c
}
