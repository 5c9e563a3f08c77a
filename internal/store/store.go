package store

import "github.com/tos-network/ralite/internal/log"

// Store is the opened environment: an Engine plus the schema-upgrade
// guarantee that by the time Open returns, MetaVersion == CurrentVersion.
type Store struct {
	*Engine
}

// Open opens path (or creates it), applying any pending schema upgrades
// before returning. A store initialization failure is fatal (spec §7
// class 4).
func Open(path string) (*Store, error) {
	e, err := OpenFile(path)
	if err != nil {
		log.Crit("failed to open store", "path", path, "err", err)
		return nil, err
	}
	s := &Store{Engine: e}
	if err := s.upgrade(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an ephemeral in-memory environment for tests and
// short-lived test networks, applying upgrades the same way Open does (a
// freshly created store has no version cell, so it reads as version 1 and
// runs every step, each of which finds nothing to rewrite).
func OpenMemory() (*Store, error) {
	e, err := newMemoryEngine()
	if err != nil {
		return nil, err
	}
	s := &Store{Engine: e}
	if err := s.upgrade(); err != nil {
		return nil, err
	}
	return s, nil
}
