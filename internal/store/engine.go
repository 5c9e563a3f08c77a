// Package store implements the transactional multi-table key/value
// environment the ledger is built on (spec §3, §4.3): one environment,
// single-writer/multi-reader with snapshot isolation, backed by
// goleveldb — either on disk or, for tests and ephemeral networks, an
// in-memory storage instance from the same library.
package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Engine is the low-level transactional handle the rest of this package
// builds the table API on top of. It deliberately exposes nothing but
// byte-slice get/put/delete/iterate so every table-specific concern
// (encoding, successor rewriting, schema version) lives above it.
type Engine struct {
	db *leveldb.DB
}

// OpenFile opens (creating if absent) an on-disk environment at path.
func OpenFile(path string) (*Engine, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db}, nil
}

// newMemoryEngine opens an ephemeral in-memory environment, used by tests
// and short-lived test networks.
func newMemoryEngine() (*Engine, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

// View runs fn against a read-only snapshot; it may run concurrently with
// other readers and with an in-flight writer (spec §5).
func (e *Engine) View(fn func(r Reader) error) error {
	snap, err := e.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(snapshotReader{snap})
}

// Update runs fn inside a single write transaction; at most one is
// outstanding at a time (spec §5). fn's changes are committed iff it
// returns nil.
func (e *Engine) Update(fn func(w Writer) error) error {
	tx, err := e.db.OpenTransaction()
	if err != nil {
		return err
	}
	if err := fn(txnWriter{tx}); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// Reader is the read-only surface available inside View and, via
// embedding, inside Update.
type Reader interface {
	Get(key []byte) ([]byte, bool, error)
	Has(key []byte) (bool, error)
	Iterator(prefix []byte) Iterator
}

// Writer extends Reader with mutation; available only inside Update.
type Writer interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator walks keys sharing a prefix in ascending order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

type snapshotReader struct{ snap *leveldb.Snapshot }

func (s snapshotReader) Get(key []byte) ([]byte, bool, error) {
	v, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s snapshotReader) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s snapshotReader) Iterator(prefix []byte) Iterator {
	return &iterAdapter{it: s.snap.NewIterator(rangeFor(prefix), nil)}
}

type txnWriter struct{ tx *leveldb.Transaction }

func (w txnWriter) Get(key []byte) ([]byte, bool, error) {
	v, err := w.tx.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (w txnWriter) Has(key []byte) (bool, error) { return w.tx.Has(key, nil) }

func (w txnWriter) Iterator(prefix []byte) Iterator {
	return &iterAdapter{it: w.tx.NewIterator(rangeFor(prefix), nil)}
}

func (w txnWriter) Put(key, value []byte) error { return w.tx.Put(key, value, nil) }
func (w txnWriter) Delete(key []byte) error      { return w.tx.Delete(key, nil) }

type iterAdapter struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
		Error() error
	}
}

func (a *iterAdapter) Next() bool      { return a.it.Next() }
func (a *iterAdapter) Key() []byte     { return a.it.Key() }
func (a *iterAdapter) Value() []byte   { return a.it.Value() }
func (a *iterAdapter) Release()        { a.it.Release() }
func (a *iterAdapter) Error() error    { return a.it.Error() }
