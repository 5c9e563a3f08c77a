package store

import "errors"

// ErrCorrupt indicates a stored value had the wrong width for its table;
// a programmer-invariant violation (spec §7 class 5), since every writer
// in this package always encodes fixed-width values.
var ErrCorrupt = errors.New("store: corrupt table entry")

// ErrNotFound is returned by lookups with no narrower error to report.
var ErrNotFound = errors.New("store: not found")
