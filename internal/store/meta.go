package store

// CurrentVersion is the only live schema format; stores opened below it
// are upgraded in place (spec §4.3).
const CurrentVersion = 10

var metaVersionKey = []byte{tblMeta, 1}

// MetaVersion reads the schema version cell, defaulting to 1 if absent
// (a never-yet-versioned store).
func MetaVersion(r Reader) (int, error) {
	v, ok, err := r.Get(metaVersionKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	if len(v) != 1 {
		return 0, ErrCorrupt
	}
	return int(v[0]), nil
}

// SetMetaVersion writes the schema version cell. Per spec §4.3 this is
// written before the corresponding upgrade's data rewrite, so a crash
// mid-upgrade only ever re-runs the unfinished step on next open.
func SetMetaVersion(w Writer, version int) error {
	return w.Put(metaVersionKey, []byte{byte(version)})
}
