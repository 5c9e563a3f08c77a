package store

import "github.com/syndtr/goleveldb/leveldb/util"

func rangeFor(prefix []byte) *util.Range {
	return util.BytesPrefix(prefix)
}
