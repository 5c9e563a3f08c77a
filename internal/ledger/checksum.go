package ledger

import (
	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/store"
)

// checksumMaskLevels are the hierarchy levels the §3 checksum table is
// maintained at: byte-aligned account prefixes from zero bits (a single
// bucket covering every account) up to 56 bits (seven leading bytes).
var checksumMaskLevels = []byte{0, 8, 16, 24, 32, 40, 48, 56}

// updateChecksum folds account's head transition into every level of
// the hierarchical XOR checksum (spec §3): oldHead is toggled out (a
// second XOR cancels the first), newHead is toggled in. A zero oldHead
// means the account had no prior head (an open); a zero newHead means
// the account's head was just removed entirely (an undone open).
func updateChecksum(w store.Writer, account, oldHead, newHead bigint.U256) error {
	for _, mask := range checksumMaskLevels {
		bucket := store.BucketFor(account, mask)
		if !oldHead.IsZero() {
			if err := store.ChecksumXOR(w, bucket, oldHead); err != nil {
				return err
			}
		}
		if !newHead.IsZero() {
			if err := store.ChecksumXOR(w, bucket, newHead); err != nil {
				return err
			}
		}
	}
	return nil
}
