package store

import (
	"testing"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
)

// buildNonSendBoundaryChain writes, via the raw table primitives (no
// ledger.Process — store writes don't validate signatures or business
// rules), a single account chain of exactly depth blocks whose last
// block is a Change: open, then depth-1 no-op representative changes.
// It seeds a blocks_info entry for a synthetic funder root so the open's
// referenced send resolves without needing a second real account chain.
func buildNonSendBoundaryChain(t *testing.T, s *Store, account bigint.U256, depth int) (headHash bigint.U256, amount bigint.U128) {
	t.Helper()

	// root is the zero hash: BlockPut only rewrites a parent's successor
	// when the parent is non-zero, so using it here for the send's
	// Previous_ lets the send be written without a real stored block
	// behind it, and BlocksInfoGet(root) is what resolves the funder's
	// balance (balanceAt consults blocks_info before ever calling
	// BlockGet).
	var root bigint.U256
	funder := bigint.U256{0xF0}
	funderBalance := bigint.U128FromUint64(1000)
	sendBalance := bigint.U128FromUint64(400)
	amount, ok := funderBalance.Sub(sendBalance)
	if !ok {
		t.Fatalf("test fixture: funderBalance.Sub overflowed")
	}

	send := &block.Send{Previous_: root, Destination: account, Balance: sendBalance}
	open := &block.Open{Source: send.Hash(), Representative: account, Account: account}

	hashes := []bigint.U256{open.Hash()}
	blocks := []block.Block{open}
	prev := open
	for i := 1; i < depth; i++ {
		c := &block.Change{Previous_: prev.Hash(), Representative: account}
		hashes = append(hashes, c.Hash())
		blocks = append(blocks, c)
		prev = c
	}

	if err := s.Update(func(w Writer) error {
		if err := BlocksInfoPut(w, root, BlockInfo{Account: funder, Balance: funderBalance}); err != nil {
			return err
		}
		if err := BlockPut(w, send, bigint.U256{}); err != nil {
			return err
		}
		for i, b := range blocks {
			successor := bigint.U256{}
			if i+1 < len(blocks) {
				successor = hashes[i+1]
			}
			if err := BlockPut(w, b, successor); err != nil {
				return err
			}
		}
		info := AccountInfo{
			Head:       hashes[len(hashes)-1],
			RepBlock:   hashes[len(hashes)-1],
			OpenBlock:  hashes[0],
			Balance:    amount,
			BlockCount: uint64(depth),
		}
		return AccountPut(w, account, info)
	}); err != nil {
		t.Fatalf("building fixture chain: %v", err)
	}

	return hashes[len(hashes)-1], amount
}

// TestUpgradeV9toV10NonSendBoundary exercises the exact scenario a
// snapshot boundary landing on a non-send block: a 32-block chain whose
// last block is a Change must still record its real post-block balance
// in blocks_info, not a zero stub.
func TestUpgradeV9toV10NonSendBoundary(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	account := bigint.U256{0x01}
	head, amount := buildNonSendBoundaryChain(t, s, account, BlockInfoInterval)

	if err := upgradeV9toV10(s); err != nil {
		t.Fatalf("upgradeV9toV10: %v", err)
	}

	var info BlockInfo
	var ok bool
	if err := s.View(func(r Reader) error {
		var err error
		info, ok, err = BlocksInfoGet(r, head)
		return err
	}); err != nil {
		t.Fatalf("BlocksInfoGet: %v", err)
	}
	if !ok {
		t.Fatalf("expected a blocks_info snapshot at the chain's 32nd block, got none")
	}
	if info.Account != account {
		t.Errorf("snapshot account = %x, want %x", info.Account, account)
	}
	if info.Balance != amount {
		t.Errorf("snapshot balance = %x, want %x (the real post-block balance, not zero)", info.Balance, amount)
	}
}

// TestBalanceAtNonSendVariants checks balanceAt directly against a change
// head whose chain walks back through further changes to an open,
// independent of the snapshot interval.
func TestBalanceAtNonSendVariants(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	account := bigint.U256{0x02}
	// depth 3: open, then two changes, well short of a snapshot interval
	// so balanceAt must walk the chain rather than reading blocks_info.
	_, amount := buildNonSendBoundaryChain(t, s, account, 3)

	var got bigint.U128
	if err := s.View(func(r Reader) error {
		info, ok, err := AccountGet(r, account)
		if err != nil || !ok {
			return err
		}
		got, err = balanceAt(r, info.Head)
		return err
	}); err != nil {
		t.Fatalf("balanceAt: %v", err)
	}
	if got != amount {
		t.Errorf("balanceAt(change head) = %x, want %x", got, amount)
	}
}

// TestUpgradeV1toV10RawStore runs the full sequential upgrade chain
// against a store whose data looks like it was never migrated past v1:
// no meta version cell (defaults to 1) and account entries missing the
// fields later steps compute. It checks that the whole pipeline leaves a
// v10 store with those fields correctly rederived.
func TestUpgradeV1toV10RawStore(t *testing.T) {
	e, err := newMemoryEngine()
	if err != nil {
		t.Fatalf("newMemoryEngine: %v", err)
	}
	defer e.Close()
	s := &Store{Engine: e}

	account := bigint.U256{0x03}

	// Seed a funder send the open references, and the chain's two blocks,
	// but write the account entry in the pre-upgrade shape: only Head and
	// Balance populated, everything upgradeV1toV2 onward computes left zero.
	var root bigint.U256
	funder := bigint.U256{0xF0}
	send := &block.Send{Previous_: root, Destination: account, Balance: bigint.U128FromUint64(400)}
	open := &block.Open{Source: send.Hash(), Representative: account, Account: account}
	change := &block.Change{Previous_: open.Hash(), Representative: account}

	if err := s.Update(func(w Writer) error {
		if err := BlocksInfoPut(w, root, BlockInfo{Account: funder, Balance: bigint.U128FromUint64(1000)}); err != nil {
			return err
		}
		if err := BlockPut(w, send, bigint.U256{}); err != nil {
			return err
		}
		if err := BlockPut(w, open, change.Hash()); err != nil {
			return err
		}
		if err := BlockPut(w, change, bigint.U256{}); err != nil {
			return err
		}
		return AccountPut(w, account, AccountInfo{Head: change.Hash(), Balance: bigint.U128FromUint64(600)})
	}); err != nil {
		t.Fatalf("seeding raw v1 fixture: %v", err)
	}

	if err := s.upgrade(); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	var version int
	var info AccountInfo
	var ok bool
	if err := s.View(func(r Reader) error {
		var err error
		version, err = MetaVersion(r)
		if err != nil {
			return err
		}
		info, ok, err = AccountGet(r, account)
		return err
	}); err != nil {
		t.Fatalf("reading upgraded store: %v", err)
	}

	if version != CurrentVersion {
		t.Errorf("MetaVersion after upgrade = %d, want %d", version, CurrentVersion)
	}
	if !ok {
		t.Fatalf("account missing after upgrade")
	}
	if info.OpenBlock != open.Hash() {
		t.Errorf("OpenBlock = %x, want %x", info.OpenBlock, open.Hash())
	}
	if info.RepBlock != change.Hash() {
		t.Errorf("RepBlock = %x, want %x", info.RepBlock, change.Hash())
	}
	if info.BlockCount != 2 {
		t.Errorf("BlockCount = %d, want 2", info.BlockCount)
	}
	var weight bigint.U128
	if err := s.View(func(r Reader) error {
		var err error
		weight, err = RepresentationGet(r, account)
		return err
	}); err != nil {
		t.Fatalf("RepresentationGet: %v", err)
	}
	if weight != bigint.U128FromUint64(600) {
		t.Errorf("representative weight = %x, want 600", weight)
	}
}

func TestBlockPutGetRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	// Previous_ is zero throughout: BlockPut rewrites a non-zero parent's
	// successor and fails when that parent is not stored.
	cases := []block.Block{
		&block.Send{Previous_: bigint.U256{}, Destination: bigint.U256{0x02}, Balance: bigint.U128FromUint64(5)},
		&block.Receive{Previous_: bigint.U256{}, Source: bigint.U256{0x04}},
		&block.Open{Source: bigint.U256{0x05}, Representative: bigint.U256{0x06}, Account: bigint.U256{0x07}},
		&block.Change{Previous_: bigint.U256{}, Representative: bigint.U256{0x09}},
	}

	for _, want := range cases {
		hash := want.Hash()
		if err := s.Update(func(w Writer) error {
			return BlockPut(w, want, bigint.U256{})
		}); err != nil {
			t.Fatalf("BlockPut(%s): %v", want.Kind(), err)
		}
		var got block.Block
		var ok bool
		if err := s.View(func(r Reader) error {
			var err error
			got, _, ok, err = BlockGet(r, hash)
			return err
		}); err != nil {
			t.Fatalf("BlockGet(%s): %v", want.Kind(), err)
		}
		if !ok {
			t.Fatalf("BlockGet(%s): not found after put", want.Kind())
		}
		if got.Hash() != hash {
			t.Errorf("BlockGet(%s) round-trip hash mismatch: got %x want %x", want.Kind(), got.Hash(), hash)
		}
		if got.Kind() != want.Kind() {
			t.Errorf("BlockGet(%s) kind = %s", want.Kind(), got.Kind())
		}
	}
}

func TestBlockRandom(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	var found bool
	if err := s.View(func(r Reader) error {
		var err error
		_, found, err = BlockRandom(r)
		return err
	}); err != nil {
		t.Fatalf("BlockRandom on empty store: %v", err)
	}
	if found {
		t.Fatalf("BlockRandom on empty store: ok = true, want false")
	}

	want := map[bigint.U256]block.Kind{}
	blocks := []block.Block{
		&block.Send{Previous_: bigint.U256{}, Destination: bigint.U256{0x12}, Balance: bigint.U128FromUint64(1)},
		&block.Open{Source: bigint.U256{0x13}, Representative: bigint.U256{0x14}, Account: bigint.U256{0x15}},
		&block.Change{Previous_: bigint.U256{}, Representative: bigint.U256{0x17}},
	}
	if err := s.Update(func(w Writer) error {
		for _, b := range blocks {
			want[b.Hash()] = b.Kind()
			if err := BlockPut(w, b, bigint.U256{}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seeding blocks: %v", err)
	}

	for i := 0; i < 20; i++ {
		var got block.Block
		var ok bool
		if err := s.View(func(r Reader) error {
			var err error
			got, ok, err = BlockRandom(r)
			return err
		}); err != nil {
			t.Fatalf("BlockRandom: %v", err)
		}
		if !ok {
			t.Fatalf("BlockRandom: ok = false, want true")
		}
		kind, known := want[got.Hash()]
		if !known {
			t.Fatalf("BlockRandom returned a hash never inserted: %x", got.Hash())
		}
		if kind != got.Kind() {
			t.Errorf("BlockRandom kind = %s, want %s", got.Kind(), kind)
		}
	}
}

func TestChecksumXORRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	bucket := BucketFor(bigint.U256{0xAB, 0xCD}, 16)
	if bucket.Mask != 16 || bucket.Prefix[0] != 0xAB || bucket.Prefix[1] != 0xCD {
		t.Fatalf("BucketFor produced unexpected key: %+v", bucket)
	}

	h1 := bigint.U256{0x01}
	h2 := bigint.U256{0x02}

	if err := s.Update(func(w Writer) error {
		if err := ChecksumXOR(w, bucket, h1); err != nil {
			return err
		}
		return ChecksumXOR(w, bucket, h2)
	}); err != nil {
		t.Fatalf("ChecksumXOR: %v", err)
	}

	var got bigint.U256
	var ok bool
	if err := s.View(func(r Reader) error {
		var err error
		got, ok, err = ChecksumGet(r, bucket)
		return err
	}); err != nil {
		t.Fatalf("ChecksumGet: %v", err)
	}
	if !ok {
		t.Fatalf("ChecksumGet: not found after two XORs")
	}
	var want bigint.U256
	for i := range want {
		want[i] = h1[i] ^ h2[i]
	}
	if got != want {
		t.Errorf("checksum = %x, want %x", got, want)
	}

	// XOR-ing h1 back out should restore exactly h2 (self-inverse).
	if err := s.Update(func(w Writer) error {
		return ChecksumXOR(w, bucket, h1)
	}); err != nil {
		t.Fatalf("ChecksumXOR (remove): %v", err)
	}
	if err := s.View(func(r Reader) error {
		var err error
		got, ok, err = ChecksumGet(r, bucket)
		return err
	}); err != nil {
		t.Fatalf("ChecksumGet: %v", err)
	}
	if !ok || got != h2 {
		t.Errorf("checksum after removing h1 = %x, want %x", got, h2)
	}
}
