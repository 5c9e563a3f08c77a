package ledger

import (
	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/crypto25519"
	"github.com/tos-network/ralite/internal/network"
	"github.com/tos-network/ralite/internal/store"
)

// InitGenesis seeds an empty store with the network's genesis account: a
// self-referential open block granting the full configured supply, the
// one ledger entry point bootstrapped outside the normal send/receive
// pending flow (spec §3: "a distinguished genesis account").
//
// A missing genesis on an otherwise non-empty store is a fatal condition
// (spec §7 class 4); callers should treat a failure here as such.
func InitGenesis(w store.Writer, cfg network.Config, genesisPriv [64]byte) (bigint.U256, bigint.U256, error) {
	pub := crypto25519.PublicFromPrivate(genesisPriv)
	amount := bigint.U128(cfg.GenesisAmount)

	open := &block.Open{Source: pub, Representative: pub, Account: pub}
	open.Signature = block.Sign(open, genesisPriv)

	if exists, err := store.AccountExists(w, pub); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	} else if exists {
		return pub, open.Hash(), nil
	}

	hash := open.Hash()
	if err := store.BlockPut(w, open, bigint.U256{}); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	}
	info := store.AccountInfo{
		Head:         hash,
		RepBlock:     hash,
		OpenBlock:    hash,
		Balance:      amount,
		ModifiedSecs: now(),
		BlockCount:   1,
	}
	if err := store.AccountPut(w, pub, info); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	}
	if err := store.FrontierPut(w, hash, pub); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	}
	if err := store.RepresentationIncrease(w, pub, amount); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	}
	inactive := bigint.U128(cfg.InactiveSupply)
	if !inactive.IsZero() {
		if err := store.RepresentationIncrease(w, pub, inactive); err != nil {
			return bigint.U256{}, bigint.U256{}, err
		}
	}
	// The genesis open has no funding send to derive its balance from, so
	// its balance is always recorded in blocks_info.
	if err := store.BlocksInfoPut(w, hash, store.BlockInfo{Account: pub, Balance: amount}); err != nil {
		return bigint.U256{}, bigint.U256{}, err
	}
	return pub, hash, nil
}
