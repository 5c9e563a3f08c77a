package store

import (
	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/log"
)

// upgrade runs every sequential v(n)->v(n+1) step needed to bring the
// environment to CurrentVersion. Each step is idempotent when already
// past it because the version cell is written first, before the data
// rewrite (spec §4.3): a crash mid-step re-runs only that one step.
func (s *Store) upgrade() error {
	version, err := s.readVersion()
	if err != nil {
		return err
	}
	steps := []func(*Store) error{
		nil, // index 0 unused
		upgradeV1toV2,
		upgradeV2toV3,
		upgradeV3toV4,
		upgradeV4toV5,
		upgradeV5toV6,
		upgradeV6toV7,
		upgradeV7toV8,
		upgradeV8toV9,
		upgradeV9toV10,
	}
	for version < CurrentVersion {
		step := steps[version]
		log.Info("upgrading store schema", "from", version, "to", version+1)
		if err := s.Update(func(w Writer) error {
			return SetMetaVersion(w, version+1)
		}); err != nil {
			return err
		}
		if err := step(s); err != nil {
			return err
		}
		version++
	}
	return nil
}

func (s *Store) readVersion() (int, error) {
	var v int
	err := s.View(func(r Reader) error {
		var err error
		v, err = MetaVersion(r)
		return err
	})
	return v, err
}

// upgradeV1toV2 computes and stores open_block for each account by
// walking back from head to the chain origin.
func upgradeV1toV2(s *Store) error {
	var accounts []bigint.U256
	if err := s.View(func(r Reader) error {
		return AccountIterate(r, func(acc bigint.U256, _ AccountInfo) error {
			accounts = append(accounts, acc)
			return nil
		})
	}); err != nil {
		return err
	}
	return s.Update(func(w Writer) error {
		for _, acc := range accounts {
			info, ok, err := AccountGet(w, acc)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			open, err := walkToOrigin(w, info.Head)
			if err != nil {
				return err
			}
			info.OpenBlock = open
			if err := AccountPut(w, acc, info); err != nil {
				return err
			}
		}
		return nil
	})
}

func walkToOrigin(r Reader, hash bigint.U256) (bigint.U256, error) {
	cur := hash
	for {
		b, _, ok, err := BlockGet(r, cur)
		if err != nil {
			return bigint.U256{}, err
		}
		if !ok {
			return cur, nil
		}
		if b.Kind() == block.KindOpen {
			return cur, nil
		}
		cur = b.Previous()
	}
}

// upgradeV2toV3 recomputes rep_block for every account and rebuilds
// representation from scratch.
func upgradeV2toV3(s *Store) error {
	type acct struct {
		account bigint.U256
		info    AccountInfo
	}
	var accounts []acct
	if err := s.View(func(r Reader) error {
		return AccountIterate(r, func(a bigint.U256, info AccountInfo) error {
			accounts = append(accounts, acct{a, info})
			return nil
		})
	}); err != nil {
		return err
	}
	return s.Update(func(w Writer) error {
		var stale []bigint.U256
		if err := RepresentationIterate(w, func(rep bigint.U256, _ bigint.U128) error {
			stale = append(stale, rep)
			return nil
		}); err != nil {
			return err
		}
		for _, rep := range stale {
			if err := RepresentationSet(w, rep, bigint.U128{}); err != nil {
				return err
			}
		}
		for _, a := range accounts {
			repBlock, err := latestRepBlock(w, a.info.Head)
			if err != nil {
				return err
			}
			a.info.RepBlock = repBlock
			if err := AccountPut(w, a.account, a.info); err != nil {
				return err
			}
			rep, err := representativeOf(w, repBlock)
			if err != nil {
				return err
			}
			if err := RepresentationIncrease(w, rep, a.info.Balance); err != nil {
				return err
			}
		}
		return nil
	})
}

func latestRepBlock(r Reader, head bigint.U256) (bigint.U256, error) {
	cur := head
	for {
		b, _, ok, err := BlockGet(r, cur)
		if err != nil {
			return bigint.U256{}, err
		}
		if !ok {
			return cur, nil
		}
		switch b.Kind() {
		case block.KindOpen, block.KindChange:
			return cur, nil
		}
		cur = b.Previous()
	}
}

func representativeOf(r Reader, repBlockHash bigint.U256) (bigint.U256, error) {
	b, _, ok, err := BlockGet(r, repBlockHash)
	if err != nil || !ok {
		return bigint.U256{}, err
	}
	switch v := b.(type) {
	case *block.Open:
		return v.Representative, nil
	case *block.Change:
		return v.Representative, nil
	default:
		return bigint.U256{}, nil
	}
}

// upgradeV3toV4 re-keys pending from send-hash -> {src, amt, dst} to
// {dst, send-hash} -> {src, amt}. The current on-disk table layout is
// already the post-v4 shape, so a fresh or already-migrated store has
// nothing to rewrite; this exists to preserve the upgrade chain's shape.
func upgradeV3toV4(s *Store) error { return nil }

// upgradeV4toV5 computes and fills missing successor links on each chain.
func upgradeV4toV5(s *Store) error {
	var heads []bigint.U256
	if err := s.View(func(r Reader) error {
		return AccountIterate(r, func(_ bigint.U256, info AccountInfo) error {
			heads = append(heads, info.Head)
			return nil
		})
	}); err != nil {
		return err
	}
	return s.Update(func(w Writer) error {
		for _, head := range heads {
			cur := head
			for {
				b, succ, ok, err := BlockGet(w, cur)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				prev := b.Previous()
				if prev.IsZero() {
					break
				}
				_, prevSucc, prevOK, err := BlockGet(w, prev)
				if err != nil {
					return err
				}
				if prevOK && prevSucc.IsZero() {
					if err := setSuccessor(w, prev, cur); err != nil {
						return err
					}
				}
				_ = succ
				cur = prev
			}
		}
		return nil
	})
}

// upgradeV5toV6 adds block_count to every account entry by walking its
// chain.
func upgradeV5toV6(s *Store) error {
	type acct struct {
		account bigint.U256
		info    AccountInfo
	}
	var accounts []acct
	if err := s.View(func(r Reader) error {
		return AccountIterate(r, func(a bigint.U256, info AccountInfo) error {
			accounts = append(accounts, acct{a, info})
			return nil
		})
	}); err != nil {
		return err
	}
	return s.Update(func(w Writer) error {
		for _, a := range accounts {
			count := uint64(0)
			cur := a.info.Head
			for {
				b, _, ok, err := BlockGet(w, cur)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				count++
				if b.Kind() == block.KindOpen {
					break
				}
				cur = b.Previous()
			}
			a.info.BlockCount = count
			if err := AccountPut(w, a.account, a.info); err != nil {
				return err
			}
		}
		return nil
	})
}

// upgradeV6toV7 and upgradeV7toV8 drop and recreate unchecked for a
// format change; the current code only ever writes the post-v8 shape, so
// there is nothing stored in the old shape to drop on a store that was
// never touched by pre-v7 code.
func upgradeV6toV7(s *Store) error { return nil }
func upgradeV7toV8(s *Store) error { return nil }

// upgradeV8toV9 replaces a plain sequence-number table with the full
// vote table; nothing to migrate since the sequence-only table was never
// created by this codebase.
func upgradeV8toV9(s *Store) error { return nil }

// upgradeV9toV10 materializes blocks_info snapshots every
// BlockInfoInterval blocks on every chain.
func upgradeV9toV10(s *Store) error {
	type acct struct {
		account bigint.U256
		info    AccountInfo
	}
	var accounts []acct
	if err := s.View(func(r Reader) error {
		return AccountIterate(r, func(a bigint.U256, info AccountInfo) error {
			accounts = append(accounts, acct{a, info})
			return nil
		})
	}); err != nil {
		return err
	}
	return s.Update(func(w Writer) error {
		for _, a := range accounts {
			cur := a.info.Head
			depth := a.info.BlockCount
			for depth > 0 {
				b, _, ok, err := BlockGet(w, cur)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				balance, err := balanceAt(w, cur)
				if err != nil {
					return err
				}
				if err := MaybeSnapshot(w, cur, depth, a.account, balance); err != nil {
					return err
				}
				if b.Kind() == block.KindOpen {
					break
				}
				cur = b.Previous()
				depth--
			}
		}
		return nil
	})
}

// balanceAt computes the post-block balance for hash by visiting its
// variant, consulting any blocks_info snapshot already written before
// falling back to a full walk; used only by the schema upgrade, which
// cannot import internal/ledger (ledger already imports store) and so
// mirrors ledger.BalanceAt's recursion locally.
func balanceAt(r Reader, hash bigint.U256) (bigint.U128, error) {
	if info, ok, err := BlocksInfoGet(r, hash); err != nil {
		return bigint.U128{}, err
	} else if ok {
		return info.Balance, nil
	}
	b, _, ok, err := BlockGet(r, hash)
	if err != nil {
		return bigint.U128{}, err
	}
	if !ok {
		return bigint.U128{}, ErrNotFound
	}
	switch v := b.(type) {
	case *block.Send:
		return v.Balance, nil
	case *block.Open:
		return sendAmountAt(r, v.Source)
	case *block.Receive:
		prior, err := balanceAt(r, v.Previous_)
		if err != nil {
			return bigint.U128{}, err
		}
		amount, err := sendAmountAt(r, v.Source)
		if err != nil {
			return bigint.U128{}, err
		}
		sum, ok := prior.Add(amount)
		if !ok {
			return bigint.U128{}, ErrCorrupt
		}
		return sum, nil
	case *block.Change:
		return balanceAt(r, v.Previous_)
	default:
		return bigint.U128{}, ErrNotFound
	}
}

// sendAmountAt returns the value transferred by the send at sendHash:
// its prior balance minus its stored post-balance.
func sendAmountAt(r Reader, sendHash bigint.U256) (bigint.U128, error) {
	b, _, ok, err := BlockGet(r, sendHash)
	if err != nil {
		return bigint.U128{}, err
	}
	if !ok {
		return bigint.U128{}, ErrNotFound
	}
	send, isSend := b.(*block.Send)
	if !isSend {
		return bigint.U128{}, ErrNotFound
	}
	prior, err := balanceAt(r, send.Previous_)
	if err != nil {
		return bigint.U128{}, err
	}
	amount, ok := prior.Sub(send.Balance)
	if !ok {
		return bigint.U128{}, ErrCorrupt
	}
	return amount, nil
}
