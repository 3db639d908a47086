package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks          = []byte("blocks")
	bucketAccounts        = []byte("accounts")
	bucketMeta            = []byte("meta")
	bucketCheckpoints     = []byte("checkpoints")
	bucketFaucetCooldowns = []byte("faucet_cooldowns")
	bucketKnownPeers      = []byte("known_peers")

	allBuckets = [][]byte{bucketBlocks, bucketAccounts, bucketMeta, bucketCheckpoints, bucketFaucetCooldowns, bucketKnownPeers}
)

// PersistenceBinder owns the node's on-disk bbolt database. Each commit is
// one bbolt transaction: CommitLedgerSnapshot writes the accounts, blocks
// and meta buckets atomically together, so a crash mid-save keeps either
// the prior or the new ledger state. Checkpoints, faucet cooldowns and
// peers are written in their own separate transactions, not together with
// the ledger.
type PersistenceBinder struct {
	db *bolt.DB
}

// OpenPersistenceBinder opens (creating if absent) the database at path and
// ensures every named bucket exists.
func OpenPersistenceBinder(path string) (*PersistenceBinder, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open persistence database: %w", err)
	}
	p := &PersistenceBinder{db: db}
	if err := p.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the underlying database handle.
func (p *PersistenceBinder) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// accountRecord is the on-disk encoding of AccountState, carrying the
// balance as a decimal string since big.Int does not round-trip through
// encoding/json on its own.
type accountRecord struct {
	Head        string
	Balance     string
	BlockCount  uint64
	IsValidator bool
}

// CommitLedgerSnapshot atomically persists every account and record in
// snap, plus the distribution/fee counters, in a single bbolt transaction.
func (p *PersistenceBinder) CommitLedgerSnapshot(snap LedgerSnapshot) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		for addr, acc := range snap.Accounts {
			rec := accountRecord{Head: acc.Head, Balance: acc.Balance.String(), BlockCount: acc.BlockCount, IsValidator: acc.IsValidator}
			b, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			if err := accounts.Put([]byte(addr), b); err != nil {
				return err
			}
		}

		blocks := tx.Bucket(bucketBlocks)
		for id, rec := range snap.Blocks {
			b, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			if err := blocks.Put([]byte(id), b); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put([]byte("remaining_supply"), []byte(snap.Distribution.RemainingSupply.String())); err != nil {
			return err
		}
		if err := meta.Put([]byte("total_burned"), []byte(snap.Distribution.TotalBurnedUSD.String())); err != nil {
			return err
		}
		if err := meta.Put([]byte("accumulated_fees"), []byte(snap.AccumulatedFees.String())); err != nil {
			return err
		}
		return nil
	})
}

// LoadLedgerSnapshot rebuilds a LedgerSnapshot from the accounts, blocks and
// meta buckets.
// Validators are not restored here (they're seeded from genesis/config at
// startup, not from the ledger's own snapshot).
func (p *PersistenceBinder) LoadLedgerSnapshot() (LedgerSnapshot, error) {
	snap := LedgerSnapshot{
		Accounts:     make(map[Address]AccountState),
		Blocks:       make(map[string]Record),
		ClaimedSends: make(map[string]struct{}),
		Validators:   make(map[Address]*big.Int),
	}
	err := p.db.View(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		if err := accounts.ForEach(func(k, v []byte) error {
			var rec accountRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			bal, ok := new(big.Int).SetString(rec.Balance, 10)
			if !ok {
				return fmt.Errorf("%w: invalid balance %q", ErrSerializationFailure, rec.Balance)
			}
			snap.Accounts[Address(k)] = AccountState{Head: rec.Head, Balance: bal, BlockCount: rec.BlockCount, IsValidator: rec.IsValidator}
			return nil
		}); err != nil {
			return err
		}

		blocks := tx.Bucket(bucketBlocks)
		if err := blocks.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			snap.Blocks[string(k)] = rec
			if rec.Kind == KindReceive {
				snap.ClaimedSends[rec.Link] = struct{}{}
			}
			return nil
		}); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		remaining := parseBigIntOrZero(meta.Get([]byte("remaining_supply")))
		burned := parseBigIntOrZero(meta.Get([]byte("total_burned")))
		fees := parseBigIntOrZero(meta.Get([]byte("accumulated_fees")))
		snap.Distribution = DistributionState{RemainingSupply: remaining, TotalBurnedUSD: burned}
		snap.AccumulatedFees = fees
		return nil
	})
	if err != nil {
		return LedgerSnapshot{}, err
	}
	return snap, nil
}

// CommitCheckpoint persists a single finality checkpoint, keyed by height.
func (p *PersistenceBinder) CommitCheckpoint(cp FinalityCheckpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(heightKey(cp.Height), b)
	})
}

// LoadCheckpoints returns every persisted checkpoint.
func (p *PersistenceBinder) LoadCheckpoints() ([]FinalityCheckpoint, error) {
	var out []FinalityCheckpoint
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).ForEach(func(k, v []byte) error {
			var cp FinalityCheckpoint
			if err := json.Unmarshal(v, &cp); err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			out = append(out, cp)
			return nil
		})
	})
	return out, err
}

// SetFaucetCooldown records the Unix timestamp after which addr may draw
// from the testnet faucet again.
func (p *PersistenceBinder) SetFaucetCooldown(addr Address, until int64) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFaucetCooldowns).Put([]byte(addr), int64ToBytes(until))
	})
}

// FaucetCooldown returns the stored cooldown expiry for addr, if any.
func (p *PersistenceBinder) FaucetCooldown(addr Address) (int64, bool) {
	var until int64
	var ok bool
	_ = p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFaucetCooldowns).Get([]byte(addr))
		if v == nil {
			return nil
		}
		until = bytesToInt64(v)
		ok = true
		return nil
	})
	return until, ok
}

// KnownPeer is a persisted network contact.
type KnownPeer struct {
	Address   string
	LastSeen  int64
	Reputation int
}

// UpsertKnownPeer records or updates peer by its network address.
func (p *PersistenceBinder) UpsertKnownPeer(peer KnownPeer) error {
	b, err := json.Marshal(peer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKnownPeers).Put([]byte(peer.Address), b)
	})
}

// KnownPeers returns every persisted peer.
func (p *PersistenceBinder) KnownPeers() ([]KnownPeer, error) {
	var out []KnownPeer
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKnownPeers).ForEach(func(k, v []byte) error {
			var peer KnownPeer
			if err := json.Unmarshal(v, &peer); err != nil {
				return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
			}
			out = append(out, peer)
			return nil
		})
	})
	return out, err
}

func parseBigIntOrZero(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%020d", height))
}

func int64ToBytes(v int64) []byte {
	return []byte(fmt.Sprintf("%d", v))
}

func bytesToInt64(b []byte) int64 {
	var v int64
	_, _ = fmt.Sscanf(string(b), "%d", &v)
	return v
}
