package core

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// FaucetDripVoid is the fixed amount a single testnet faucet claim mints.
var FaucetDripVoid = new(big.Int).Mul(big.NewInt(100), VoidPerUAT)

// FaucetCooldownPeriod is the minimum interval between successive claims
// from the same address.
const FaucetCooldownPeriod = 1 * time.Hour

// ErrFaucetCooldown is returned when an address claims before its cooldown
// has elapsed.
var ErrFaucetCooldown = errors.New("faucet: address is within cooldown period")

// ErrFaucetMainnet is returned when a faucet claim is attempted on mainnet,
// where the faucet does not exist.
var ErrFaucetMainnet = errors.New("faucet: not available on mainnet")

// FaucetStore tracks per-address cooldowns and backs them with persistent
// storage so a restart does not reset a claimant's wait.
type FaucetStore struct {
	mainnet bool
	binder  *PersistenceBinder
	cache   map[Address]int64
}

// NewFaucetStore constructs a store for a network; binder may be nil, in
// which case cooldowns are tracked in memory only.
func NewFaucetStore(mainnet bool, binder *PersistenceBinder) *FaucetStore {
	return &FaucetStore{mainnet: mainnet, binder: binder, cache: make(map[Address]int64)}
}

// Claim checks addr's cooldown, and if clear, records a new cooldown expiry
// and returns the link string ("FAUCET:<unix>") the ledger's Mint handler
// (applyMint) recognizes on testnet as bypassing the anti-whale mint cap.
func (f *FaucetStore) Claim(addr Address, now int64) (string, error) {
	if f.mainnet {
		return "", ErrFaucetMainnet
	}
	until, ok := f.cooldown(addr)
	if ok && now < until {
		return "", fmt.Errorf("%w: retry after %d", ErrFaucetCooldown, until)
	}
	expiry := now + int64(FaucetCooldownPeriod.Seconds())
	f.cache[addr] = expiry
	if f.binder != nil {
		if err := f.binder.SetFaucetCooldown(addr, expiry); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("FAUCET:%d", now), nil
}

func (f *FaucetStore) cooldown(addr Address) (int64, bool) {
	if v, ok := f.cache[addr]; ok {
		return v, true
	}
	if f.binder == nil {
		return 0, false
	}
	v, ok := f.binder.FaucetCooldown(addr)
	if ok {
		f.cache[addr] = v
	}
	return v, ok
}

// RemainingCooldown reports how many seconds remain before addr may claim
// again, or 0 if it may claim now.
func (f *FaucetStore) RemainingCooldown(addr Address, now int64) int64 {
	until, ok := f.cooldown(addr)
	if !ok || now >= until {
		return 0
	}
	return until - now
}
