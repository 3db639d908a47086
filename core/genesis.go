package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
)

// TotalSupplyUAT and DevSupplyUAT are the network's fixed, audited
// constants: no genesis file may claim any other total.
const (
	TotalSupplyUAT = 21_936_236
	DevSupplyUAT   = 1_535_536
)

// TotalSupplyVoid is TotalSupplyUAT expressed in the smallest unit.
var TotalSupplyVoid = new(big.Int).Mul(big.NewInt(TotalSupplyUAT), VoidPerUAT)

// DevSupplyVoid is DevSupplyUAT expressed in the smallest unit.
var DevSupplyVoid = new(big.Int).Mul(big.NewInt(DevSupplyUAT), VoidPerUAT)

// ExpectedBootstrapNodeCount is the fixed validator-set size at genesis.
const ExpectedBootstrapNodeCount = 4

// GenesisWallet is one entry in a genesis file's account list. It supports
// either an integer VOID balance/stake or a legacy decimal UAT string;
// resolveBalance prefers balance_void, then stake_void, then balance_uat.
type GenesisWallet struct {
	Address     Address `json:"address"`
	BalanceUAT  *string `json:"balance_uat,omitempty"`
	BalanceVoid *string `json:"balance_void,omitempty"`
	StakeVoid   *string `json:"stake_void,omitempty"`
}

func (w *GenesisWallet) resolveBalance() (*big.Int, error) {
	if w.BalanceVoid != nil {
		v, ok := new(big.Int).SetString(*w.BalanceVoid, 10)
		if !ok {
			return nil, fmt.Errorf("invalid balance_void for %s", w.Address)
		}
		return v, nil
	}
	if w.StakeVoid != nil {
		v, ok := new(big.Int).SetString(*w.StakeVoid, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stake_void for %s", w.Address)
		}
		return v, nil
	}
	if w.BalanceUAT != nil {
		return ParseUATToVoid(*w.BalanceUAT)
	}
	return nil, fmt.Errorf("no balance field for %s", w.Address)
}

// GenesisConfig is a network's bootstrap file: its network identity, fixed
// supply, bootstrap validator set, and any dev/faucet pre-funded accounts.
type GenesisConfig struct {
	NetworkID        NetworkID       `json:"network_id"`
	ChainName        string          `json:"chain_name"`
	GenesisTimestamp int64           `json:"genesis_timestamp"`
	TotalSupplyVoid  string          `json:"total_supply_void"`
	DevSupplyVoid    string          `json:"dev_supply_void,omitempty"`
	BootstrapNodes   []GenesisWallet `json:"bootstrap_nodes"`
	DevAccounts      []GenesisWallet `json:"dev_accounts,omitempty"`
}

// LoadGenesisFromFile reads and parses a genesis JSON file.
func LoadGenesisFromFile(path string) (*GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file %s: %w", path, err)
	}
	var cfg GenesisConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse genesis json: %w", err)
	}
	return &cfg, nil
}

// ParseUATToVoid converts a decimal UAT string ("123.456" or "123") to its
// integer VOID value without any floating-point precision loss.
func ParseUATToVoid(uat string) (*big.Int, error) {
	trimmed := strings.TrimSpace(uat)
	dot := strings.IndexByte(trimmed, '.')
	if dot < 0 {
		whole, ok := new(big.Int).SetString(trimmed, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", uat)
		}
		return new(big.Int).Mul(whole, VoidPerUAT), nil
	}
	wholePart := trimmed[:dot]
	decPart := trimmed[dot+1:]
	whole, ok := new(big.Int).SetString(wholePart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer part of %q", uat)
	}
	const decimals = 11
	padded := (decPart + strings.Repeat("0", decimals))[:decimals]
	dec, ok := new(big.Int).SetString(padded, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal part of %q", uat)
	}
	return new(big.Int).Add(new(big.Int).Mul(whole, VoidPerUAT), dec), nil
}

// ValidateGenesis enforces the network's immutable genesis invariants:
// the declared network must match the running build, the supply figures
// must match the audited constants, every address must carry the right
// prefix, the bootstrap validator set must be exactly
// ExpectedBootstrapNodeCount nodes, each bootstrap node that declares
// stake_void must meet minimum stake (a node without stake_void is not
// checked against it), and the sum of every wallet's balance must not
// exceed the declared total supply.
func ValidateGenesis(cfg *GenesisConfig, runningNetwork NetworkID, addressPrefix string) error {
	if cfg.NetworkID != NetworkMainnet && cfg.NetworkID != NetworkTestnet {
		return fmt.Errorf("invalid network_id %d", cfg.NetworkID)
	}
	if cfg.NetworkID != runningNetwork {
		return fmt.Errorf("genesis network_id %s does not match running network %s", cfg.NetworkID, runningNetwork)
	}
	if cfg.GenesisTimestamp < 1_577_836_800 || cfg.GenesisTimestamp > 4_102_444_800 {
		return fmt.Errorf("invalid genesis timestamp %d", cfg.GenesisTimestamp)
	}

	supply, ok := new(big.Int).SetString(cfg.TotalSupplyVoid, 10)
	if !ok || supply.Cmp(TotalSupplyVoid) != 0 {
		return fmt.Errorf("invalid total_supply_void %q (expected %s)", cfg.TotalSupplyVoid, TotalSupplyVoid.String())
	}
	if cfg.DevSupplyVoid != "" {
		dev, ok := new(big.Int).SetString(cfg.DevSupplyVoid, 10)
		if !ok || dev.Cmp(DevSupplyVoid) != 0 {
			return fmt.Errorf("invalid dev_supply_void %q (expected %s)", cfg.DevSupplyVoid, DevSupplyVoid.String())
		}
	}

	if len(cfg.BootstrapNodes) != ExpectedBootstrapNodeCount {
		return fmt.Errorf("invalid bootstrap_nodes count %d (expected %d)", len(cfg.BootstrapNodes), ExpectedBootstrapNodeCount)
	}

	all := make([]GenesisWallet, 0, len(cfg.BootstrapNodes)+len(cfg.DevAccounts))
	all = append(all, cfg.BootstrapNodes...)
	all = append(all, cfg.DevAccounts...)

	total := big.NewInt(0)
	for _, w := range all {
		if !strings.HasPrefix(string(w.Address), addressPrefix) {
			return fmt.Errorf("invalid address format: %s", w.Address)
		}
		if len(w.Address) < 10 {
			return fmt.Errorf("address too short (min 10 chars): %s", w.Address)
		}
		bal, err := w.resolveBalance()
		if err != nil {
			return err
		}
		total.Add(total, bal)
	}
	for _, node := range cfg.BootstrapNodes {
		if node.StakeVoid == nil {
			continue
		}
		stake, _ := new(big.Int).SetString(*node.StakeVoid, 10)
		if stake != nil && stake.Cmp(MinValidatorStakeVoid) < 0 {
			return fmt.Errorf("bootstrap node %s stake %s below minimum %s", node.Address, stake.String(), MinValidatorStakeVoid.String())
		}
	}

	if total.Cmp(supply) > 0 {
		return fmt.Errorf("aggregate wallet balance %s exceeds total_supply_void %s", total.String(), supply.String())
	}
	return nil
}

// GenesisAccounts is the resolved set of accounts a validated genesis
// config seeds into a fresh ledger, separated by validator status.
type GenesisAccounts struct {
	Accounts   map[Address]AccountState
	Validators map[Address]*big.Int // address -> stake, bootstrap nodes only
}

// LoadGenesisAccounts resolves cfg into starting account states: bootstrap
// nodes become validators (balance and optional stake both applied), dev
// accounts are plain funded accounts.
func LoadGenesisAccounts(cfg *GenesisConfig) (*GenesisAccounts, error) {
	out := &GenesisAccounts{
		Accounts:   make(map[Address]AccountState),
		Validators: make(map[Address]*big.Int),
	}
	for _, w := range cfg.BootstrapNodes {
		bal, err := w.resolveBalance()
		if err != nil {
			return nil, err
		}
		out.Accounts[w.Address] = AccountState{Head: ZeroRecordID, Balance: bal, IsValidator: true}
		if w.StakeVoid != nil {
			stake, ok := new(big.Int).SetString(*w.StakeVoid, 10)
			if !ok {
				return nil, fmt.Errorf("invalid stake_void for %s", w.Address)
			}
			out.Validators[w.Address] = stake
		} else {
			out.Validators[w.Address] = new(big.Int).Set(bal)
		}
	}
	for _, w := range cfg.DevAccounts {
		bal, err := w.resolveBalance()
		if err != nil {
			return nil, err
		}
		out.Accounts[w.Address] = AccountState{Head: ZeroRecordID, Balance: bal}
	}
	return out, nil
}

// Seed applies a validated genesis into a fresh ledger: every account's
// starting balance and every bootstrap validator's stake.
func (ga *GenesisAccounts) Seed(l *Ledger) {
	l.mu.Lock()
	for addr, acc := range ga.Accounts {
		cp := acc
		cp.Balance = new(big.Int).Set(acc.Balance)
		l.accounts[addr] = &cp
	}
	l.mu.Unlock()
	for addr, stake := range ga.Validators {
		l.RegisterValidator(addr, stake)
	}
}
