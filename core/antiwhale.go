package core

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// ActivityWindow is the rolling period after which an address's spam
// counters reset, independent of block boundaries.
const ActivityWindow = 60 * time.Second

// AntiWhaleConfig bounds per-address transaction and burn activity.
type AntiWhaleConfig struct {
	MaxTxPerBlock      uint32
	FeeScaleMultiplier uint64
	MaxBurnPerBlock    uint64
}

// DefaultAntiWhaleConfig mirrors the reference node's defaults.
func DefaultAntiWhaleConfig() AntiWhaleConfig {
	return AntiWhaleConfig{MaxTxPerBlock: 5, FeeScaleMultiplier: 2, MaxBurnPerBlock: 1_000}
}

// AddressActivity is the per-address spam/burn counter state for the
// current activity window.
type AddressActivity struct {
	TxCount       uint32
	TotalBurned   uint64
	LastBlock     uint64
	FeeMultiplier uint64
	WindowStart   int64
}

// AntiWhaleEngine scales fees on burst activity and derives quadratic
// voting weights from stake, so no single address can cheaply flood the
// network or translate raw stake into proportional voting power.
type AntiWhaleEngine struct {
	mu sync.Mutex

	cfg            AntiWhaleConfig
	activity       map[Address]*AddressActivity
	currentBlock   uint64
}

// NewAntiWhaleEngine constructs an engine under cfg.
func NewAntiWhaleEngine(cfg AntiWhaleConfig) *AntiWhaleEngine {
	return &AntiWhaleEngine{cfg: cfg, activity: make(map[Address]*AddressActivity)}
}

// Config returns the engine's bounds.
func (e *AntiWhaleEngine) Config() AntiWhaleConfig {
	return e.cfg
}

func maybeResetActivity(a *AddressActivity, now int64) {
	if now-a.WindowStart >= int64(ActivityWindow.Seconds()) {
		a.TxCount = 0
		a.TotalBurned = 0
		a.FeeMultiplier = 1
		a.WindowStart = now
	}
}

// NewBlock advances the engine's block cursor, resetting any address whose
// activity has not yet been reset for this height.
func (e *AntiWhaleEngine) NewBlock(blockNumber uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentBlock = blockNumber
	now := nowUnix()
	for _, a := range e.activity {
		if a.LastBlock < blockNumber {
			a.TxCount = 0
			a.TotalBurned = 0
			a.FeeMultiplier = 1
			a.LastBlock = blockNumber
			a.WindowStart = now
		}
	}
}

func saturatingMulU64(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func saturatingPowU64(base uint64, exp uint32) uint64 {
	result := uint64(1)
	for i := uint32(0); i < exp; i++ {
		result = saturatingMulU64(result, base)
		if result == math.MaxUint64 {
			return result
		}
	}
	return result
}

// EstimateFee previews the fee the next transaction from address would pay,
// without registering any activity.
func (e *AntiWhaleEngine) EstimateFee(address Address, baseFee uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.activity[address]
	if !ok {
		return baseFee
	}
	now := nowUnix()
	var multiplier uint64
	if now-a.WindowStart >= int64(ActivityWindow.Seconds()) {
		multiplier = 1
	} else if a.TxCount >= e.cfg.MaxTxPerBlock {
		excess := a.TxCount - e.cfg.MaxTxPerBlock
		multiplier = saturatingPowU64(e.cfg.FeeScaleMultiplier, excess+1)
	} else {
		multiplier = 1
	}
	return saturatingMulU64(baseFee, multiplier)
}

// RegisterTransaction records one transaction from address and returns the
// fee it must pay, applying exponential scaling once MaxTxPerBlock is
// exceeded within the current activity window.
func (e *AntiWhaleEngine) RegisterTransaction(address Address, baseFee uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowUnix()
	a, ok := e.activity[address]
	if !ok {
		a = &AddressActivity{FeeMultiplier: 1, LastBlock: e.currentBlock, WindowStart: now}
		e.activity[address] = a
	}
	maybeResetActivity(a, now)

	if a.TxCount >= e.cfg.MaxTxPerBlock {
		excess := a.TxCount - e.cfg.MaxTxPerBlock
		a.FeeMultiplier = saturatingPowU64(e.cfg.FeeScaleMultiplier, excess+1)
	}
	a.TxCount++
	return saturatingMulU64(baseFee, a.FeeMultiplier)
}

// RegisterBurn records a burn of amount from address, rejecting it if the
// address's per-window burn total would exceed MaxBurnPerBlock.
func (e *AntiWhaleEngine) RegisterBurn(address Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowUnix()
	a, ok := e.activity[address]
	if !ok {
		a = &AddressActivity{FeeMultiplier: 1, LastBlock: e.currentBlock, WindowStart: now}
		e.activity[address] = a
	}
	maybeResetActivity(a, now)

	if a.TotalBurned+amount > e.cfg.MaxBurnPerBlock {
		return fmt.Errorf("%w: %d + %d > %d", ErrBurnLimitExceeded, a.TotalBurned, amount, e.cfg.MaxBurnPerBlock)
	}
	a.TotalBurned += amount
	return nil
}

// VotingPower computes quadratic voting weight floor(sqrt(stake)).
func (e *AntiWhaleEngine) VotingPower(stake uint64) uint64 {
	return ISqrtUint64(stake)
}

// VotingDistribution normalizes each validator's quadratic weight to basis
// points (10,000 == 100%) of the total.
func (e *AntiWhaleEngine) VotingDistribution(validators map[Address]uint64) map[Address]uint64 {
	powers := make(map[Address]uint64, len(validators))
	var total uint64
	for addr, stake := range validators {
		p := e.VotingPower(stake)
		powers[addr] = p
		total += p
	}
	out := make(map[Address]uint64, len(powers))
	if total == 0 {
		for addr := range powers {
			out[addr] = 0
		}
		return out
	}
	for addr, p := range powers {
		out[addr] = p * 10_000 / total
	}
	return out
}

// IsWhale reports whether stake exceeds 1% of total supply.
func (e *AntiWhaleEngine) IsWhale(stake, totalSupply uint64) bool {
	return stake > totalSupply/100
}

// Activity returns a copy of address's current counters, if any.
func (e *AntiWhaleEngine) Activity(address Address) (AddressActivity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.activity[address]
	if !ok {
		return AddressActivity{}, false
	}
	return *a, true
}

// FeeMultiplier returns address's current fee multiplier, or 1 if unknown.
func (e *AntiWhaleEngine) FeeMultiplier(address Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.activity[address]
	if !ok {
		return 1
	}
	return a.FeeMultiplier
}

// ResetBlockActivity clears every address's counters immediately,
// independent of the activity window.
func (e *AntiWhaleEngine) ResetBlockActivity() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := nowUnix()
	for _, a := range e.activity {
		a.TxCount = 0
		a.TotalBurned = 0
		a.FeeMultiplier = 1
		a.WindowStart = now
	}
}

// ConcentrationStats summarizes validator stake concentration.
type ConcentrationStats struct {
	TotalValidators int
	TotalStake      uint64
	Top3Percent     uint64 // basis points, 10000 == 100%
	Top10Percent    uint64
	LargestStake    uint64
	SmallestStake   uint64
}

// ConcentrationStats reports stake distribution across validators, in
// basis points rather than floating-point percentages so the result is
// deterministic.
func (e *AntiWhaleEngine) ConcentrationStats(validators map[Address]uint64) ConcentrationStats {
	if len(validators) == 0 {
		return ConcentrationStats{}
	}
	stakes := make([]uint64, 0, len(validators))
	for _, s := range validators {
		stakes = append(stakes, s)
	}
	sort.Slice(stakes, func(i, j int) bool { return stakes[i] > stakes[j] })

	var total uint64
	for _, s := range stakes {
		total += s
	}
	if total == 0 {
		return ConcentrationStats{TotalValidators: len(stakes)}
	}

	sum := func(n int) uint64 {
		if n > len(stakes) {
			n = len(stakes)
		}
		var s uint64
		for _, v := range stakes[:n] {
			s += v
		}
		return s
	}
	top3 := sum(3)
	top10 := sum(10)

	return ConcentrationStats{
		TotalValidators: len(stakes),
		TotalStake:      total,
		Top3Percent:     top3 * 10_000 / total,
		Top10Percent:    top10 * 10_000 / total,
		LargestStake:    stakes[0],
		SmallestStake:   stakes[len(stakes)-1],
	}
}
