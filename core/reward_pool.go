package core

import (
	"math/big"
	"sort"
	"sync"
)

// VoidPerUAT is the number of smallest units ("void") per whole UAT, fixing
// the token's decimal precision at 11 places.
var VoidPerUAT = big.NewInt(100_000_000_000)

func uatVoid(uat int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(uat), VoidPerUAT)
}

// Reward pool constants, grounded on the reference node's fixed schedule:
// a 500,000 UAT pool, paid out at 5,000 UAT/epoch, halving every 48 epochs
// (roughly 4 years at a 30-day epoch).
var (
	ValidatorRewardPoolVoid  = uatVoid(500_000)
	RewardRateInitialVoid    = uatVoid(5_000)
	MinValidatorStakeVoid    = uatVoid(1_000)
)

const (
	RewardHalvingIntervalEpochs uint64 = 48
	RewardMinUptimePct          uint64 = 95
	RewardProbationEpochs       uint64 = 1
)

// ValidatorRewardState is one validator's per-epoch eligibility and payout
// bookkeeping.
type ValidatorRewardState struct {
	JoinEpoch               uint64
	HeartbeatsCurrentEpoch  uint64
	ExpectedHeartbeats      uint64
	CumulativeRewardsVoid   *big.Int
	IsGenesis               bool
	StakeVoid               *big.Int
}

// UptimePct returns the current epoch's heartbeat ratio as a 0-100 integer
// percentage (never float, per the deterministic-arithmetic requirement).
func (v *ValidatorRewardState) UptimePct() uint64 {
	return UptimeBasisPoints(v.HeartbeatsCurrentEpoch, v.ExpectedHeartbeats)
}

// IsEligible reports whether the validator qualifies for a reward this
// epoch: mainnet genesis validators never earn rewards; everyone else must
// be past probation, at minimum uptime, and at minimum stake.
func (v *ValidatorRewardState) IsEligible(currentEpoch uint64, isTestnet bool) bool {
	if v.IsGenesis && !isTestnet {
		return false
	}
	if currentEpoch < v.JoinEpoch+RewardProbationEpochs {
		return false
	}
	if v.UptimePct() < RewardMinUptimePct {
		return false
	}
	if v.StakeVoid.Cmp(MinValidatorStakeVoid) < 0 {
		return false
	}
	return true
}

// SqrtStakeWeight is the quadratic voting weight √(stake in whole UAT),
// consistent with the anti-whale engine's weighting.
func (v *ValidatorRewardState) SqrtStakeWeight() *big.Int {
	stakeUAT := new(big.Int).Div(v.StakeVoid, VoidPerUAT)
	return ISqrt(stakeUAT)
}

// RewardPool is the global epoch clock and payout ledger for validator
// rewards, paid independently of transaction fees.
type RewardPool struct {
	mu sync.Mutex

	IsTestnet bool

	remainingVoid        *big.Int
	currentEpoch         uint64
	epochStartTimestamp  int64
	halvingsOccurred     uint64
	totalDistributedVoid *big.Int
	epochDurationSecs    int64

	validators map[Address]*ValidatorRewardState
}

// NewRewardPool constructs a fully-funded pool anchored at genesisTimestamp.
func NewRewardPool(genesisTimestamp int64, epochDurationSecs int64, isTestnet bool) *RewardPool {
	return &RewardPool{
		IsTestnet:            isTestnet,
		remainingVoid:        new(big.Int).Set(ValidatorRewardPoolVoid),
		epochStartTimestamp:  genesisTimestamp,
		totalDistributedVoid: big.NewInt(0),
		epochDurationSecs:    epochDurationSecs,
		validators:           make(map[Address]*ValidatorRewardState),
	}
}

// NewRewardPoolWithBalance seeds a pool with a custom initial balance, for
// bootstrap scenarios where only a partial allocation has been funded.
func NewRewardPoolWithBalance(genesisTimestamp int64, epochDurationSecs int64, isTestnet bool, balanceVoid *big.Int) *RewardPool {
	p := NewRewardPool(genesisTimestamp, epochDurationSecs, isTestnet)
	p.remainingVoid = new(big.Int).Set(balanceVoid)
	return p
}

// RegisterValidator adds or updates a validator's stake/genesis status for
// reward tracking.
func (p *RewardPool) RegisterValidator(addr Address, isGenesis bool, stakeVoid *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.validators[addr]; ok {
		v.StakeVoid = new(big.Int).Set(stakeVoid)
		v.IsGenesis = isGenesis
		return
	}
	p.validators[addr] = &ValidatorRewardState{
		JoinEpoch:             p.currentEpoch,
		CumulativeRewardsVoid: big.NewInt(0),
		IsGenesis:             isGenesis,
		StakeVoid:             new(big.Int).Set(stakeVoid),
	}
}

// RecordHeartbeat increments addr's liveness counter for the current
// epoch; a heartbeat from an unregistered address is a no-op.
func (p *RewardPool) RecordHeartbeat(addr Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.validators[addr]; ok {
		v.HeartbeatsCurrentEpoch++
	}
}

// EpochRewardRate is the current epoch's payout budget before pool-balance
// capping: initial_rate >> halvings, floored at zero after 128 halvings.
func (p *RewardPool) EpochRewardRate() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epochRewardRateLocked()
}

func (p *RewardPool) epochRewardRateLocked() *big.Int {
	halvings := p.currentEpoch / RewardHalvingIntervalEpochs
	if halvings >= 128 {
		return big.NewInt(0)
	}
	return new(big.Int).Rsh(RewardRateInitialVoid, uint(halvings))
}

// IsEpochComplete reports whether nowSecs has reached the current epoch's
// end boundary.
func (p *RewardPool) IsEpochComplete(nowSecs int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return nowSecs >= p.epochStartTimestamp+p.epochDurationSecs
}

// EpochRemainingSecs returns the saturating remaining time in the current
// epoch.
func (p *RewardPool) EpochRemainingSecs(nowSecs int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	end := p.epochStartTimestamp + p.epochDurationSecs
	if nowSecs >= end {
		return 0
	}
	return end - nowSecs
}

// CatchUpEpochs fast-forwards through every fully-elapsed epoch but the
// current one without distributing rewards for them (nobody was online to
// earn them), returning the number of epochs skipped.
func (p *RewardPool) CatchUpEpochs(nowSecs int64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.epochDurationSecs == 0 {
		return 0
	}
	elapsed := nowSecs - p.epochStartTimestamp
	if elapsed < 0 {
		elapsed = 0
	}
	epochsBehind := uint64(elapsed) / uint64(p.epochDurationSecs)
	if epochsBehind <= 1 {
		return 0
	}
	skip := epochsBehind - 1
	p.currentEpoch += skip
	p.epochStartTimestamp += int64(skip) * p.epochDurationSecs
	p.halvingsOccurred = p.currentEpoch / RewardHalvingIntervalEpochs
	for _, v := range p.validators {
		v.HeartbeatsCurrentEpoch = 0
		v.ExpectedHeartbeats = 0
	}
	return skip
}

// SetExpectedHeartbeats recomputes every validator's expected liveness
// count for the current epoch from the heartbeat interval.
func (p *RewardPool) SetExpectedHeartbeats(heartbeatIntervalSecs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expected uint64
	if heartbeatIntervalSecs > 0 {
		expected = uint64(p.epochDurationSecs) / uint64(heartbeatIntervalSecs)
	}
	for _, v := range p.validators {
		v.ExpectedHeartbeats = expected
	}
}

// RewardPayout is one validator's share of an epoch's distribution.
type RewardPayout struct {
	Address Address
	Amount  *big.Int
}

// DistributeEpochRewards pays out the current epoch's budget proportional
// to each eligible validator's √stake weight, then advances the epoch. The
// caller is responsible for crediting each payout to the ledger as a
// system-generated Mint record.
func (p *RewardPool) DistributeEpochRewards() []RewardPayout {
	p.mu.Lock()
	defer p.mu.Unlock()

	rate := p.epochRewardRateLocked()
	if rate.Sign() == 0 || p.remainingVoid.Sign() == 0 {
		p.advanceEpochLocked()
		return nil
	}

	budget := rate
	if p.remainingVoid.Cmp(budget) < 0 {
		budget = p.remainingVoid
	}

	type weighted struct {
		addr   Address
		weight *big.Int
	}
	var eligible []weighted
	addrs := make([]Address, 0, len(p.validators))
	for a := range p.validators {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		v := p.validators[addr]
		if !v.IsEligible(p.currentEpoch, p.IsTestnet) {
			continue
		}
		w := v.SqrtStakeWeight()
		if w.Sign() > 0 {
			eligible = append(eligible, weighted{addr: addr, weight: w})
		}
	}
	if len(eligible) == 0 {
		p.advanceEpochLocked()
		return nil
	}

	totalWeight := big.NewInt(0)
	for _, e := range eligible {
		totalWeight.Add(totalWeight, e.weight)
	}
	if totalWeight.Sign() == 0 {
		p.advanceEpochLocked()
		return nil
	}

	var payouts []RewardPayout
	actuallyDistributed := big.NewInt(0)
	for _, e := range eligible {
		prod, ok := CheckedMul(budget, e.weight)
		reward := big.NewInt(0)
		if ok {
			reward = new(big.Int).Div(prod, totalWeight)
		}
		if reward.Sign() > 0 {
			payouts = append(payouts, RewardPayout{Address: e.addr, Amount: reward})
			actuallyDistributed.Add(actuallyDistributed, reward)
		}
	}

	p.remainingVoid = SaturatingSub(p.remainingVoid, actuallyDistributed)
	p.totalDistributedVoid.Add(p.totalDistributedVoid, actuallyDistributed)

	for _, payout := range payouts {
		p.validators[payout.Address].CumulativeRewardsVoid.Add(p.validators[payout.Address].CumulativeRewardsVoid, payout.Amount)
	}

	p.advanceEpochLocked()
	return payouts
}

func (p *RewardPool) advanceEpochLocked() {
	p.currentEpoch++
	p.epochStartTimestamp += p.epochDurationSecs
	p.halvingsOccurred = p.currentEpoch / RewardHalvingIntervalEpochs
	for _, v := range p.validators {
		v.HeartbeatsCurrentEpoch = 0
		v.ExpectedHeartbeats = 0
	}
}

// ValidatorInfo returns a copy of addr's reward state, if registered.
func (p *RewardPool) ValidatorInfo(addr Address) (ValidatorRewardState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.validators[addr]
	if !ok {
		return ValidatorRewardState{}, false
	}
	return *v, true
}

// RewardPoolSummary is a point-in-time diagnostic snapshot.
type RewardPoolSummary struct {
	RemainingVoid        *big.Int
	TotalDistributedVoid *big.Int
	CurrentEpoch         uint64
	EpochRewardRateVoid  *big.Int
	HalvingsOccurred     uint64
	TotalValidators      uint64
	EligibleValidators   uint64
}

// Summary reports the pool's current state for status endpoints.
func (p *RewardPool) Summary() RewardPoolSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	var eligible uint64
	for _, v := range p.validators {
		if v.IsEligible(p.currentEpoch, p.IsTestnet) {
			eligible++
		}
	}
	return RewardPoolSummary{
		RemainingVoid:        new(big.Int).Set(p.remainingVoid),
		TotalDistributedVoid: new(big.Int).Set(p.totalDistributedVoid),
		CurrentEpoch:         p.currentEpoch,
		EpochRewardRateVoid:  p.epochRewardRateLocked(),
		HalvingsOccurred:     p.halvingsOccurred,
		TotalValidators:      uint64(len(p.validators)),
		EligibleValidators:   eligible,
	}
}

// CurrentEpoch returns the pool's epoch counter.
func (p *RewardPool) CurrentEpoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentEpoch
}

// SetCurrentEpoch forcibly sets the epoch counter (used by restart recovery
// once CatchUpEpochs has been applied, and by test fixtures).
func (p *RewardPool) SetCurrentEpoch(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentEpoch = epoch
	p.halvingsOccurred = epoch / RewardHalvingIntervalEpochs
}
