package core

import (
	"errors"
	"testing"
)

// TestScenarioS7AntiWhaleFeeCurve reproduces: 8 transactions at base fee 100
// from the same address within 60s with max_tx_per_window=5, scale=2.
// Expected fee sequence 100,100,100,100,100,200,400,800; EstimateFee queried
// after tx 5 (without mutation) returns 200 and is stable across repeats.
func TestScenarioS7AntiWhaleFeeCurve(t *testing.T) {
	e := NewAntiWhaleEngine(AntiWhaleConfig{MaxTxPerBlock: 5, FeeScaleMultiplier: 2, MaxBurnPerBlock: 1_000})
	addr := Address("whale")

	want := []uint64{100, 100, 100, 100, 100, 200, 400, 800}
	for i, w := range want {
		got := e.RegisterTransaction(addr, 100)
		if got != w {
			t.Fatalf("tx %d fee = %d, want %d", i+1, got, w)
		}
		if i == 4 { // after tx 5
			est := e.EstimateFee(addr, 100)
			if est != 200 {
				t.Fatalf("EstimateFee after tx 5 = %d, want 200", est)
			}
			est2 := e.EstimateFee(addr, 100)
			if est2 != est {
				t.Fatalf("EstimateFee is not stable across repeated queries: %d != %d", est2, est)
			}
		}
	}
}

func TestAntiWhaleWindowReset(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	addr := Address("addr1")
	for i := 0; i < 5; i++ {
		e.RegisterTransaction(addr, 100)
	}
	a, ok := e.Activity(addr)
	if !ok || a.TxCount != 5 {
		t.Fatalf("expected TxCount=5 before reset, got %+v", a)
	}

	e.ResetBlockActivity()
	a, ok = e.Activity(addr)
	if !ok || a.TxCount != 0 || a.FeeMultiplier != 1 {
		t.Fatalf("expected counters reset, got %+v", a)
	}
}

func TestAntiWhaleRegisterBurnLimit(t *testing.T) {
	e := NewAntiWhaleEngine(AntiWhaleConfig{MaxTxPerBlock: 5, FeeScaleMultiplier: 2, MaxBurnPerBlock: 1_000})
	addr := Address("burner")
	if err := e.RegisterBurn(addr, 600); err != nil {
		t.Fatalf("first burn should pass: %v", err)
	}
	if err := e.RegisterBurn(addr, 401); !errors.Is(err, ErrBurnLimitExceeded) {
		t.Fatalf("expected ErrBurnLimitExceeded, got %v", err)
	}
	if err := e.RegisterBurn(addr, 400); err != nil {
		t.Fatalf("burn exactly at the remaining limit should pass: %v", err)
	}
}

func TestVotingPowerQuadratic(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	if got := e.VotingPower(10_000); got != 100 {
		t.Fatalf("VotingPower(10000) = %d, want 100", got)
	}
	if got := e.VotingPower(0); got != 0 {
		t.Fatalf("VotingPower(0) = %d, want 0", got)
	}
}

func TestVotingDistributionNormalizesToBasisPoints(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	validators := map[Address]uint64{
		"a": 10_000, // sqrt = 100
		"b": 10_000, // sqrt = 100
	}
	dist := e.VotingDistribution(validators)
	if dist["a"] != 5_000 || dist["b"] != 5_000 {
		t.Fatalf("expected an even 50/50 split in basis points, got %+v", dist)
	}
}

func TestVotingDistributionZeroStakeAll(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	validators := map[Address]uint64{"a": 0, "b": 0}
	dist := e.VotingDistribution(validators)
	if dist["a"] != 0 || dist["b"] != 0 {
		t.Fatalf("expected zero distribution when all stakes are zero, got %+v", dist)
	}
}

func TestIsWhale(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	if !e.IsWhale(2_000, 100_000) {
		t.Fatal("stake above 1%% of supply should count as a whale")
	}
	if e.IsWhale(500, 100_000) {
		t.Fatal("stake below 1%% of supply should not count as a whale")
	}
}

func TestConcentrationStats(t *testing.T) {
	e := NewAntiWhaleEngine(DefaultAntiWhaleConfig())
	validators := map[Address]uint64{
		"a": 500, "b": 300, "c": 100, "d": 50, "e": 50,
	}
	stats := e.ConcentrationStats(validators)
	if stats.TotalValidators != 5 {
		t.Fatalf("TotalValidators = %d, want 5", stats.TotalValidators)
	}
	if stats.TotalStake != 1000 {
		t.Fatalf("TotalStake = %d, want 1000", stats.TotalStake)
	}
	if stats.LargestStake != 500 || stats.SmallestStake != 50 {
		t.Fatalf("unexpected largest/smallest: %+v", stats)
	}
	// top3 = 500+300+100 = 900 -> 9000 bps
	if stats.Top3Percent != 9_000 {
		t.Fatalf("Top3Percent = %d, want 9000", stats.Top3Percent)
	}
}
