package core

import (
	"math/big"
	"testing"
)

func TestISqrt(t *testing.T) {
	cases := []struct {
		n    int64
		want int64
	}{
		{0, 0}, {1, 1}, {2, 1}, {3, 1}, {4, 2}, {8, 2}, {9, 3}, {99, 9}, {100, 10}, {10000, 100},
	}
	for _, c := range cases {
		got := ISqrt(big.NewInt(c.n))
		if got.Int64() != c.want {
			t.Errorf("ISqrt(%d) = %s, want %d", c.n, got.String(), c.want)
		}
	}
}

func TestISqrtUint64(t *testing.T) {
	if got := ISqrtUint64(1_000_000); got != 1000 {
		t.Fatalf("ISqrtUint64(1e6) = %d, want 1000", got)
	}
}

func TestCheckedAddOverflow(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	if _, ok := CheckedAdd(max, big.NewInt(1)); ok {
		t.Fatal("expected overflow to be rejected")
	}
	if sum, ok := CheckedAdd(big.NewInt(2), big.NewInt(3)); !ok || sum.Int64() != 5 {
		t.Fatalf("CheckedAdd(2,3) = %v, %v", sum, ok)
	}
}

func TestCheckedSubUnderflow(t *testing.T) {
	if _, ok := CheckedSub(big.NewInt(1), big.NewInt(2)); ok {
		t.Fatal("expected underflow to be rejected")
	}
	if diff, ok := CheckedSub(big.NewInt(5), big.NewInt(3)); !ok || diff.Int64() != 2 {
		t.Fatalf("CheckedSub(5,3) = %v, %v", diff, ok)
	}
}

func TestSaturatingSubFloorsAtZero(t *testing.T) {
	got := SaturatingSub(big.NewInt(3), big.NewInt(10))
	if got.Sign() != 0 {
		t.Fatalf("SaturatingSub(3,10) = %s, want 0", got.String())
	}
}

func TestSaturatingMulClamps(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	got := SaturatingMul(max, big.NewInt(2))
	if got.Cmp(max) != 0 {
		t.Fatalf("SaturatingMul should clamp to max, got %s", got.String())
	}
}

func TestSaturatingPow(t *testing.T) {
	got := SaturatingPow(big.NewInt(2), 4)
	if got.Int64() != 16 {
		t.Fatalf("SaturatingPow(2,4) = %s, want 16", got.String())
	}
}

func TestUptimeBasisPoints(t *testing.T) {
	if got := UptimeBasisPoints(95, 100); got != 95 {
		t.Fatalf("UptimeBasisPoints(95,100) = %d, want 95", got)
	}
	if got := UptimeBasisPoints(200, 100); got != 100 {
		t.Fatalf("UptimeBasisPoints should cap at 100, got %d", got)
	}
	if got := UptimeBasisPoints(5, 0); got != 0 {
		t.Fatalf("UptimeBasisPoints with zero expected should be 0, got %d", got)
	}
}
