package core

import "math/big"

// ISqrt returns the floor of the integer square root of n using Newton's
// method. The result is bit-identical across platforms since it operates
// purely on big.Int arithmetic with no floating point involved anywhere on
// this path. ISqrt(0) == 0.
func ISqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(0)
	}
	x := new(big.Int).Set(n)
	y := new(big.Int).Add(n, big.NewInt(1))
	y.Rsh(y, 1) // ceil(n/2) == (n+1)/2 for the Newton seed
	two := big.NewInt(2)
	for y.Cmp(x) < 0 {
		x.Set(y)
		// y = (x + n/x) / 2
		y.Div(n, x)
		y.Add(y, x)
		y.Div(y, two)
	}
	return x
}

// ISqrtUint64 is a convenience wrapper for stake/weight values that fit in a
// uint64; it still routes through big.Int so the computation stays
// consistent with ISqrt.
func ISqrtUint64(n uint64) uint64 {
	r := ISqrt(new(big.Int).SetUint64(n))
	return r.Uint64()
}

var maxUint128 = func() *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), 128)
	m.Sub(m, big.NewInt(1))
	return m
}()

// CheckedAdd returns a+b and true, or nil and false if the sum would exceed
// the 128-bit unsigned range.
func CheckedAdd(a, b *big.Int) (*big.Int, bool) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxUint128) > 0 {
		return nil, false
	}
	return sum, true
}

// CheckedSub returns a-b and true, or nil and false if b > a (no borrow is
// permitted on checked subtraction paths).
func CheckedSub(a, b *big.Int) (*big.Int, bool) {
	if b.Cmp(a) > 0 {
		return nil, false
	}
	return new(big.Int).Sub(a, b), true
}

// CheckedMul returns a*b and true, or nil and false on 128-bit overflow.
func CheckedMul(a, b *big.Int) (*big.Int, bool) {
	if a.Sign() == 0 || b.Sign() == 0 {
		return big.NewInt(0), true
	}
	prod := new(big.Int).Mul(a, b)
	if prod.Cmp(maxUint128) > 0 {
		return nil, false
	}
	return prod, true
}

// SaturatingSub returns a-b, floored at zero instead of erroring. Used by
// Slash application and by the reward pool's remaining-balance deduction.
func SaturatingSub(a, b *big.Int) *big.Int {
	if b.Cmp(a) >= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(a, b)
}

// SaturatingMul returns a*b clamped to the 128-bit unsigned maximum on
// overflow.
func SaturatingMul(a, b *big.Int) *big.Int {
	if a.Sign() == 0 || b.Sign() == 0 {
		return big.NewInt(0)
	}
	prod := new(big.Int).Mul(a, b)
	if prod.Cmp(maxUint128) > 0 {
		return new(big.Int).Set(maxUint128)
	}
	return prod
}

// SaturatingPow returns base^exp clamped to the 128-bit unsigned maximum on
// overflow. The anti-whale fee multiplier (scale^(excess+1)) uses its own
// uint64 counterpart, saturatingPowU64, not this function.
func SaturatingPow(base *big.Int, exp uint) *big.Int {
	result := big.NewInt(1)
	for i := uint(0); i < exp; i++ {
		result = SaturatingMul(result, base)
		if result.Cmp(maxUint128) == 0 {
			return result
		}
	}
	return result
}

// BasisPoints is a percentage expressed in ten-thousandths (10,000 == 100%).
type BasisPoints uint64

const BasisPointsScale BasisPoints = 10_000

// UptimeBasisPoints computes min(100, heartbeats*100/expected) expressed as
// a plain percentage (0-100), matching the spec's integer uptime formula.
// Returns 0 when expected is 0.
func UptimeBasisPoints(heartbeats, expected uint64) uint64 {
	if expected == 0 {
		return 0
	}
	pct := heartbeats * 100 / expected
	if pct > 100 {
		pct = 100
	}
	return pct
}
