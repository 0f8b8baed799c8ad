// Package lmsr implements a two-outcome Logarithmic Market Scoring Rule.
package lmsr

import (
	"math"

	"predictmarket/internal/types"
)

// DefaultLiquidity is the liquidity parameter used when a market does not
// specify its own. Larger values flatten the price curve.
const DefaultLiquidity = float64(10.0)

const (
	solverIterations = 60
	solverTolerance  = 1e-9
)

// Cost is the LMSR cost function b*ln(exp(qYes/b) + exp(qNo/b)). The larger
// exponent is factored out before exponentiating so that the result stays
// finite for any quantities a market can accumulate; raw exp overflows float64
// once q/b passes ~709.
func Cost(qYes, qNo, b float64) float64 {
	m := math.Max(qYes, qNo) / b
	return b * (m + math.Log(math.Exp(qYes/b-m)+math.Exp(qNo/b-m)))
}

// PriceYes is the instantaneous price of a YES share, in (0, 1).
func PriceYes(qYes, qNo, b float64) float64 {
	m := math.Max(qYes, qNo) / b
	ey := math.Exp(qYes/b - m)
	en := math.Exp(qNo/b - m)
	return ey / (ey + en)
}

// PriceNo is the instantaneous price of a NO share, in (0, 1).
// PriceYes + PriceNo = 1 for all finite inputs.
func PriceNo(qYes, qNo, b float64) float64 {
	return 1 - PriceYes(qYes, qNo, b)
}

// CostToBuyDeltaYes is the amount charged to move the YES side by delta shares.
func CostToBuyDeltaYes(qYes, qNo, delta, b float64) float64 {
	return Cost(qYes+delta, qNo, b) - Cost(qYes, qNo, b)
}

// CostToBuyDeltaNo is the amount charged to move the NO side by delta shares.
func CostToBuyDeltaNo(qYes, qNo, delta, b float64) float64 {
	return Cost(qYes, qNo+delta, b) - Cost(qYes, qNo, b)
}

// CostToBuy dispatches on side.
func CostToBuy(qYes, qNo, delta, b float64, side types.Side) float64 {
	if side == types.SideNo {
		return CostToBuyDeltaNo(qYes, qNo, delta, b)
	}
	return CostToBuyDeltaYes(qYes, qNo, delta, b)
}

// FindQuantityForExactCost returns the share quantity on the given side whose
// incremental cost equals cash. The cost function is strictly increasing in
// delta, so bisection on [0, max(1, 2*cash+10)] converges to the unique root;
// cost grows at least linearly for large delta, which makes the upper bound
// safe. The lower bound is returned, a slight underestimate, so recomputing
// the cost from the result never charges more than cash plus the tolerance.
// Callers must recompute the actual cost from the returned quantity.
func FindQuantityForExactCost(qYes, qNo, cash, b float64, side types.Side) float64 {
	if cash <= 0 {
		return 0
	}
	low := 0.0
	high := math.Max(1, 2*cash+10)
	for i := 0; i < solverIterations; i++ {
		mid := (low + high) / 2
		if CostToBuy(qYes, qNo, mid, b, side) > cash {
			high = mid
		} else {
			low = mid
		}
		if high-low < solverTolerance {
			break
		}
	}
	return low
}
