package lmsr

import (
	"math"
	"testing"

	"github.com/matryer/is"

	"predictmarket/internal/types"
)

const epsilon = 1e-6

func withinEpsilon(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestPricesSumToOne(t *testing.T) {
	is := is.New(t)
	cases := [][3]float64{
		{0, 0, 10},
		{5, 3, 10},
		{120, 7, 10},
		{0.5, 99, 25},
		{1000, 400, 100},
	}
	for _, c := range cases {
		is.True(withinEpsilon(PriceYes(c[0], c[1], c[2])+PriceNo(c[0], c[1], c[2]), 1))
	}
}

func TestPriceFreshMarket(t *testing.T) {
	is := is.New(t)
	is.True(withinEpsilon(PriceYes(0, 0, 10), 0.5))
	is.True(withinEpsilon(PriceNo(0, 0, 10), 0.5))
}

func TestFirstShareCost(t *testing.T) {
	is := is.New(t)
	// cost(1,0,10) - cost(0,0,10) = 10*ln(e^0.1+1) - 10*ln(2)
	want := 10*math.Log(math.Exp(0.1)+1) - 10*math.Log(2)
	is.True(withinEpsilon(CostToBuyDeltaYes(0, 0, 1, 10), want))
	is.True(math.Abs(want-0.4877) < 1e-4)
}

func TestCostMonotonic(t *testing.T) {
	is := is.New(t)
	prev := Cost(0, 7, 10)
	for q := 1.0; q <= 50; q++ {
		c := Cost(q, 7, 10)
		is.True(c > prev)
		prev = c
	}
	prev = Cost(7, 0, 10)
	for q := 1.0; q <= 50; q++ {
		c := Cost(7, q, 10)
		is.True(c > prev)
		prev = c
	}
}

func TestTradeCostPositive(t *testing.T) {
	is := is.New(t)
	is.True(CostToBuyDeltaYes(3, 9, 2, 10) > 0)
	is.True(CostToBuyDeltaNo(3, 9, 2, 10) > 0)
}

func TestCostStableForLargeQuantities(t *testing.T) {
	is := is.New(t)
	// q/b far past where naive exp overflows.
	c := Cost(20000, 15000, 10)
	is.True(!math.IsInf(c, 1))
	is.True(!math.IsNaN(c))
	p := PriceYes(20000, 15000, 10)
	is.True(p > 0 && p <= 1)
}

func TestSolverRoundTripYes(t *testing.T) {
	is := is.New(t)
	for _, cash := range []float64{0.01, 1, 5, 42.5, 100} {
		delta := FindQuantityForExactCost(3, 8, cash, 10, types.SideYes)
		got := CostToBuyDeltaYes(3, 8, delta, 10)
		is.True(withinEpsilon(got, cash))
	}
}

func TestSolverRoundTripNo(t *testing.T) {
	is := is.New(t)
	for _, cash := range []float64{0.01, 1, 5, 42.5, 100} {
		delta := FindQuantityForExactCost(3, 8, cash, 10, types.SideNo)
		got := CostToBuyDeltaNo(3, 8, delta, 10)
		is.True(withinEpsilon(got, cash))
	}
}

func TestSolverSideMatters(t *testing.T) {
	is := is.New(t)
	// With a skewed market the same cash buys different quantities per side.
	yes := FindQuantityForExactCost(20, 0, 10, 10, types.SideYes)
	no := FindQuantityForExactCost(20, 0, 10, 10, types.SideNo)
	is.True(no > yes)
}

func TestSolverNeverOvershoots(t *testing.T) {
	is := is.New(t)
	for _, cash := range []float64{0.5, 7, 100} {
		delta := FindQuantityForExactCost(0, 0, cash, 10, types.SideYes)
		is.True(CostToBuyDeltaYes(0, 0, delta, 10) <= cash+epsilon)
	}
}

func TestSolverZeroCash(t *testing.T) {
	is := is.New(t)
	is.Equal(FindQuantityForExactCost(4, 4, 0, 10, types.SideYes), 0.0)
	is.Equal(FindQuantityForExactCost(4, 4, -3, 10, types.SideNo), 0.0)
}
