// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestProductOutGolden(t *testing.T) {
	cases := []struct {
		in, rIn, rOut int64
		fee           uint16
		want          int64
	}{
		{10_000, 1_000_000, 1_000_000, 35, 9_866},
		{10_000, 1_000_000, 1_000_000, 0, 9_900},
		{500, 1_000, 2_000, 30, 664},
		{123_456, 9_876_543, 1_234_567, 100, 15_090},
	}
	for _, c := range cases {
		out := productOut(bi(c.in), bi(c.rIn), bi(c.rOut), c.fee)
		require.Equal(t, c.want, out.Int64(), "in=%d rIn=%d rOut=%d fee=%d", c.in, c.rIn, c.rOut, c.fee)
	}
}

func TestProductOutEmptyPool(t *testing.T) {
	out := productOut(bi(100), bi(0), bi(0), 30)
	require.Zero(t, out.Sign())
}

func TestBootstrapLiquidity(t *testing.T) {
	require.Equal(t, int64(2_000_000), bootstrapLiquidity(bi(1_000_000), bi(4_000_000)).Int64())
	require.Equal(t, int64(1_000), bootstrapLiquidity(bi(1_000), bi(1_000)).Int64())
	// floor(sqrt(2)) = 1
	require.Equal(t, int64(1), bootstrapLiquidity(bi(1), bi(2)).Int64())
}

func TestProportionalLiquidity(t *testing.T) {
	// Balanced pool, unbalanced deposit: the smaller side caps the mint
	// and the larger side's excess is returned.
	lp, used0, used1 := proportionalLiquidity(
		bi(200_000), bi(100_000),
		bi(1_000_000), bi(1_000_000),
		bi(1_000_000))
	require.Equal(t, int64(100_000), lp.Int64())
	require.Equal(t, int64(100_000), used0.Int64())
	require.Equal(t, int64(100_000), used1.Int64())
}

func TestBurnAmounts(t *testing.T) {
	out0, out1 := burnAmounts(bi(250_000), bi(1_000_000), bi(2_000_000), bi(1_000_000))
	require.Equal(t, int64(250_000), out0.Int64())
	require.Equal(t, int64(500_000), out1.Int64())
}

func TestFeeHelpers(t *testing.T) {
	require.Equal(t, int64(9_965), applyFee(bi(10_000), 35).Int64())
	require.Equal(t, int64(10), feePortion(bi(10_000), 10).Int64())
	require.Equal(t, int64(10_000), applyFee(bi(10_000), 0).Int64())
}

func stableRate() *big.Int { return new(big.Int).SetUint64(RatePrecision) }

func TestStableDGolden(t *testing.T) {
	amp := bi(100 * APrecision)

	d, err := stableD(bi(1_000_000), bi(1_000_000), amp)
	require.NoError(t, err)
	// Balanced pool: D equals the sum exactly.
	require.Equal(t, int64(2_000_000), d.Int64())

	d, err = stableD(bi(1_000_000), bi(2_000_000), amp)
	require.NoError(t, err)
	require.Equal(t, int64(2_998_146), d.Int64())
}

func TestStableDEdges(t *testing.T) {
	amp := bi(100 * APrecision)

	d, err := stableD(bi(0), bi(0), amp)
	require.NoError(t, err)
	require.Zero(t, d.Sign())

	_, err = stableD(bi(0), bi(1_000), amp)
	require.ErrorIs(t, err, errEmptyReserve)
}

func TestStableOutGolden(t *testing.T) {
	rate := stableRate()
	cases := []struct {
		in, rIn, rOut int64
		rateOutX2     bool
		ampFactor     int64
		fee           uint16
		want          int64
	}{
		{10_000, 1_000_000, 1_000_000, false, 100, 20, 9_979},
		{10_000, 1_000_000, 1_000_000, false, 100, 0, 9_999},
		{250_000, 1_000_000, 2_000_000, false, 100, 30, 250_678},
		{10_000, 1_000_000, 1_000_000, true, 10, 20, 5_366},
	}
	for _, c := range cases {
		rateOut := rate
		if c.rateOutX2 {
			rateOut = new(big.Int).Mul(rate, bi(2))
		}
		out, err := stableOut(bi(c.in), bi(c.rIn), bi(c.rOut), rate, rateOut, bi(c.ampFactor*APrecision), c.fee)
		require.NoError(t, err)
		require.Equal(t, c.want, out.Int64(), "in=%d rIn=%d rOut=%d fee=%d", c.in, c.rIn, c.rOut, c.fee)
	}
}

func TestStableOutStaysNearParity(t *testing.T) {
	// High amplification keeps a balanced stable pool close to 1:1 even
	// for a sizeable trade; the product curve would slip far more.
	rate := stableRate()
	amp := bi(100 * APrecision)
	out, err := stableOut(bi(100_000), bi(1_000_000), bi(1_000_000), rate, rate, amp, 0)
	require.NoError(t, err)
	slipped := productOut(bi(100_000), bi(1_000_000), bi(1_000_000), 0)
	require.Greater(t, out.Int64(), slipped.Int64())
	require.Less(t, out.Int64(), int64(100_000))
}

func TestNormalizeRoundTrip(t *testing.T) {
	rate := new(big.Int).Mul(stableRate(), bi(2))
	x := normalize(bi(500), rate)
	require.Equal(t, int64(1_000), x.Int64())
	require.Equal(t, int64(500), denormalize(x, rate).Int64())
}
