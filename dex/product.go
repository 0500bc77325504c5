// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import "math/big"

// Constant-product curve: x*y = k. All math is floor-division big.Int;
// rounding always favors the pool.

// productOut quotes the output for amountIn against reserves after the
// trade fee (basis points) is shaved off the input.
func productOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) *big.Int {
	inAfterFee := applyFee(amountIn, feeBps)
	// out = reserveOut * inAfterFee / (reserveIn + inAfterFee)
	num := new(big.Int).Mul(reserveOut, inAfterFee)
	den := new(big.Int).Add(reserveIn, inAfterFee)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	return num.Div(num, den)
}

// applyFee returns amount * (FeeDenominator - feeBps) / FeeDenominator.
func applyFee(amount *big.Int, feeBps uint16) *big.Int {
	keep := new(big.Int).SetUint64(FeeDenominator - uint64(feeBps))
	out := new(big.Int).Mul(amount, keep)
	return out.Div(out, new(big.Int).SetUint64(FeeDenominator))
}

// feePortion returns amount * feeBps / FeeDenominator.
func feePortion(amount *big.Int, feeBps uint16) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeBps)))
	return out.Div(out, new(big.Int).SetUint64(FeeDenominator))
}

// bootstrapLiquidity is the LP supply minted for the first deposit:
// floor(sqrt(amount0 * amount1)).
func bootstrapLiquidity(amount0, amount1 *big.Int) *big.Int {
	prod := new(big.Int).Mul(amount0, amount1)
	return prod.Sqrt(prod)
}

// proportionalLiquidity computes the LP amount for a follow-up deposit:
// min(amount0*supply/reserve0, amount1*supply/reserve1), plus the exact
// amounts consumed at that ratio so the excess side can be refunded.
func proportionalLiquidity(amount0, amount1, reserve0, reserve1, supply *big.Int) (lp, used0, used1 *big.Int) {
	byAsset0 := new(big.Int).Mul(amount0, supply)
	byAsset0.Div(byAsset0, reserve0)
	byAsset1 := new(big.Int).Mul(amount1, supply)
	byAsset1.Div(byAsset1, reserve1)

	lp = byAsset0
	if byAsset1.Cmp(byAsset0) < 0 {
		lp = byAsset1
	}
	used0 = new(big.Int).Mul(lp, reserve0)
	used0.Div(used0, supply)
	used1 = new(big.Int).Mul(lp, reserve1)
	used1.Div(used1, supply)
	// Never consume more than offered; ceil artifacts clamp here.
	if used0.Cmp(amount0) > 0 {
		used0.Set(amount0)
	}
	if used1.Cmp(amount1) > 0 {
		used1.Set(amount1)
	}
	return lp, used0, used1
}

// burnAmounts returns the pro-rata share of both reserves for burning
// lpAmount out of supply.
func burnAmounts(lpAmount, reserve0, reserve1, supply *big.Int) (out0, out1 *big.Int) {
	out0 = new(big.Int).Mul(lpAmount, reserve0)
	out0.Div(out0, supply)
	out1 = new(big.Int).Mul(lpAmount, reserve1)
	out1.Div(out1, supply)
	return out0, out1
}
