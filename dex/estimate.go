// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import "math/big"

// Pure read-side estimators. Callers use these to pre-compute the
// minimum-output and minimum-liquidity guards they attach to messages;
// nothing here mutates pool state.

// EstimateSwapOut quotes a single hop against the pool's current
// reserves, charging the same fees the live swap would.
func EstimateSwapOut(p *Pool, assetIn Asset, amountIn *big.Int, withReferral bool) (*big.Int, error) {
	inSide, err := p.sideOf(assetIn)
	if err != nil {
		return nil, err
	}
	if !p.active {
		return nil, ErrVaultInactive
	}
	if p.supply.Sign() == 0 {
		return nil, ErrPoolNotInitialized
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	fee := p.lpFee + p.protocolFee
	if withReferral {
		fee += p.rt.Config().ReferralFee
	}
	reserveIn, reserveOut := p.reserve0, p.reserve1
	if inSide == 1 {
		reserveIn, reserveOut = p.reserve1, p.reserve0
	}
	out, err := p.quoteOut(amountIn, new(big.Int).Set(reserveIn), new(big.Int).Set(reserveOut), inSide, fee)
	if err != nil {
		return nil, err
	}
	if out.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return out, nil
}

// EstimateDepositLiquidity quotes the LP amount a two-sided deposit
// would mint, along with the exact amounts consumed (the rest would be
// refunded). Amounts are in canonical asset order.
func EstimateDepositLiquidity(p *Pool, amount0, amount1 *big.Int) (lp, used0, used1 *big.Int, err error) {
	if amount0 == nil || amount1 == nil || amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil, nil, nil, ErrInvalidAmount
	}
	if p.supply.Sign() == 0 {
		if p.key.Kind == ConstantProduct {
			lp = bootstrapLiquidity(amount0, amount1)
		} else {
			s := p.key.Settings
			lp, err = stableD(normalize(amount0, s.Rate0), normalize(amount1, s.Rate1), s.Amp)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		cfg := p.rt.Config()
		if lp.Cmp(cfg.minDepositFloor()) < 0 || lp.Cmp(cfg.lockedLiquidity()) <= 0 {
			return nil, nil, nil, ErrInsufficientLiquidity
		}
		return lp, new(big.Int).Set(amount0), new(big.Int).Set(amount1), nil
	}
	lp, used0, used1 = proportionalLiquidity(amount0, amount1, p.reserve0, p.reserve1, p.supply)
	if lp.Sign() <= 0 {
		return nil, nil, nil, ErrInsufficientLiquidity
	}
	return lp, used0, used1, nil
}

// EstimateWithdraw quotes the pro-rata payout for burning lpAmount.
func EstimateWithdraw(p *Pool, lpAmount *big.Int) (out0, out1 *big.Int, err error) {
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if p.supply.Sign() == 0 || lpAmount.Cmp(p.supply) > 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	out0, out1 = burnAmounts(lpAmount, p.reserve0, p.reserve1, p.supply)
	return out0, out1, nil
}
