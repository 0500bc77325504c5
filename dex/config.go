// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ConfigKey is the key used in json config files for the amm engine.
const ConfigKey = "ammConfig"

// Config carries the protocol parameters every pool is created with.
// Fees are basis points out of FeeDenominator.
type Config struct {
	// MinDeposit rejects bootstrap deposits whose geometric mean would
	// round below the locked dust.
	MinDeposit uint64 `json:"minDeposit"`

	// LockedLiquidity is the LP dust minted to the zero address on
	// bootstrap so total supply can never return to zero.
	LockedLiquidity uint64 `json:"lockedLiquidity"`

	// DefaultLPFee and DefaultProtocolFee seed new pools; both remain
	// adjustable per pool by the factory admin.
	DefaultLPFee       uint16 `json:"defaultLpFee"`
	DefaultProtocolFee uint16 `json:"defaultProtocolFee"`

	// ReferralFee is paid from the taker side of every swap that names
	// a referral address.
	ReferralFee uint16 `json:"referralFee"`
}

// DefaultConfig returns the parameters production deployments run with.
func DefaultConfig() *Config {
	return &Config{
		MinDeposit:         1000,
		LockedLiquidity:    1000,
		DefaultLPFee:       25,
		DefaultProtocolFee: 10,
		ReferralFee:        10,
	}
}

// Key returns the json config key.
func (c *Config) Key() string { return ConfigKey }

// Verify checks the parameters are internally consistent.
func (c *Config) Verify() error {
	if c.LockedLiquidity == 0 {
		return fmt.Errorf("lockedLiquidity must be positive")
	}
	if c.MinDeposit < c.LockedLiquidity {
		return fmt.Errorf("minDeposit %d below lockedLiquidity %d", c.MinDeposit, c.LockedLiquidity)
	}
	total := uint64(c.DefaultLPFee) + uint64(c.DefaultProtocolFee) + uint64(c.ReferralFee)
	if total > MaxTradeFee {
		return fmt.Errorf("combined fee %d exceeds cap %d", total, MaxTradeFee)
	}
	return nil
}

// Equal reports whether two configs carry the same parameters.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return *c == *other
}

// String implements fmt.Stringer.
func (c *Config) String() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// minDepositFloor returns MinDeposit as a big.Int for bootstrap checks.
func (c *Config) minDepositFloor() *big.Int {
	return new(big.Int).SetUint64(c.MinDeposit)
}

// lockedLiquidity returns LockedLiquidity as a big.Int.
func (c *Config) lockedLiquidity() *big.Int {
	return new(big.Int).SetUint64(c.LockedLiquidity)
}
