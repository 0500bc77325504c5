// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func testToken(b byte) Asset {
	return TokenAsset(0, common.BytesToHash([]byte{b}))
}

func TestAssetRoundTrip(t *testing.T) {
	assets := []Asset{
		NativeAsset(),
		TokenAsset(3, common.HexToHash("0xdeadbeef")),
		CurrencyAsset(42),
	}
	for _, a := range assets {
		got, err := AssetFromBytes(a.ToBytes())
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

func TestAssetOrdering(t *testing.T) {
	native := NativeAsset()
	tokA := testToken(0x01)
	tokB := testToken(0x02)

	require.Negative(t, native.Cmp(tokA))
	require.Negative(t, tokA.Cmp(tokB))
	require.Positive(t, tokB.Cmp(tokA))
	require.Zero(t, tokA.Cmp(testToken(0x01)))
}

func TestPoolKeyNormalization(t *testing.T) {
	a := NativeAsset()
	b := testToken(0x01)

	forward := PoolKey{Asset0: a, Asset1: b, Kind: ConstantProduct}
	reverse := PoolKey{Asset0: b, Asset1: a, Kind: ConstantProduct}

	require.Equal(t, forward.Normalized(), reverse.Normalized())
	require.Equal(t, forward.ID(), reverse.ID())
}

func TestPoolKeyNormalizationSwapsRates(t *testing.T) {
	a := testToken(0x01)
	b := testToken(0x02)
	settings := &StableSettings{
		Amp:   big.NewInt(100 * APrecision),
		Rate0: big.NewInt(RatePrecision),
		Rate1: new(big.Int).Mul(big.NewInt(RatePrecision), big.NewInt(2)),
	}
	// b > a, so normalization flips the pair and must flip the rates
	// with it.
	key := PoolKey{Asset0: b, Asset1: a, Kind: CurveFiStable, Settings: settings}
	n := key.Normalized()
	require.Equal(t, a, n.Asset0)
	require.Equal(t, settings.Rate1, n.Settings.Rate0)
	require.Equal(t, settings.Rate0, n.Settings.Rate1)

	forward := PoolKey{Asset0: a, Asset1: b, Kind: CurveFiStable, Settings: n.Settings.Clone()}
	require.Equal(t, forward.ID(), key.ID())
}

func TestPoolKeyRoundTrip(t *testing.T) {
	keys := []PoolKey{
		{Asset0: NativeAsset(), Asset1: testToken(0x01), Kind: ConstantProduct},
		{
			Asset0: testToken(0x01),
			Asset1: CurrencyAsset(7),
			Kind:   CurveFiStable,
			Settings: &StableSettings{
				Amp:   big.NewInt(2_000),
				Rate0: big.NewInt(RatePrecision),
				Rate1: big.NewInt(RatePrecision),
			},
		},
	}
	for _, key := range keys {
		got, err := PoolKeyFromBytes(key.ToBytes())
		require.NoError(t, err)
		require.Equal(t, key.Normalized().ID(), got.ID())
	}
}

func TestConfigVerify(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Verify())
	require.Equal(t, ConfigKey, cfg.Key())
	require.True(t, cfg.Equal(DefaultConfig()))

	bad := DefaultConfig()
	bad.DefaultLPFee = 2_000
	require.Error(t, bad.Verify())

	bad = DefaultConfig()
	bad.MinDeposit = 10
	require.Error(t, bad.Verify())
}
