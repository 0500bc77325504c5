// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddressDeterministic(t *testing.T) {
	ct := DefaultCodeTemplates()
	data := []byte("init data")

	a := DeriveAddress(ct.Hash(KindVault), data)
	b := DeriveAddress(ct.Hash(KindVault), data)
	require.Equal(t, a, b)

	// Different template or different data, different address.
	require.NotEqual(t, a, DeriveAddress(ct.Hash(KindPoolProduct), data))
	require.NotEqual(t, a, DeriveAddress(ct.Hash(KindVault), []byte("other init")))
}

func TestDefaultTemplatesDistinct(t *testing.T) {
	ct := DefaultCodeTemplates()
	seen := make(map[common.Hash]bool)
	for _, kind := range ct.Kinds() {
		h := ct.Hash(kind)
		require.False(t, seen[h], "duplicate template hash for %s", kind)
		seen[h] = true
	}
}

func TestTemplateSetBounds(t *testing.T) {
	ct := DefaultCodeTemplates()
	require.NoError(t, ct.Set(KindVault, common.HexToHash("0x01")))
	require.Equal(t, common.HexToHash("0x01"), ct.Hash(KindVault))
	require.Error(t, ct.Set(kindCount, common.Hash{}))

	clone := ct.Clone()
	require.NoError(t, clone.Set(KindVault, common.HexToHash("0x02")))
	require.Equal(t, common.HexToHash("0x01"), ct.Hash(KindVault))
}

func TestFactoryAddressSymmetry(t *testing.T) {
	rt := newTestRuntime(t)
	f := NewFactory(rt, common.HexToAddress("0xad"))

	a := NativeAsset()
	b := testToken(0x01)
	forward := PoolKey{Asset0: a, Asset1: b, Kind: ConstantProduct}
	reverse := PoolKey{Asset0: b, Asset1: a, Kind: ConstantProduct}

	require.Equal(t, f.PoolAddress(forward), f.PoolAddress(reverse))
	require.NotEqual(t, f.PoolAddress(forward), f.VaultAddress(a))

	owner := common.HexToAddress("0x01")
	require.Equal(t, f.DepositoryAddress(owner, forward), f.DepositoryAddress(owner, reverse))
	require.NotEqual(t, f.DepositoryAddress(owner, forward), f.PoolCreatorAddress(owner, forward))
	require.NotEqual(t,
		f.DepositoryAddress(owner, forward),
		f.DepositoryAddress(common.HexToAddress("0x02"), forward))
}

func TestVaultAddressPerAsset(t *testing.T) {
	rt := newTestRuntime(t)
	f := NewFactory(rt, common.HexToAddress("0xad"))

	require.NotEqual(t, f.VaultAddress(NativeAsset()), f.VaultAddress(testToken(0x01)))
	require.NotEqual(t, f.VaultAddress(testToken(0x01)), f.VaultAddress(testToken(0x02)))
	require.Equal(t, f.VaultAddress(testToken(0x01)), f.VaultAddress(testToken(0x01)))
}
