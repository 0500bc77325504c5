// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func TestStateStoreRoundTrip(t *testing.T) {
	db := memdb.New()
	defer db.Close()
	store := NewStateStore(db)
	addr := common.HexToAddress("0x42")

	got, err := store.GetActor(addr)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, store.PutActor(addr, []byte("payload")))
	got, err = store.GetActor(addr)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	require.NoError(t, store.DeleteActor(addr))
	got, err = store.GetActor(addr)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStateStoreRejectsUnknownVersion(t *testing.T) {
	db := memdb.New()
	defer db.Close()
	store := NewStateStore(db)
	addr := common.HexToAddress("0x42")

	key := makeStorageKey(actorStatePrefix, addr.Bytes())
	require.NoError(t, db.Put(key, []byte{0xFF, 0x01}))
	_, err := store.GetActor(addr)
	require.Error(t, err)
}

// TestActorRestartRecovery drives the protocol, then rebuilds every
// actor from the persisted records on a fresh runtime and checks the
// state carried over.
func TestActorRestartRecovery(t *testing.T) {
	db := memdb.New()
	defer db.Close()
	store := NewStateStore(db)
	logger := log.NewTestLogger(log.InfoLevel)

	fx := &fixture{
		t:     t,
		rt:    NewRuntime(logger, store, nil),
		admin: common.HexToAddress("0xaaaa"),
		user:  common.HexToAddress("0x1111"),
		tokA:  testToken(0xa1),
	}
	fx.factory = NewFactory(fx.rt, fx.admin)
	fx.userRec = &recorder{address: fx.user}
	fx.rt.Register(fx.userRec)
	fx.rt.Mint(fx.user, uint256.NewInt(100_000_000))

	fx.nativeVault = fx.createVault(NativeAsset())
	fx.custodyA = &recorder{address: common.HexToAddress("0xca01")}
	fx.rt.Register(fx.custodyA)
	fx.vaultA = fx.createVault(fx.tokA)
	fx.activateVault(fx.tokA, fx.custodyA.address)

	pool := fx.createPool(1_000_000, 1_000_000)
	fx.send(fx.user, fx.nativeVault, 10_000,
		SwapRequest{Steps: &SwapStep{Pool: pool.Address()}}.Marshal())

	// Leave a half-filled escrow pending across the restart.
	req := DepositRequest{Params: DepositParams{PoolKey: fx.poolKey()}}
	fx.send(fx.user, fx.nativeVault, 300_000, req.Marshal(OpDepositLiquidity))
	escrowAddr := fx.factory.DepositoryAddress(fx.user, fx.poolKey())
	require.NotNil(t, fx.rt.ActorAt(escrowAddr))

	// Restart: same store, empty actor set.
	rt2 := NewRuntime(logger, store, nil)

	restored, err := rt2.RestoreActor(KindFactory, fx.factory.Address())
	require.NoError(t, err)
	f2 := restored.(*Factory)
	require.Equal(t, fx.admin, f2.Admin())

	restored, err = rt2.RestoreActor(KindVault, fx.vaultA)
	require.NoError(t, err)
	v2 := restored.(*Vault)
	require.True(t, v2.IsActive())
	require.Equal(t, fx.custodyA.address, v2.Custody())

	restored, err = rt2.RestoreActor(KindPoolProduct, pool.Address())
	require.NoError(t, err)
	p2 := restored.(*Pool)
	require.Equal(t, pool.TotalSupply(), p2.TotalSupply())
	r0, r1 := pool.Reserves()
	g0, g1 := p2.Reserves()
	require.Equal(t, r0, g0)
	require.Equal(t, r1, g1)
	require.Equal(t, pool.LPBalanceOf(fx.user), p2.LPBalanceOf(fx.user))
	proto0, _ := p2.ProtocolFees()
	require.Equal(t, int64(10), proto0.Int64())

	restored, err = rt2.RestoreActor(KindDepository, escrowAddr)
	require.NoError(t, err)
	e2 := restored.(*Escrow)
	require.Equal(t, fx.user, e2.Owner())
	held0, held1 := e2.Pending()
	require.Equal(t, int64(300_000), held0.Int64())
	require.Nil(t, held1)

	// A vanished actor restores to nothing, not an error.
	missing, err := rt2.RestoreActor(KindPoolProduct, common.HexToAddress("0xdead"))
	require.NoError(t, err)
	require.Nil(t, missing)
}
