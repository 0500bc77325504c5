// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

type rejectingActor struct {
	address common.Address
}

func (a *rejectingActor) Address() common.Address { return a.address }

func (a *rejectingActor) Receive(*MsgContext, *Envelope) error {
	return errors.New("always refuses")
}

func TestRuntimeBounceReturnsValue(t *testing.T) {
	rt := newTestRuntime(t)
	sender := common.HexToAddress("0x01")
	target := common.HexToAddress("0x02")
	rt.Register(&rejectingActor{address: target})
	rt.Mint(sender, uint256.NewInt(1_000))

	err := rt.Send(&Envelope{
		From:    sender,
		To:      target,
		Value:   uint256.NewInt(400),
		Message: Message{Op: 0x99},
	})
	require.NoError(t, err)
	rt.Run()

	// The rejection bounced the value back; the terminal bounce leaves
	// it with the original sender.
	require.Equal(t, uint64(1_000), rt.Balance(sender).Uint64())
	require.Zero(t, rt.Balance(target).Uint64())
}

func TestRuntimeSendRequiresBalance(t *testing.T) {
	rt := newTestRuntime(t)
	poor := common.HexToAddress("0x01")
	err := rt.Send(&Envelope{
		From:  poor,
		To:    common.HexToAddress("0x02"),
		Value: uint256.NewInt(1),
	})
	require.Error(t, err)
}

func TestRuntimeFIFOOrder(t *testing.T) {
	rt := newTestRuntime(t)
	sink := &recorder{address: common.HexToAddress("0x02")}
	rt.Register(sink)
	from := common.HexToAddress("0x01")

	for op := uint32(1); op <= 5; op++ {
		require.NoError(t, rt.Send(&Envelope{From: from, To: sink.address, Message: Message{Op: op}}))
	}
	require.Equal(t, 5, rt.Run())
	require.Len(t, sink.msgs, 5)
	for i, env := range sink.msgs {
		require.Equal(t, uint32(i+1), env.Message.Op)
	}
}

func TestRuntimeDeployVerifiesAddress(t *testing.T) {
	rt := newTestRuntime(t)
	factory := common.HexToAddress("0xfa")
	initData := vaultInitData(factory, NativeAsset())
	addr := DeriveAddress(rt.Templates().Hash(KindVault), initData)

	// Claiming someone else's address with mismatched init data fails.
	wrong := &Envelope{
		From:    factory,
		To:      common.HexToAddress("0xbad"),
		Message: Message{Op: OpCreateVault},
		Init:    &StateInit{Kind: KindVault, Data: initData},
	}
	require.NoError(t, rt.Send(wrong))
	rt.Run()
	require.Nil(t, rt.ActorAt(common.HexToAddress("0xbad")))

	// The derived address deploys.
	right := &Envelope{
		From:    factory,
		To:      addr,
		Message: Message{Op: OpCreateVault},
		Init:    &StateInit{Kind: KindVault, Data: initData},
	}
	require.NoError(t, rt.Send(right))
	rt.Run()
	require.NotNil(t, rt.ActorAt(addr))
}

func TestRuntimePassiveSettlement(t *testing.T) {
	rt := newTestRuntime(t)
	from := common.HexToAddress("0x01")
	passive := common.HexToAddress("0x02")
	rt.Mint(from, uint256.NewInt(100))

	// A plain transfer to an account with no actor just settles.
	require.NoError(t, rt.Send(&Envelope{From: from, To: passive, Value: uint256.NewInt(100)}))
	rt.Run()
	require.Equal(t, uint64(100), rt.Balance(passive).Uint64())
}

type countingActor struct {
	address common.Address
	count   atomic.Int32
}

func (a *countingActor) Address() common.Address { return a.address }

func (a *countingActor) Receive(*MsgContext, *Envelope) error {
	a.count.Add(1)
	return nil
}

func TestRuntimeServe(t *testing.T) {
	rt := newTestRuntime(t)
	sink := &countingActor{address: common.HexToAddress("0x02")}
	rt.Register(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Serve(ctx)
		close(done)
	}()

	require.NoError(t, rt.Send(&Envelope{
		From:    common.HexToAddress("0x01"),
		To:      sink.address,
		Message: Message{Op: 0x01},
	}))
	require.Eventually(t, func() bool { return sink.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not stop on cancel")
	}
}

func TestRuntimeServeConcurrent(t *testing.T) {
	rt := newTestRuntime(t)
	sinks := []*countingActor{
		{address: common.HexToAddress("0x02")},
		{address: common.HexToAddress("0x03")},
		{address: common.HexToAddress("0x04")},
	}
	for _, s := range sinks {
		rt.Register(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.ServeConcurrent(ctx)
		close(done)
	}()

	const perActor = 10
	for i := 0; i < perActor; i++ {
		for _, s := range sinks {
			require.NoError(t, rt.Send(&Envelope{
				From:    common.HexToAddress("0x01"),
				To:      s.address,
				Message: Message{Op: 0x01},
			}))
		}
	}
	require.Eventually(t, func() bool {
		for _, s := range sinks {
			if s.count.Load() != perActor {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not stop on cancel")
	}
}
