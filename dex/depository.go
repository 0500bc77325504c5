// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Escrow is the two-sided deposit coordinator behind both the
// LiquidityDepository and the PoolCreator. Its address is a pure
// function of (owner, poolKey), so the two sides find each other with
// no registry: whichever vault's message arrives first deploys the
// escrow, the second consumes it. The escrow's existence is the lock
// for the operation; it never survives a full match or refund cycle.
type Escrow struct {
	rt      *Runtime
	addr    common.Address
	factory common.Address
	owner   common.Address
	key     PoolKey

	bootstrap bool
	firstSide int8 // side whose params govern the combined deposit
	sides     [2]*escrowSide
}

type escrowSide struct {
	amount *big.Int
	params DepositParams
}

func newEscrowFromInit(rt *Runtime, addr common.Address, initData []byte, bootstrap bool) (Actor, error) {
	if len(initData) < 2*common.AddressLength {
		return nil, fmt.Errorf("escrow init data too short")
	}
	factory := common.BytesToAddress(initData[:common.AddressLength])
	owner := common.BytesToAddress(initData[common.AddressLength : 2*common.AddressLength])
	key, err := PoolKeyFromBytes(initData[2*common.AddressLength:])
	if err != nil {
		return nil, err
	}
	return &Escrow{
		rt:        rt,
		addr:      addr,
		factory:   factory,
		owner:     owner,
		key:       key.Normalized(),
		bootstrap: bootstrap,
		firstSide: -1,
	}, nil
}

func newDepositoryFromInit(rt *Runtime, addr common.Address, initData []byte) (Actor, error) {
	return newEscrowFromInit(rt, addr, initData, false)
}

func newPoolCreatorFromInit(rt *Runtime, addr common.Address, initData []byte) (Actor, error) {
	return newEscrowFromInit(rt, addr, initData, true)
}

// Address implements Actor.
func (e *Escrow) Address() common.Address { return e.addr }

// Owner returns the depositor the escrow refunds to.
func (e *Escrow) Owner() common.Address { return e.owner }

// Pending returns the held amount per side; nil for an empty side.
func (e *Escrow) Pending() (a0, a1 *big.Int) {
	if e.sides[0] != nil {
		a0 = new(big.Int).Set(e.sides[0].amount)
	}
	if e.sides[1] != nil {
		a1 = new(big.Int).Set(e.sides[1].amount)
	}
	return a0, a1
}

func (e *Escrow) kind() ContractKind {
	if e.bootstrap {
		return KindPoolCreator
	}
	return KindDepository
}

func (e *Escrow) assetOf(side int) Asset {
	if side == 0 {
		return e.key.Asset0
	}
	return e.key.Asset1
}

func (e *Escrow) vaultFor(asset Asset) common.Address {
	return DeriveAddress(e.rt.Templates().Hash(KindVault), vaultInitData(e.factory, asset))
}

// payout refunds through an asset's vault, proving escrow identity with
// the init data the vault can re-derive.
func (e *Escrow) payout(ctx *MsgContext, asset Asset, amount *big.Int, payload []byte) {
	cmd := PayoutCommand{
		To:        e.owner,
		Amount:    amount,
		OK:        false,
		Payload:   payload,
		ProofKind: e.kind(),
		Proof:     escrowInitData(e.factory, e.owner, e.key),
	}
	ctx.Send(e.vaultFor(asset), nil, cmd.Marshal())
}

// Receive implements Actor.
func (e *Escrow) Receive(ctx *MsgContext, env *Envelope) error {
	if env.Bounced {
		ctx.Log().Error("escrow: unhandled bounce", "op", fmt.Sprintf("%#x", env.Message.Op))
		return nil
	}
	switch env.Message.Op {
	case OpEscrowDeposit:
		return e.handleDeposit(ctx, env)
	case OpWithdrawFunds:
		return e.handleWithdrawFunds(ctx, env)
	}
	return fmt.Errorf("escrow: unexpected op %#x", env.Message.Op)
}

// handleDeposit records one side; the second arrival forwards the
// combined deposit and dissolves the escrow. A second message for an
// already-filled side is refunded immediately rather than overwriting
// or stacking.
func (e *Escrow) handleDeposit(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalEscrowDeposit(env.Message.Body)
	if err != nil {
		return err
	}
	if env.From != e.vaultFor(m.Asset) {
		return fmt.Errorf("%w: deposit from %s", ErrUnauthorized, env.From.Hex())
	}
	if m.Owner != e.owner {
		return ErrUnauthorized
	}
	var side int
	switch m.Asset {
	case e.key.Asset0:
		side = 0
	case e.key.Asset1:
		side = 1
	default:
		return fmt.Errorf("%w: %s not in pool key", ErrUnsupportedAsset, m.Asset)
	}
	if m.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if e.sides[side] != nil {
		ctx.Log().Debug("escrow: duplicate side refunded",
			"owner", e.owner.Hex(), "asset", m.Asset.String())
		e.payout(ctx, m.Asset, m.Amount, m.Params.RejectPayload)
		return nil
	}
	e.sides[side] = &escrowSide{amount: m.Amount, params: m.Params}
	if e.firstSide < 0 {
		e.firstSide = int8(side)
	}
	if e.sides[0] == nil || e.sides[1] == nil {
		return nil
	}
	e.forward(ctx)
	return nil
}

// forward sends the matched deposit to the pool, deploying the pool on
// the way if it does not exist yet, then self-destructs.
func (e *Escrow) forward(ctx *MsgContext) {
	combined := DepositInternal{
		Owner:     e.owner,
		Amount0:   e.sides[0].amount,
		Amount1:   e.sides[1].amount,
		Bootstrap: e.bootstrap,
		Params:    e.sides[int(e.firstSide)].params,
	}
	poolInit := poolInitData(e.factory, e.key)
	pool := DeriveAddress(e.rt.Templates().Hash(poolKindFor(e.key.Kind)), poolInit)
	ctx.SendInit(pool, nil, combined.Marshal(), &StateInit{
		Kind: poolKindFor(e.key.Kind),
		Data: poolInit,
	})
	ctx.Destroy(e.owner)
}

// handleWithdrawFunds reclaims a still-pending escrow for its owner.
func (e *Escrow) handleWithdrawFunds(ctx *MsgContext, env *Envelope) error {
	if env.From != e.owner {
		return ErrUnauthorized
	}
	for side, held := range e.sides {
		if held == nil {
			continue
		}
		e.payout(ctx, e.assetOf(side), held.amount, held.params.RejectPayload)
	}
	ctx.Destroy(e.owner)
	return nil
}

// snapshot implements snapshotter.
func (e *Escrow) snapshot() []byte {
	w := &msgWriter{}
	w.addr(e.factory)
	w.addr(e.owner)
	w.bytes(e.key.ToBytes())
	w.bool(e.bootstrap)
	w.u8(uint8(e.firstSide + 1))
	for _, held := range e.sides {
		if held == nil {
			w.bool(false)
			continue
		}
		w.bool(true)
		w.bigInt(held.amount)
		held.params.encode(w)
	}
	return w.buf
}

// RestoreEscrow rebuilds an escrow actor from a persisted record.
func RestoreEscrow(rt *Runtime, addr common.Address, data []byte) (*Escrow, error) {
	r := &msgReader{buf: data}
	e := &Escrow{rt: rt, addr: addr}
	e.factory = r.addr()
	e.owner = r.addr()
	keyBytes := r.bytes()
	if r.err == nil {
		key, err := PoolKeyFromBytes(keyBytes)
		if err != nil {
			return nil, err
		}
		e.key = key
	}
	e.bootstrap = r.bool()
	e.firstSide = int8(r.u8()) - 1
	for side := range e.sides {
		if !r.bool() {
			continue
		}
		e.sides[side] = &escrowSide{amount: r.bigInt(), params: decodeDepositParams(r)}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return e, nil
}
