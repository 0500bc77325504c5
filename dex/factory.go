// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// Factory is the root registry actor. It never stores an address table:
// every vault, pool, and escrow address is derived on demand from its
// logical key, so the queries below are pure functions. The factory
// holds the two capabilities of the protocol, the admin (rotation, code
// upgrade, fee and activity updates) and the withdrawer (fee
// collection).
type Factory struct {
	rt   *Runtime
	addr common.Address

	admin      common.Address
	withdrawer common.Address
}

func factoryInitData(admin common.Address) []byte {
	return admin.Bytes()
}

// NewFactory deploys a factory for the given initial admin and registers
// it with the runtime. The withdrawer starts as the admin.
func NewFactory(rt *Runtime, admin common.Address) *Factory {
	f := &Factory{
		rt:         rt,
		addr:       DeriveAddress(rt.Templates().Hash(KindFactory), factoryInitData(admin)),
		admin:      admin,
		withdrawer: admin,
	}
	rt.Register(f)
	return f
}

// Address implements Actor.
func (f *Factory) Address() common.Address { return f.addr }

// Admin returns the current admin capability holder.
func (f *Factory) Admin() common.Address { return f.admin }

// Withdrawer returns the current withdrawer capability holder.
func (f *Factory) Withdrawer() common.Address { return f.withdrawer }

// VaultAddress derives the vault address for an asset.
func (f *Factory) VaultAddress(asset Asset) common.Address {
	return DeriveAddress(f.rt.Templates().Hash(KindVault), vaultInitData(f.addr, asset))
}

// PoolAddress derives the pool address for a key; (A,B) and (B,A) yield
// the same address.
func (f *Factory) PoolAddress(key PoolKey) common.Address {
	key = key.Normalized()
	return DeriveAddress(f.rt.Templates().Hash(poolKindFor(key.Kind)), poolInitData(f.addr, key))
}

// DepositoryAddress derives the liquidity-depository escrow address for
// an owner and pool key.
func (f *Factory) DepositoryAddress(owner common.Address, key PoolKey) common.Address {
	return DeriveAddress(f.rt.Templates().Hash(KindDepository), escrowInitData(f.addr, owner, key.Normalized()))
}

// PoolCreatorAddress derives the pool-creator escrow address for an
// owner and pool key.
func (f *Factory) PoolCreatorAddress(owner common.Address, key PoolKey) common.Address {
	return DeriveAddress(f.rt.Templates().Hash(KindPoolCreator), escrowInitData(f.addr, owner, key.Normalized()))
}

// Receive implements Actor.
func (f *Factory) Receive(ctx *MsgContext, env *Envelope) error {
	if env.Bounced {
		ctx.Log().Error("factory: bounce received", "op", fmt.Sprintf("%#x", env.Message.Op))
		return nil
	}
	switch env.Message.Op {
	case 0:
		return nil
	case OpCreateVault:
		return f.handleCreateVault(ctx, env)
	case OpActivateVault:
		return f.handleActivateVault(ctx, env)
	case OpUpdateAdmin:
		return f.handleRotate(ctx, env, &f.admin)
	case OpUpdateWithdrawer:
		return f.handleRotate(ctx, env, &f.withdrawer)
	case OpUpdateCodeTemplates:
		return f.handleUpdateCode(ctx, env)
	case OpUpdatePool:
		return f.handleUpdatePool(ctx, env)
	case OpFactoryWithdraw:
		return f.handleWithdraw(ctx, env)
	}
	return fmt.Errorf("factory: unexpected op %#x", env.Message.Op)
}

// handleCreateVault deploys the vault for an asset. Permissionless:
// the address is fully determined by the asset, so the worst a stranger
// can do is pay for a vault someone else wanted anyway.
func (f *Factory) handleCreateVault(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalCreateVaultRequest(env.Message.Body)
	if err != nil {
		return err
	}
	addr := f.VaultAddress(m.Asset)
	if f.rt.ActorAt(addr) != nil {
		return fmt.Errorf("%w: %s", ErrVaultExists, m.Asset)
	}
	initData := vaultInitData(f.addr, m.Asset)
	ctx.SendInit(addr, nil, Message{Op: OpCreateVault}, &StateInit{Kind: KindVault, Data: initData})
	ctx.Log().Info("vault created", "asset", m.Asset.String(), "addr", addr.Hex())
	return nil
}

// handleActivateVault relays the custody confirmation to the vault.
func (f *Factory) handleActivateVault(ctx *MsgContext, env *Envelope) error {
	if env.From != f.admin {
		return ErrUnauthorized
	}
	m, err := UnmarshalActivateVaultRequest(env.Message.Body)
	if err != nil {
		return err
	}
	ctx.Send(f.VaultAddress(m.Asset), nil, env.Message)
	ctx.Log().Info("vault activation relayed", "asset", m.Asset.String(), "custody", m.Custody.Hex())
	return nil
}

func (f *Factory) handleRotate(ctx *MsgContext, env *Envelope, slot *common.Address) error {
	if env.From != f.admin {
		return ErrUnauthorized
	}
	m, err := UnmarshalUpdateAddressRequest(env.Message.Body)
	if err != nil {
		return err
	}
	*slot = m.Target
	ctx.Log().Info("capability rotated",
		"op", fmt.Sprintf("%#x", env.Message.Op),
		"target", m.Target.Hex())
	return nil
}

// handleUpdateCode replaces one kind's code template hash. Addresses of
// already-deployed actors are unaffected; future derivations change.
func (f *Factory) handleUpdateCode(ctx *MsgContext, env *Envelope) error {
	if env.From != f.admin {
		return ErrUnauthorized
	}
	m, err := UnmarshalUpdateCodeRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if err := f.rt.Templates().Set(m.Kind, m.Code); err != nil {
		return err
	}
	ctx.Log().Info("code template updated", "kind", m.Kind.String(), "hash", m.Code.Hex())
	return nil
}

// handleUpdatePool validates and relays a fee or activity change.
func (f *Factory) handleUpdatePool(ctx *MsgContext, env *Envelope) error {
	if env.From != f.admin {
		return ErrUnauthorized
	}
	m, err := UnmarshalUpdatePoolRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if !m.SetFees && !m.SetActive {
		return fmt.Errorf("update carries no change")
	}
	if m.SetFees && uint64(m.LPFee)+uint64(m.ProtocolFee)+uint64(f.rt.Config().ReferralFee) > MaxTradeFee {
		return ErrInvalidFee
	}
	key := m.PoolKey.Normalized()
	if key.Kind == CurveFiStable && key.Settings == nil {
		return ErrUnsupportedAmm
	}
	ctx.Send(f.PoolAddress(key), nil, env.Message)
	return nil
}

// handleWithdraw relays a withdrawer-signed fee withdrawal to the pool
// that accrued the fees. The pool bounds the amount by its side-account
// balance and orders the vault payout itself.
func (f *Factory) handleWithdraw(ctx *MsgContext, env *Envelope) error {
	if env.From != f.withdrawer {
		return ErrUnauthorized
	}
	m, err := UnmarshalWithdrawFeesRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if m.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	key := m.PoolKey.Normalized()
	if key.Kind == CurveFiStable && key.Settings == nil {
		return ErrUnsupportedAmm
	}
	ctx.Send(f.PoolAddress(key), nil, env.Message)
	ctx.Log().Info("fee withdrawal requested",
		"asset", m.Asset.String(),
		"amount", m.Amount.String(),
		"to", m.To.Hex())
	return nil
}

// snapshot implements snapshotter.
func (f *Factory) snapshot() []byte {
	w := &msgWriter{}
	w.addr(f.admin)
	w.addr(f.withdrawer)
	return w.buf
}

// RestoreFactory rebuilds a factory actor from a persisted record.
func RestoreFactory(rt *Runtime, addr common.Address, data []byte) (*Factory, error) {
	r := &msgReader{buf: data}
	f := &Factory{rt: rt, addr: addr}
	f.admin = r.addr()
	f.withdrawer = r.addr()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return f, nil
}
