// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Vault custodies one asset for the whole protocol and is that asset's
// only entry and exit point. The native vault holds value directly on
// the ledger; token and external-currency vaults command an external
// custody account and only do the bookkeeping.
//
// A non-native vault starts inactive and refuses instructions until the
// factory confirms its custody account.
type Vault struct {
	rt      *Runtime
	addr    common.Address
	factory common.Address
	asset   Asset
	active  bool
	custody common.Address
}

func newVaultFromInit(rt *Runtime, addr common.Address, initData []byte) (Actor, error) {
	if len(initData) != common.AddressLength+assetEncodedLen {
		return nil, fmt.Errorf("vault init data length %d", len(initData))
	}
	factory := common.BytesToAddress(initData[:common.AddressLength])
	asset, err := AssetFromBytes(initData[common.AddressLength:])
	if err != nil {
		return nil, err
	}
	return &Vault{
		rt:      rt,
		addr:    addr,
		factory: factory,
		asset:   asset,
		active:  asset.IsNative(),
	}, nil
}

// Address implements Actor.
func (v *Vault) Address() common.Address { return v.addr }

// Asset returns the asset this vault custodies.
func (v *Vault) Asset() Asset { return v.asset }

// IsActive reports whether the vault accepts instructions.
func (v *Vault) IsActive() bool { return v.active }

// Custody returns the external custody account, zero for native.
func (v *Vault) Custody() common.Address { return v.custody }

// Receive implements Actor.
func (v *Vault) Receive(ctx *MsgContext, env *Envelope) error {
	if env.Bounced {
		return v.receiveBounce(ctx, env)
	}
	switch env.Message.Op {
	case 0:
		// Value-only deposit into native custody.
		return nil
	case OpCreateVault:
		if env.From != v.factory {
			return ErrUnauthorized
		}
		return nil
	case OpActivateVault:
		return v.handleActivate(env)
	case OpTokenNotify:
		return v.handleTokenNotify(ctx, env)
	case OpPayout:
		return v.handlePayout(ctx, env)
	case OpSwap, OpCreatePool, OpDepositLiquidity:
		// Direct instructions carry the deposit as attached native
		// value, so they are only meaningful on the native vault.
		if !v.asset.IsNative() {
			return fmt.Errorf("%w: value-carrying op on %s vault", ErrUnsupportedAsset, v.asset)
		}
		amount := env.Value.ToBig()
		return v.dispatch(ctx, env.From, amount, env.Message)
	}
	return fmt.Errorf("vault: unexpected op %#x", env.Message.Op)
}

// handleActivate records the custody account confirmed by the factory.
func (v *Vault) handleActivate(env *Envelope) error {
	if env.From != v.factory {
		return ErrUnauthorized
	}
	m, err := UnmarshalActivateVaultRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if m.Asset != v.asset {
		return ErrUnsupportedAsset
	}
	v.custody = m.Custody
	v.active = true
	return nil
}

// handleTokenNotify is the inbound path for non-native assets: the
// custody account reports a received transfer together with the user's
// forwarded instruction. A bad instruction sends the tokens straight
// back.
func (v *Vault) handleTokenNotify(ctx *MsgContext, env *Envelope) error {
	if !v.active || env.From != v.custody {
		return ErrVaultInactive
	}
	tn, err := UnmarshalTokenNotify(env.Message.Body)
	if err != nil {
		return err
	}
	if tn.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	instruction, err := DecodeMessage(tn.Forward)
	if err != nil {
		v.refundTokens(ctx, tn.Sender, tn.Amount, nil)
		return nil
	}
	if err := v.dispatch(ctx, tn.Sender, tn.Amount, instruction); err != nil {
		ctx.Log().Debug("vault: instruction refused", "asset", v.asset.String(), "err", err)
		v.refundTokens(ctx, tn.Sender, tn.Amount, nil)
	}
	return nil
}

// dispatch routes a received deposit plus its instruction to the
// factory-derived target. Errors here bounce (native) or refund (token)
// the full amount to the user.
func (v *Vault) dispatch(ctx *MsgContext, user common.Address, amount *big.Int, msg Message) error {
	if !v.active {
		return ErrVaultInactive
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	switch msg.Op {
	case OpSwap:
		m, err := UnmarshalSwapRequest(msg.Body)
		if err != nil {
			return err
		}
		if m.Steps == nil {
			return ErrUnknownRouteTarget
		}
		first := m.Steps
		fwd := SwapInternal{
			Asset:  v.asset,
			Amount: amount,
			Sender: user,
			MinOut: first.MinOut,
			Steps:  first.Next,
			Params: m.Params,
		}
		ctx.Send(first.Pool, nil, fwd.Marshal())
		return nil

	case OpCreatePool:
		return v.forwardEscrow(ctx, user, amount, msg, KindPoolCreator)
	case OpDepositLiquidity:
		return v.forwardEscrow(ctx, user, amount, msg, KindDepository)
	}
	return fmt.Errorf("vault: unexpected instruction %#x", msg.Op)
}

// forwardEscrow sends one side of a two-sided deposit to its escrow,
// deploying the escrow if this side arrives first.
func (v *Vault) forwardEscrow(ctx *MsgContext, user common.Address, amount *big.Int, msg Message, kind ContractKind) error {
	m, err := UnmarshalDepositRequest(msg.Body)
	if err != nil {
		return err
	}
	key := m.Params.PoolKey.Normalized()
	if v.asset != key.Asset0 && v.asset != key.Asset1 {
		return fmt.Errorf("%w: %s not in pool key", ErrUnsupportedAsset, v.asset)
	}
	if key.Kind == CurveFiStable && key.Settings == nil {
		return ErrUnsupportedAmm
	}
	m.Params.PoolKey = key

	initData := escrowInitData(v.factory, user, key)
	escrow := DeriveAddress(v.rt.Templates().Hash(kind), initData)
	side := EscrowDeposit{Owner: user, Asset: v.asset, Amount: amount, Params: m.Params}
	ctx.SendInit(escrow, nil, side.Marshal(), &StateInit{Kind: kind, Data: initData})
	return nil
}

// handlePayout releases custody on the order of a factory-derived pool
// or escrow, verified through its init data. No other sender, the
// factory included, can move custody out.
func (v *Vault) handlePayout(ctx *MsgContext, env *Envelope) error {
	cmd, err := UnmarshalPayoutCommand(env.Message.Body)
	if err != nil {
		return err
	}
	if !v.authorizedPayout(env.From, cmd) {
		return fmt.Errorf("%w: payout from %s", ErrUnauthorized, env.From.Hex())
	}
	if cmd.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if v.asset.IsNative() {
		value, overflow := uint256.FromBig(cmd.Amount)
		if overflow {
			return ErrInvalidAmount
		}
		msg := Message{}
		if len(cmd.Payload) > 0 || !cmd.OK {
			msg = Notification{OK: cmd.OK, Payload: cmd.Payload}.Marshal()
		}
		ctx.Send(cmd.To, value, msg)
		return nil
	}
	v.refundTokens(ctx, cmd.To, cmd.Amount, cmd.Payload)
	return nil
}

// authorizedPayout checks the command's proof: it must be the init data
// of a pool or escrow of this vault's factory, and must derive the
// sending address under the current code templates.
func (v *Vault) authorizedPayout(from common.Address, cmd PayoutCommand) bool {
	switch cmd.ProofKind {
	case KindPoolProduct, KindPoolStable, KindDepository, KindPoolCreator:
	default:
		return false
	}
	if len(cmd.Proof) < common.AddressLength {
		return false
	}
	if common.BytesToAddress(cmd.Proof[:common.AddressLength]) != v.factory {
		return false
	}
	return DeriveAddress(v.rt.Templates().Hash(cmd.ProofKind), cmd.Proof) == from
}

// refundTokens commands the custody account to move tokens out.
func (v *Vault) refundTokens(ctx *MsgContext, to common.Address, amount *big.Int, payload []byte) {
	xfer := TokenTransfer{To: to, Amount: amount, Payload: payload}
	ctx.Send(v.custody, nil, xfer.Marshal())
}

// receiveBounce refunds the user when a forwarded instruction could not
// be delivered, e.g. a swap route starting at an address with no pool.
func (v *Vault) receiveBounce(ctx *MsgContext, env *Envelope) error {
	switch env.Message.Op {
	case OpSwapInternal:
		m, err := UnmarshalSwapInternal(env.Message.Body)
		if err != nil {
			return err
		}
		to := m.Params.Recipient
		if to == ZeroAddress {
			to = m.Sender
		}
		v.refund(ctx, to, m.Amount, m.Params.RejectPayload)
		return nil
	case OpEscrowDeposit:
		m, err := UnmarshalEscrowDeposit(env.Message.Body)
		if err != nil {
			return err
		}
		v.refund(ctx, m.Owner, m.Amount, m.Params.RejectPayload)
		return nil
	}
	ctx.Log().Error("vault: unhandled bounce", "op", fmt.Sprintf("%#x", env.Message.Op))
	return nil
}

// refund pays back through whichever custody this vault runs.
func (v *Vault) refund(ctx *MsgContext, to common.Address, amount *big.Int, payload []byte) {
	if amount.Sign() <= 0 {
		return
	}
	if v.asset.IsNative() {
		value, overflow := uint256.FromBig(amount)
		if overflow {
			return
		}
		ctx.Send(to, value, Notification{OK: false, Payload: payload}.Marshal())
		return
	}
	v.refundTokens(ctx, to, amount, payload)
}

// snapshot implements snapshotter.
func (v *Vault) snapshot() []byte {
	w := &msgWriter{}
	w.addr(v.factory)
	w.buf = append(w.buf, v.asset.ToBytes()...)
	w.bool(v.active)
	w.addr(v.custody)
	return w.buf
}

// RestoreVault rebuilds a vault actor from a persisted state record.
func RestoreVault(rt *Runtime, addr common.Address, data []byte) (*Vault, error) {
	r := &msgReader{buf: data}
	v := &Vault{rt: rt, addr: addr}
	v.factory = r.addr()
	v.asset = r.asset()
	v.active = r.bool()
	v.custody = r.addr()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return v, nil
}
