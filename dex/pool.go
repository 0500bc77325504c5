// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/luxfi/geth/common"
)

// Pool is the AMM actor for one asset pair. It holds both reserves, the
// LP supply and balances, and the fee side-accounts. The trading curve
// is fixed at creation through the pool key; lifecycle, fee splitting,
// and routing are shared between the two curves.
//
// A pool never bounces a message that carries deposited or swapped
// value: every rejection is an explicit refund through the asset's
// vault, so nothing is left escrowed on failure.
type Pool struct {
	rt      *Runtime
	addr    common.Address
	factory common.Address
	key     PoolKey

	active      bool
	lpFee       uint16
	protocolFee uint16

	reserve0 *big.Int
	reserve1 *big.Int
	supply   *big.Int

	lpBalances   map[common.Address]*big.Int
	protocolFees [2]*big.Int
	referralFees map[common.Address]*[2]*big.Int
}

func newPoolFromInit(rt *Runtime, addr common.Address, initData []byte) (Actor, error) {
	if len(initData) < common.AddressLength {
		return nil, fmt.Errorf("pool init data too short")
	}
	factory := common.BytesToAddress(initData[:common.AddressLength])
	key, err := PoolKeyFromBytes(initData[common.AddressLength:])
	if err != nil {
		return nil, err
	}
	if key.Asset0 == key.Asset1 {
		return nil, ErrSameAsset
	}
	if key.Kind == CurveFiStable && key.Settings == nil {
		return nil, fmt.Errorf("%w: stable pool without settings", ErrUnsupportedAmm)
	}
	cfg := rt.Config()
	return &Pool{
		rt:           rt,
		addr:         addr,
		factory:      factory,
		key:          key.Normalized(),
		active:       true,
		lpFee:        cfg.DefaultLPFee,
		protocolFee:  cfg.DefaultProtocolFee,
		reserve0:     new(big.Int),
		reserve1:     new(big.Int),
		supply:       new(big.Int),
		lpBalances:   make(map[common.Address]*big.Int),
		protocolFees: [2]*big.Int{new(big.Int), new(big.Int)},
		referralFees: make(map[common.Address]*[2]*big.Int),
	}, nil
}

// Address implements Actor.
func (p *Pool) Address() common.Address { return p.addr }

// Key returns the normalized pool key.
func (p *Pool) Key() PoolKey { return p.key }

// IsActive reports whether the pool accepts swaps and deposits.
func (p *Pool) IsActive() bool { return p.active }

// Reserves returns copies of both reserves in canonical asset order.
func (p *Pool) Reserves() (*big.Int, *big.Int) {
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1)
}

// TotalSupply returns the LP token supply, locked dust included.
func (p *Pool) TotalSupply() *big.Int { return new(big.Int).Set(p.supply) }

// TradeFees returns the LP and protocol fee rates in basis points.
func (p *Pool) TradeFees() (lpFee, protocolFee uint16) { return p.lpFee, p.protocolFee }

// LPBalanceOf returns an address's LP token balance.
func (p *Pool) LPBalanceOf(addr common.Address) *big.Int {
	if b, ok := p.lpBalances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// ProtocolFees returns the accrued protocol fee per side.
func (p *Pool) ProtocolFees() (*big.Int, *big.Int) {
	return new(big.Int).Set(p.protocolFees[0]), new(big.Int).Set(p.protocolFees[1])
}

// ReferralFees returns the fees accrued for a referral address per side.
func (p *Pool) ReferralFees(ref common.Address) (*big.Int, *big.Int) {
	if acc, ok := p.referralFees[ref]; ok {
		return new(big.Int).Set(acc[0]), new(big.Int).Set(acc[1])
	}
	return new(big.Int), new(big.Int)
}

// sideOf maps an asset to its canonical side, 0 or 1.
func (p *Pool) sideOf(asset Asset) (int, error) {
	switch asset {
	case p.key.Asset0:
		return 0, nil
	case p.key.Asset1:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %s not traded by pool", ErrUnknownRouteTarget, asset)
}

func (p *Pool) assetOf(side int) Asset {
	if side == 0 {
		return p.key.Asset0
	}
	return p.key.Asset1
}

func (p *Pool) reserveOf(side int) *big.Int {
	if side == 0 {
		return p.reserve0
	}
	return p.reserve1
}

func (p *Pool) vaultFor(asset Asset) common.Address {
	return DeriveAddress(p.rt.Templates().Hash(KindVault), vaultInitData(p.factory, asset))
}

// payout instructs an asset's vault to release funds, proving the
// command comes from this pool via its own init data.
func (p *Pool) payout(ctx *MsgContext, asset Asset, to common.Address, amount *big.Int, ok bool, payload []byte) {
	if amount.Sign() <= 0 {
		return
	}
	cmd := PayoutCommand{
		To:        to,
		Amount:    amount,
		OK:        ok,
		Payload:   payload,
		ProofKind: poolKindFor(p.key.Kind),
		Proof:     poolInitData(p.factory, p.key),
	}
	ctx.Send(p.vaultFor(asset), nil, cmd.Marshal())
}

// Receive implements Actor.
func (p *Pool) Receive(ctx *MsgContext, env *Envelope) error {
	if env.Bounced {
		return p.receiveBounce(ctx, env)
	}
	switch env.Message.Op {
	case OpSwapInternal:
		return p.handleSwap(ctx, env)
	case OpDepositInternal:
		return p.handleDeposit(ctx, env)
	case OpWithdraw:
		return p.handleWithdraw(ctx, env)
	case OpUpdatePool:
		return p.handleUpdate(ctx, env)
	case OpFactoryWithdraw:
		return p.handleCollectFees(ctx, env)
	case OpClaimReferral:
		return p.handleClaimReferral(ctx, env)
	}
	return fmt.Errorf("pool: unexpected op %#x", env.Message.Op)
}

// receiveBounce handles a forwarded hop that could not be delivered:
// the output already left the reserves, so it is refunded to the swap's
// recipient on the asset this pool paid out.
func (p *Pool) receiveBounce(ctx *MsgContext, env *Envelope) error {
	if env.Message.Op != OpSwapInternal {
		ctx.Log().Error("pool: unhandled bounce", "op", fmt.Sprintf("%#x", env.Message.Op))
		return nil
	}
	m, err := UnmarshalSwapInternal(env.Message.Body)
	if err != nil {
		return err
	}
	to := m.Params.Recipient
	if to == ZeroAddress {
		to = m.Sender
	}
	p.payout(ctx, m.Asset, to, m.Amount, false, m.Params.RejectPayload)
	return nil
}

// handleSwap executes one hop of a swap route.
func (p *Pool) handleSwap(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalSwapInternal(env.Message.Body)
	if err != nil {
		return err
	}
	// The hop must arrive from the input asset's vault or from the
	// previous pool in the route; anything else bounces unprocessed.
	if env.From != p.vaultFor(m.Asset) {
		if _, isPool := p.rt.ActorAt(env.From).(*Pool); !isPool {
			return fmt.Errorf("%w: swap from %s", ErrUnauthorized, env.From.Hex())
		}
	}
	refundTo := m.Params.Recipient
	if refundTo == ZeroAddress {
		refundTo = m.Sender
	}
	refund := func(reason error) error {
		ctx.Log().Debug("swap hop refused", "pool", p.addr.Hex(), "reason", reason)
		p.payout(ctx, m.Asset, refundTo, m.Amount, false, m.Params.RejectPayload)
		return nil
	}

	inSide, err := p.sideOf(m.Asset)
	if err != nil {
		return refund(err)
	}
	if !p.active {
		return refund(ErrVaultInactive)
	}
	if p.supply.Sign() == 0 {
		return refund(ErrPoolNotInitialized)
	}
	if m.Params.Deadline != 0 && ctx.Now() > m.Params.Deadline {
		return refund(ErrDeadlineExceeded)
	}
	if m.Amount.Sign() <= 0 {
		return refund(ErrInvalidAmount)
	}

	outSide := 1 - inSide
	reserveIn := p.reserveOf(inSide)
	reserveOut := p.reserveOf(outSide)

	hasReferral := m.Params.Referral != ZeroAddress
	referralFee := uint16(0)
	if hasReferral {
		referralFee = p.rt.Config().ReferralFee
	}
	totalFee := p.lpFee + p.protocolFee + referralFee

	out, err := p.quoteOut(m.Amount, reserveIn, reserveOut, inSide, totalFee)
	if err != nil {
		return refund(err)
	}
	if out.Sign() <= 0 || out.Cmp(reserveOut) >= 0 {
		return refund(ErrInsufficientLiquidity)
	}
	if m.MinOut != nil && out.Cmp(m.MinOut) < 0 {
		return refund(ErrSlippage)
	}

	// LP fee stays in the reserve; protocol and referral portions are
	// carved out of the input into side-accounts.
	protoAmt := feePortion(m.Amount, p.protocolFee)
	refAmt := feePortion(m.Amount, referralFee)
	retained := new(big.Int).Sub(m.Amount, protoAmt)
	retained.Sub(retained, refAmt)

	reserveIn.Add(reserveIn, retained)
	reserveOut.Sub(reserveOut, out)
	p.protocolFees[inSide].Add(p.protocolFees[inSide], protoAmt)
	if hasReferral && refAmt.Sign() > 0 {
		acc, ok := p.referralFees[m.Params.Referral]
		if !ok {
			acc = &[2]*big.Int{new(big.Int), new(big.Int)}
			p.referralFees[m.Params.Referral] = acc
		}
		acc[inSide].Add(acc[inSide], refAmt)
	}

	outAsset := p.assetOf(outSide)
	if next := m.Steps; next != nil {
		fwd := SwapInternal{
			Asset:  outAsset,
			Amount: out,
			Sender: m.Sender,
			MinOut: next.MinOut,
			Steps:  next.Next,
			Params: m.Params,
		}
		ctx.Send(next.Pool, nil, fwd.Marshal())
		return nil
	}
	p.payout(ctx, outAsset, refundTo, out, true, m.Params.FulfillPayload)
	return nil
}

// quoteOut runs the pool's curve for one hop.
func (p *Pool) quoteOut(amountIn, reserveIn, reserveOut *big.Int, inSide int, feeBps uint16) (*big.Int, error) {
	if p.key.Kind == ConstantProduct {
		return productOut(amountIn, reserveIn, reserveOut, feeBps), nil
	}
	s := p.key.Settings
	rateIn, rateOut := s.Rate0, s.Rate1
	if inSide == 1 {
		rateIn, rateOut = s.Rate1, s.Rate0
	}
	return stableOut(amountIn, reserveIn, reserveOut, rateIn, rateOut, s.Amp, feeBps)
}

// handleDeposit processes the combined two-sided deposit forwarded by a
// depository or pool-creator escrow. Rejections refund both sides to the
// owner through their vaults; the escrow is already gone by then.
func (p *Pool) handleDeposit(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalDepositInternal(env.Message.Body)
	if err != nil {
		return err
	}
	kind := KindDepository
	if m.Bootstrap {
		kind = KindPoolCreator
	}
	escrow := DeriveAddress(p.rt.Templates().Hash(kind), escrowInitData(p.factory, m.Owner, p.key))
	if env.From != escrow {
		return fmt.Errorf("%w: deposit from %s", ErrUnauthorized, env.From.Hex())
	}

	recipient := m.Params.Recipient
	if recipient == ZeroAddress {
		recipient = m.Owner
	}
	refundBoth := func(reason error) error {
		ctx.Log().Debug("deposit refused", "pool", p.addr.Hex(), "reason", reason)
		p.payout(ctx, p.key.Asset0, m.Owner, m.Amount0, false, m.Params.RejectPayload)
		p.payout(ctx, p.key.Asset1, m.Owner, m.Amount1, false, m.Params.RejectPayload)
		return nil
	}

	if !p.active {
		return refundBoth(ErrVaultInactive)
	}
	if m.Params.Deadline != 0 && ctx.Now() > m.Params.Deadline {
		return refundBoth(ErrDeadlineExceeded)
	}
	if m.Amount0.Sign() <= 0 || m.Amount1.Sign() <= 0 {
		return refundBoth(ErrInvalidAmount)
	}

	if m.Bootstrap {
		return p.bootstrapDeposit(ctx, m, recipient, refundBoth)
	}
	return p.followupDeposit(ctx, m, recipient, refundBoth)
}

// bootstrapDeposit initializes the pool: mints the full initial supply,
// permanently locking a dust amount at the zero address.
func (p *Pool) bootstrapDeposit(ctx *MsgContext, m DepositInternal, recipient common.Address, refundBoth func(error) error) error {
	if p.supply.Sign() != 0 {
		return refundBoth(ErrAlreadyInitialized)
	}
	var lp *big.Int
	if p.key.Kind == ConstantProduct {
		lp = bootstrapLiquidity(m.Amount0, m.Amount1)
	} else {
		s := p.key.Settings
		d, err := stableD(normalize(m.Amount0, s.Rate0), normalize(m.Amount1, s.Rate1), s.Amp)
		if err != nil {
			return refundBoth(err)
		}
		lp = d
	}
	cfg := p.rt.Config()
	locked := cfg.lockedLiquidity()
	if lp.Cmp(cfg.minDepositFloor()) < 0 || lp.Cmp(locked) <= 0 {
		return refundBoth(ErrInsufficientLiquidity)
	}
	if m.Params.MinLP != nil && lp.Cmp(m.Params.MinLP) < 0 {
		return refundBoth(ErrSlippage)
	}

	p.reserve0.Set(m.Amount0)
	p.reserve1.Set(m.Amount1)
	p.supply.Set(lp)
	p.creditLP(ZeroAddress, locked)
	minted := new(big.Int).Sub(lp, locked)
	p.creditLP(recipient, minted)
	p.notifyMint(ctx, recipient, minted, m.Params.FulfillPayload)
	return nil
}

// followupDeposit mints proportionally to the existing reserves and
// refunds the excess of the unbalanced side.
func (p *Pool) followupDeposit(ctx *MsgContext, m DepositInternal, recipient common.Address, refundBoth func(error) error) error {
	if p.supply.Sign() == 0 {
		return refundBoth(ErrPoolNotInitialized)
	}
	lp, used0, used1 := proportionalLiquidity(m.Amount0, m.Amount1, p.reserve0, p.reserve1, p.supply)
	if lp.Sign() <= 0 {
		return refundBoth(ErrInsufficientLiquidity)
	}
	if m.Params.MinLP != nil && lp.Cmp(m.Params.MinLP) < 0 {
		return refundBoth(ErrSlippage)
	}

	if excess := new(big.Int).Sub(m.Amount0, used0); excess.Sign() > 0 {
		p.payout(ctx, p.key.Asset0, m.Owner, excess, true, nil)
	}
	if excess := new(big.Int).Sub(m.Amount1, used1); excess.Sign() > 0 {
		p.payout(ctx, p.key.Asset1, m.Owner, excess, true, nil)
	}
	p.reserve0.Add(p.reserve0, used0)
	p.reserve1.Add(p.reserve1, used1)
	p.supply.Add(p.supply, lp)
	p.creditLP(recipient, lp)
	p.notifyMint(ctx, recipient, lp, m.Params.FulfillPayload)
	return nil
}

func (p *Pool) creditLP(addr common.Address, amount *big.Int) {
	b, ok := p.lpBalances[addr]
	if !ok {
		b = new(big.Int)
		p.lpBalances[addr] = b
	}
	b.Add(b, amount)
}

func (p *Pool) notifyMint(ctx *MsgContext, recipient common.Address, minted *big.Int, payload []byte) {
	notify := LPSupplyNotify{Owner: recipient, Amount: minted}
	ctx.Send(recipient, nil, notify.Marshal(OpLPMintNotify))
	if len(payload) > 0 {
		ctx.Send(recipient, nil, Notification{OK: true, Payload: payload}.Marshal())
	}
}

// handleWithdraw burns LP tokens held by the sender and pays out the
// pro-rata share of both reserves.
func (p *Pool) handleWithdraw(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalWithdrawRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if m.Amount == nil || m.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, ok := p.lpBalances[env.From]
	if !ok || bal.Cmp(m.Amount) < 0 {
		return fmt.Errorf("%w: burn exceeds balance", ErrInsufficientLiquidity)
	}
	recipient := m.Recipient
	if recipient == ZeroAddress {
		recipient = env.From
	}

	out0, out1 := burnAmounts(m.Amount, p.reserve0, p.reserve1, p.supply)
	bal.Sub(bal, m.Amount)
	if bal.Sign() == 0 {
		delete(p.lpBalances, env.From)
	}
	p.supply.Sub(p.supply, m.Amount)
	p.reserve0.Sub(p.reserve0, out0)
	p.reserve1.Sub(p.reserve1, out1)

	p.payout(ctx, p.key.Asset0, recipient, out0, true, m.FulfillPayload)
	p.payout(ctx, p.key.Asset1, recipient, out1, true, m.FulfillPayload)
	notify := LPSupplyNotify{Owner: env.From, Amount: m.Amount}
	ctx.Send(env.From, nil, notify.Marshal(OpLPBurnNotify))
	return nil
}

// handleUpdate applies a factory-signed fee or activity change.
func (p *Pool) handleUpdate(ctx *MsgContext, env *Envelope) error {
	if env.From != p.factory {
		return fmt.Errorf("%w: update from %s", ErrUnauthorized, env.From.Hex())
	}
	m, err := UnmarshalUpdatePoolRequest(env.Message.Body)
	if err != nil {
		return err
	}
	if m.SetFees {
		total := uint64(m.LPFee) + uint64(m.ProtocolFee) + uint64(p.rt.Config().ReferralFee)
		if total > MaxTradeFee {
			return fmt.Errorf("%w: combined %d above cap", ErrInvalidFee, total)
		}
		p.lpFee = m.LPFee
		p.protocolFee = m.ProtocolFee
	}
	if m.SetActive {
		p.active = m.Active
	}
	ctx.Log().Info("pool updated",
		"pool", p.addr.Hex(),
		"lpFee", p.lpFee,
		"protocolFee", p.protocolFee,
		"active", p.active)
	return nil
}

// handleCollectFees pays accrued protocol fees out through the asset's
// vault on a factory-relayed withdrawal. The side-account bounds the
// amount, so custody backing LP reserves can never be pulled.
func (p *Pool) handleCollectFees(ctx *MsgContext, env *Envelope) error {
	if env.From != p.factory {
		return fmt.Errorf("%w: fee withdrawal from %s", ErrUnauthorized, env.From.Hex())
	}
	m, err := UnmarshalWithdrawFeesRequest(env.Message.Body)
	if err != nil {
		return err
	}
	side, err := p.sideOf(m.Asset)
	if err != nil {
		return err
	}
	accrued := p.protocolFees[side]
	amount := m.Amount
	if amount == nil || amount.Sign() == 0 {
		amount = new(big.Int).Set(accrued)
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if accrued.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s accrued, %s requested", ErrInsufficientLiquidity, accrued, amount)
	}
	accrued.Sub(accrued, amount)
	p.payout(ctx, m.Asset, m.To, amount, true, nil)
	return nil
}

// handleClaimReferral pays out the fees accrued for the sending referral
// address on one side, emptying its account for that side.
func (p *Pool) handleClaimReferral(ctx *MsgContext, env *Envelope) error {
	m, err := UnmarshalClaimReferralRequest(env.Message.Body)
	if err != nil {
		return err
	}
	side, err := p.sideOf(m.Asset)
	if err != nil {
		return err
	}
	acc, ok := p.referralFees[env.From]
	if !ok || acc[side].Sign() == 0 {
		return fmt.Errorf("%w: no accrued referral fees", ErrInsufficientLiquidity)
	}
	amount := new(big.Int).Set(acc[side])
	acc[side].SetUint64(0)
	if acc[0].Sign() == 0 && acc[1].Sign() == 0 {
		delete(p.referralFees, env.From)
	}
	to := m.To
	if to == ZeroAddress {
		to = env.From
	}
	p.payout(ctx, m.Asset, to, amount, true, nil)
	return nil
}

// snapshot implements snapshotter.
func (p *Pool) snapshot() []byte {
	w := &msgWriter{}
	w.addr(p.factory)
	w.bytes(p.key.ToBytes())
	w.bool(p.active)
	w.u16(p.lpFee)
	w.u16(p.protocolFee)
	w.bigInt(p.reserve0)
	w.bigInt(p.reserve1)
	w.bigInt(p.supply)
	w.bigInt(p.protocolFees[0])
	w.bigInt(p.protocolFees[1])

	holders := make([]common.Address, 0, len(p.lpBalances))
	for addr := range p.lpBalances {
		holders = append(holders, addr)
	}
	sort.Slice(holders, func(i, j int) bool {
		return bytes.Compare(holders[i][:], holders[j][:]) < 0
	})
	w.u32(uint32(len(holders)))
	for _, addr := range holders {
		w.addr(addr)
		w.bigInt(p.lpBalances[addr])
	}

	refs := make([]common.Address, 0, len(p.referralFees))
	for addr := range p.referralFees {
		refs = append(refs, addr)
	}
	sort.Slice(refs, func(i, j int) bool {
		return bytes.Compare(refs[i][:], refs[j][:]) < 0
	})
	w.u32(uint32(len(refs)))
	for _, addr := range refs {
		w.addr(addr)
		w.bigInt(p.referralFees[addr][0])
		w.bigInt(p.referralFees[addr][1])
	}
	return w.buf
}

// RestorePool rebuilds a pool actor from a persisted state record.
func RestorePool(rt *Runtime, addr common.Address, data []byte) (*Pool, error) {
	r := &msgReader{buf: data}
	factory := r.addr()
	keyBytes := r.bytes()
	p := &Pool{
		rt:           rt,
		addr:         addr,
		factory:      factory,
		lpBalances:   make(map[common.Address]*big.Int),
		referralFees: make(map[common.Address]*[2]*big.Int),
	}
	if r.err == nil {
		key, err := PoolKeyFromBytes(keyBytes)
		if err != nil {
			return nil, err
		}
		p.key = key
	}
	p.active = r.bool()
	p.lpFee = r.u16()
	p.protocolFee = r.u16()
	p.reserve0 = r.bigInt()
	p.reserve1 = r.bigInt()
	p.supply = r.bigInt()
	p.protocolFees = [2]*big.Int{r.bigInt(), r.bigInt()}
	for i, n := 0, r.u32(); uint32(i) < n && r.err == nil; i++ {
		p.lpBalances[r.addr()] = r.bigInt()
	}
	for i, n := 0, r.u32(); uint32(i) < n && r.err == nil; i++ {
		p.referralFees[r.addr()] = &[2]*big.Int{r.bigInt(), r.bigInt()}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return p, nil
}
