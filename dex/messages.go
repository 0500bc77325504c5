// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Operation tags. Every message is a 32-bit tag followed by the
// fixed-layout body for that operation.
const (
	// Vault-facing
	OpSwap             uint32 = 0x01000000 // swap(steps, params), value attached
	OpCreatePool       uint32 = 0x02000000 // createPool(poolKey, params), value attached
	OpDepositLiquidity uint32 = 0x03000000 // depositLiquidity(poolKey, params), value attached
	OpActivateVault    uint32 = 0x04000000 // activateVault(custody), factory only
	OpTokenNotify      uint32 = 0x05000000 // incoming token transfer notification

	// Pool-facing internal protocol
	OpSwapInternal    uint32 = 0x10000000 // one hop of a swap route
	OpDepositInternal uint32 = 0x11000000 // combined two-sided deposit from an escrow
	OpWithdraw        uint32 = 0x12000000 // burn LP amount, pay out pro-rata
	OpClaimReferral   uint32 = 0x15000000 // referral pulls its accrued swap fees

	// Escrow
	OpEscrowDeposit uint32 = 0x13000000 // one side of a two-sided deposit
	OpWithdrawFunds uint32 = 0x14000000 // owner reclaims a pending escrow

	// Factory administration
	OpCreateVault         uint32 = 0x20000000
	OpUpdateAdmin         uint32 = 0x21000000
	OpUpdateWithdrawer    uint32 = 0x22000000
	OpUpdateCodeTemplates uint32 = 0x23000000
	OpUpdatePool          uint32 = 0x24000000
	OpFactoryWithdraw     uint32 = 0x25000000

	// Outbound plumbing
	OpPayout        uint32 = 0x30000000 // pool/factory instructs a vault to pay out
	OpTokenTransfer uint32 = 0x31000000 // vault instructs its custody wallet
	OpNotify        uint32 = 0x32000000 // success/failure notification
	OpLPMintNotify  uint32 = 0x33000000 // LP tokens minted, token-standard shape
	OpLPBurnNotify  uint32 = 0x34000000 // LP tokens burned, token-standard shape
)

// Message is a tagged binary record exchanged between actors.
type Message struct {
	Op   uint32
	Body []byte
}

// Encode serializes the tag and body.
func (m Message) Encode() []byte {
	data := make([]byte, 4+len(m.Body))
	binary.BigEndian.PutUint32(data[:4], m.Op)
	copy(data[4:], m.Body)
	return data
}

// DecodeMessage splits a raw record into tag and body.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, errors.New("message too short")
	}
	return Message{Op: binary.BigEndian.Uint32(data[:4]), Body: data[4:]}, nil
}

// =========================================================================
// Binary layout helpers
// =========================================================================

// Variable-length fields carry a one- or two-byte length prefix. A value
// that cannot fit its prefix poisons the writer: the message encodes with
// an empty body, which no reader accepts, so the frame bounces instead of
// misparsing on the peer.
const (
	maxIntFieldLen  = 0xff
	maxByteFieldLen = 0xffff
)

var errFieldTooLong = errors.New("field exceeds length prefix")

type msgWriter struct {
	buf []byte
	err error
}

func (w *msgWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *msgWriter) u16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *msgWriter) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *msgWriter) i64(v int64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }
func (w *msgWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *msgWriter) addr(a common.Address) { w.buf = append(w.buf, a.Bytes()...) }

func (w *msgWriter) bigInt(v *big.Int) {
	if v == nil {
		v = Zero
	}
	b := v.Bytes()
	if len(b) > maxIntFieldLen {
		w.err = errFieldTooLong
		return
	}
	w.u8(uint8(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *msgWriter) bytes(b []byte) {
	if len(b) > maxByteFieldLen {
		w.err = errFieldTooLong
		return
	}
	w.u16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *msgWriter) finish() []byte {
	if w.err != nil {
		return nil
	}
	return w.buf
}

type msgReader struct {
	buf []byte
	err error
}

var errTruncated = errors.New("truncated message body")

func (r *msgReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = errTruncated
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *msgReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *msgReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *msgReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *msgReader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *msgReader) bool() bool { return r.u8() != 0 }

func (r *msgReader) addr() common.Address {
	b := r.take(common.AddressLength)
	if b == nil {
		return common.Address{}
	}
	return common.BytesToAddress(b)
}

func (r *msgReader) bigInt() *big.Int {
	n := int(r.u8())
	b := r.take(n)
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

func (r *msgReader) bytes() []byte {
	n := int(r.u16())
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *msgReader) asset() Asset {
	b := r.take(assetEncodedLen)
	if b == nil {
		return Asset{}
	}
	a, err := AssetFromBytes(b)
	if err != nil {
		r.err = err
	}
	return a
}

func (r *msgReader) finish() error {
	return r.err
}

// =========================================================================
// Swap payloads
// =========================================================================

// SwapParams are the caller-scoped options attached to a swap.
type SwapParams struct {
	Deadline       int64          // unix seconds; zero means no deadline
	Recipient      common.Address // payout target; zero means the sender
	Referral       common.Address // optional referral fee recipient
	FulfillPayload []byte         // delivered with the output on success
	RejectPayload  []byte         // delivered with the refund on failure
}

func (p SwapParams) encode(w *msgWriter) {
	w.i64(p.Deadline)
	w.addr(p.Recipient)
	w.addr(p.Referral)
	w.bytes(p.FulfillPayload)
	w.bytes(p.RejectPayload)
}

func decodeSwapParams(r *msgReader) SwapParams {
	return SwapParams{
		Deadline:       r.i64(),
		Recipient:      r.addr(),
		Referral:       r.addr(),
		FulfillPayload: r.bytes(),
		RejectPayload:  r.bytes(),
	}
}

func encodeSteps(w *msgWriter, s *SwapStep) {
	for s != nil {
		w.u8(1)
		w.addr(s.Pool)
		w.bigInt(s.MinOut)
		s = s.Next
	}
	w.u8(0)
}

func decodeSteps(r *msgReader) *SwapStep {
	var head, tail *SwapStep
	for r.u8() == 1 {
		step := &SwapStep{Pool: r.addr(), MinOut: r.bigInt()}
		if head == nil {
			head = step
		} else {
			tail.Next = step
		}
		tail = step
		if r.err != nil {
			return nil
		}
	}
	return head
}

// SwapRequest is the vault-facing swap instruction; the input amount is
// the value delivered alongside it.
type SwapRequest struct {
	Steps  *SwapStep
	Params SwapParams
}

// Marshal encodes the request as an OpSwap message.
func (m SwapRequest) Marshal() Message {
	w := &msgWriter{}
	encodeSteps(w, m.Steps)
	m.Params.encode(w)
	return Message{Op: OpSwap, Body: w.finish()}
}

// UnmarshalSwapRequest decodes an OpSwap body.
func UnmarshalSwapRequest(body []byte) (SwapRequest, error) {
	r := &msgReader{buf: body}
	m := SwapRequest{Steps: decodeSteps(r), Params: decodeSwapParams(r)}
	return m, r.finish()
}

// SwapInternal is one hop of a swap route as delivered to a pool: the
// input asset and amount, this hop's minimum output, and the remaining
// chain.
type SwapInternal struct {
	Asset  Asset
	Amount *big.Int
	Sender common.Address // original initiator; refund fallback
	MinOut *big.Int
	Steps  *SwapStep // hops after this one
	Params SwapParams
}

// Marshal encodes the hop as an OpSwapInternal message.
func (m SwapInternal) Marshal() Message {
	w := &msgWriter{}
	w.buf = append(w.buf, m.Asset.ToBytes()...)
	w.bigInt(m.Amount)
	w.addr(m.Sender)
	w.bigInt(m.MinOut)
	encodeSteps(w, m.Steps)
	m.Params.encode(w)
	return Message{Op: OpSwapInternal, Body: w.finish()}
}

// UnmarshalSwapInternal decodes an OpSwapInternal body.
func UnmarshalSwapInternal(body []byte) (SwapInternal, error) {
	r := &msgReader{buf: body}
	m := SwapInternal{
		Asset:  r.asset(),
		Amount: r.bigInt(),
		Sender: r.addr(),
		MinOut: r.bigInt(),
		Steps:  decodeSteps(r),
		Params: decodeSwapParams(r),
	}
	return m, r.finish()
}

// =========================================================================
// Liquidity payloads
// =========================================================================

// DepositParams scope a liquidity deposit or pool creation.
type DepositParams struct {
	PoolKey        PoolKey
	MinLP          *big.Int // minimum LP tokens to mint; zero disables the guard
	Deadline       int64
	Recipient      common.Address
	FulfillPayload []byte
	RejectPayload  []byte
}

func (p DepositParams) encode(w *msgWriter) {
	w.bytes(p.PoolKey.ToBytes())
	w.bigInt(p.MinLP)
	w.i64(p.Deadline)
	w.addr(p.Recipient)
	w.bytes(p.FulfillPayload)
	w.bytes(p.RejectPayload)
}

func decodeDepositParams(r *msgReader) DepositParams {
	keyBytes := r.bytes()
	p := DepositParams{}
	if r.err == nil {
		key, err := PoolKeyFromBytes(keyBytes)
		if err != nil {
			r.err = err
		}
		p.PoolKey = key
	}
	p.MinLP = r.bigInt()
	p.Deadline = r.i64()
	p.Recipient = r.addr()
	p.FulfillPayload = r.bytes()
	p.RejectPayload = r.bytes()
	return p
}

// DepositRequest is the vault-facing deposit or create-pool instruction.
type DepositRequest struct {
	Params DepositParams
}

// Marshal encodes the request under the given tag (OpDepositLiquidity or
// OpCreatePool).
func (m DepositRequest) Marshal(op uint32) Message {
	w := &msgWriter{}
	m.Params.encode(w)
	return Message{Op: op, Body: w.finish()}
}

// UnmarshalDepositRequest decodes an OpDepositLiquidity or OpCreatePool
// body.
func UnmarshalDepositRequest(body []byte) (DepositRequest, error) {
	r := &msgReader{buf: body}
	m := DepositRequest{Params: decodeDepositParams(r)}
	return m, r.finish()
}

// EscrowDeposit is one side of a two-sided deposit, sent by a vault to
// the depository or pool-creator escrow.
type EscrowDeposit struct {
	Owner  common.Address
	Asset  Asset
	Amount *big.Int
	Params DepositParams
}

// Marshal encodes the side as an OpEscrowDeposit message.
func (m EscrowDeposit) Marshal() Message {
	w := &msgWriter{}
	w.addr(m.Owner)
	w.buf = append(w.buf, m.Asset.ToBytes()...)
	w.bigInt(m.Amount)
	m.Params.encode(w)
	return Message{Op: OpEscrowDeposit, Body: w.finish()}
}

// UnmarshalEscrowDeposit decodes an OpEscrowDeposit body.
func UnmarshalEscrowDeposit(body []byte) (EscrowDeposit, error) {
	r := &msgReader{buf: body}
	m := EscrowDeposit{
		Owner:  r.addr(),
		Asset:  r.asset(),
		Amount: r.bigInt(),
		Params: decodeDepositParams(r),
	}
	return m, r.finish()
}

// DepositInternal is the combined two-sided deposit an escrow forwards to
// the pool once both sides have arrived. Amounts are ordered like the
// normalized pool key.
type DepositInternal struct {
	Owner     common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Bootstrap bool // true when sent by a PoolCreator
	Params    DepositParams
}

// Marshal encodes the deposit as an OpDepositInternal message.
func (m DepositInternal) Marshal() Message {
	w := &msgWriter{}
	w.addr(m.Owner)
	w.bigInt(m.Amount0)
	w.bigInt(m.Amount1)
	w.bool(m.Bootstrap)
	m.Params.encode(w)
	return Message{Op: OpDepositInternal, Body: w.finish()}
}

// UnmarshalDepositInternal decodes an OpDepositInternal body.
func UnmarshalDepositInternal(body []byte) (DepositInternal, error) {
	r := &msgReader{buf: body}
	m := DepositInternal{
		Owner:     r.addr(),
		Amount0:   r.bigInt(),
		Amount1:   r.bigInt(),
		Bootstrap: r.bool(),
		Params:    decodeDepositParams(r),
	}
	return m, r.finish()
}

// WithdrawRequest burns LP tokens and pays out pro-rata reserves.
type WithdrawRequest struct {
	Amount         *big.Int       // LP amount to burn
	Recipient      common.Address // zero means the burner
	FulfillPayload []byte
	RejectPayload  []byte
}

// Marshal encodes the request as an OpWithdraw message.
func (m WithdrawRequest) Marshal() Message {
	w := &msgWriter{}
	w.bigInt(m.Amount)
	w.addr(m.Recipient)
	w.bytes(m.FulfillPayload)
	w.bytes(m.RejectPayload)
	return Message{Op: OpWithdraw, Body: w.finish()}
}

// UnmarshalWithdrawRequest decodes an OpWithdraw body.
func UnmarshalWithdrawRequest(body []byte) (WithdrawRequest, error) {
	r := &msgReader{buf: body}
	m := WithdrawRequest{
		Amount:         r.bigInt(),
		Recipient:      r.addr(),
		FulfillPayload: r.bytes(),
		RejectPayload:  r.bytes(),
	}
	return m, r.finish()
}

// =========================================================================
// Factory payloads
// =========================================================================

// CreateVaultRequest asks the factory to deploy the vault for an asset.
type CreateVaultRequest struct {
	Asset Asset
}

// Marshal encodes the request as an OpCreateVault message.
func (m CreateVaultRequest) Marshal() Message {
	return Message{Op: OpCreateVault, Body: m.Asset.ToBytes()}
}

// UnmarshalCreateVaultRequest decodes an OpCreateVault body.
func UnmarshalCreateVaultRequest(body []byte) (CreateVaultRequest, error) {
	a, err := AssetFromBytes(body)
	return CreateVaultRequest{Asset: a}, err
}

// ActivateVaultRequest confirms a token vault's custody sub-account.
type ActivateVaultRequest struct {
	Asset   Asset
	Custody common.Address
}

// Marshal encodes the request as an OpActivateVault message.
func (m ActivateVaultRequest) Marshal() Message {
	w := &msgWriter{}
	w.buf = append(w.buf, m.Asset.ToBytes()...)
	w.addr(m.Custody)
	return Message{Op: OpActivateVault, Body: w.finish()}
}

// UnmarshalActivateVaultRequest decodes an OpActivateVault body.
func UnmarshalActivateVaultRequest(body []byte) (ActivateVaultRequest, error) {
	r := &msgReader{buf: body}
	m := ActivateVaultRequest{Asset: r.asset(), Custody: r.addr()}
	return m, r.finish()
}

// UpdateAddressRequest rotates the admin or withdrawer capability.
type UpdateAddressRequest struct {
	Target common.Address
}

// Marshal encodes the rotation under the given tag (OpUpdateAdmin or
// OpUpdateWithdrawer).
func (m UpdateAddressRequest) Marshal(op uint32) Message {
	w := &msgWriter{}
	w.addr(m.Target)
	return Message{Op: op, Body: w.finish()}
}

// UnmarshalUpdateAddressRequest decodes an address-rotation body.
func UnmarshalUpdateAddressRequest(body []byte) (UpdateAddressRequest, error) {
	r := &msgReader{buf: body}
	m := UpdateAddressRequest{Target: r.addr()}
	return m, r.finish()
}

// UpdateCodeRequest replaces the code template hash for a contract kind.
type UpdateCodeRequest struct {
	Kind ContractKind
	Code common.Hash
}

// Marshal encodes the upgrade as an OpUpdateCodeTemplates message.
func (m UpdateCodeRequest) Marshal() Message {
	w := &msgWriter{}
	w.u8(uint8(m.Kind))
	w.buf = append(w.buf, m.Code[:]...)
	return Message{Op: OpUpdateCodeTemplates, Body: w.finish()}
}

// UnmarshalUpdateCodeRequest decodes an OpUpdateCodeTemplates body.
func UnmarshalUpdateCodeRequest(body []byte) (UpdateCodeRequest, error) {
	r := &msgReader{buf: body}
	m := UpdateCodeRequest{Kind: ContractKind(r.u8())}
	b := r.take(common.HashLength)
	if b != nil {
		copy(m.Code[:], b)
	}
	return m, r.finish()
}

// UpdatePoolRequest adjusts a pool's fees and/or activity flag.
type UpdatePoolRequest struct {
	PoolKey     PoolKey
	SetFees     bool
	LPFee       uint16
	ProtocolFee uint16
	SetActive   bool
	Active      bool
}

// Marshal encodes the update as an OpUpdatePool message.
func (m UpdatePoolRequest) Marshal() Message {
	w := &msgWriter{}
	w.bytes(m.PoolKey.ToBytes())
	w.bool(m.SetFees)
	w.u16(m.LPFee)
	w.u16(m.ProtocolFee)
	w.bool(m.SetActive)
	w.bool(m.Active)
	return Message{Op: OpUpdatePool, Body: w.finish()}
}

// UnmarshalUpdatePoolRequest decodes an OpUpdatePool body.
func UnmarshalUpdatePoolRequest(body []byte) (UpdatePoolRequest, error) {
	r := &msgReader{buf: body}
	keyBytes := r.bytes()
	m := UpdatePoolRequest{}
	if r.err == nil {
		key, err := PoolKeyFromBytes(keyBytes)
		if err != nil {
			return m, err
		}
		m.PoolKey = key
	}
	m.SetFees = r.bool()
	m.LPFee = r.u16()
	m.ProtocolFee = r.u16()
	m.SetActive = r.bool()
	m.Active = r.bool()
	return m, r.finish()
}

// WithdrawFeesRequest moves protocol fees a pool has accrued out through
// the asset's vault. A zero amount withdraws the full accrued balance.
type WithdrawFeesRequest struct {
	PoolKey PoolKey
	Asset   Asset
	Amount  *big.Int
	To      common.Address
}

// Marshal encodes the withdrawal as an OpFactoryWithdraw message.
func (m WithdrawFeesRequest) Marshal() Message {
	w := &msgWriter{}
	w.bytes(m.PoolKey.ToBytes())
	w.buf = append(w.buf, m.Asset.ToBytes()...)
	w.bigInt(m.Amount)
	w.addr(m.To)
	return Message{Op: OpFactoryWithdraw, Body: w.finish()}
}

// UnmarshalWithdrawFeesRequest decodes an OpFactoryWithdraw body.
func UnmarshalWithdrawFeesRequest(body []byte) (WithdrawFeesRequest, error) {
	r := &msgReader{buf: body}
	keyBytes := r.bytes()
	m := WithdrawFeesRequest{}
	if r.err == nil {
		key, err := PoolKeyFromBytes(keyBytes)
		if err != nil {
			return m, err
		}
		m.PoolKey = key
	}
	m.Asset = r.asset()
	m.Amount = r.bigInt()
	m.To = r.addr()
	return m, r.finish()
}

// ClaimReferralRequest pulls the swap fees accrued for the sending
// referral address on one side of a pool.
type ClaimReferralRequest struct {
	Asset Asset
	To    common.Address
}

// Marshal encodes the claim as an OpClaimReferral message.
func (m ClaimReferralRequest) Marshal() Message {
	w := &msgWriter{}
	w.buf = append(w.buf, m.Asset.ToBytes()...)
	w.addr(m.To)
	return Message{Op: OpClaimReferral, Body: w.finish()}
}

// UnmarshalClaimReferralRequest decodes an OpClaimReferral body.
func UnmarshalClaimReferralRequest(body []byte) (ClaimReferralRequest, error) {
	r := &msgReader{buf: body}
	m := ClaimReferralRequest{Asset: r.asset(), To: r.addr()}
	return m, r.finish()
}

// =========================================================================
// Plumbing payloads
// =========================================================================

// TokenNotify is the token-standard transfer notification a custody
// wallet delivers to its vault: who sent tokens, how many, and the
// forwarded instruction.
type TokenNotify struct {
	Sender  common.Address
	Amount  *big.Int
	Forward []byte // encoded inner Message
}

// Marshal encodes the notification as an OpTokenNotify message.
func (m TokenNotify) Marshal() Message {
	w := &msgWriter{}
	w.addr(m.Sender)
	w.bigInt(m.Amount)
	w.bytes(m.Forward)
	return Message{Op: OpTokenNotify, Body: w.finish()}
}

// UnmarshalTokenNotify decodes an OpTokenNotify body.
func UnmarshalTokenNotify(body []byte) (TokenNotify, error) {
	r := &msgReader{buf: body}
	m := TokenNotify{Sender: r.addr(), Amount: r.bigInt(), Forward: r.bytes()}
	return m, r.finish()
}

// PayoutCommand instructs a vault to release funds to a recipient,
// optionally delivering a notification payload with them. Proof carries
// the sender's init data so the vault can check the command really came
// from a factory-derived pool or escrow.
type PayoutCommand struct {
	To        common.Address
	Amount    *big.Int
	OK        bool // success vs failure notification routing
	Payload   []byte
	ProofKind ContractKind
	Proof     []byte
}

// Marshal encodes the command as an OpPayout message.
func (m PayoutCommand) Marshal() Message {
	w := &msgWriter{}
	w.addr(m.To)
	w.bigInt(m.Amount)
	w.bool(m.OK)
	w.bytes(m.Payload)
	w.u8(uint8(m.ProofKind))
	w.bytes(m.Proof)
	return Message{Op: OpPayout, Body: w.finish()}
}

// UnmarshalPayoutCommand decodes an OpPayout body.
func UnmarshalPayoutCommand(body []byte) (PayoutCommand, error) {
	r := &msgReader{buf: body}
	m := PayoutCommand{To: r.addr(), Amount: r.bigInt(), OK: r.bool(), Payload: r.bytes()}
	m.ProofKind = ContractKind(r.u8())
	m.Proof = r.bytes()
	return m, r.finish()
}

// TokenTransfer instructs a vault's custody wallet to move tokens.
// This is the one message shape owned by the external token standard.
type TokenTransfer struct {
	To      common.Address
	Amount  *big.Int
	Payload []byte
}

// Marshal encodes the transfer as an OpTokenTransfer message.
func (m TokenTransfer) Marshal() Message {
	w := &msgWriter{}
	w.addr(m.To)
	w.bigInt(m.Amount)
	w.bytes(m.Payload)
	return Message{Op: OpTokenTransfer, Body: w.finish()}
}

// UnmarshalTokenTransfer decodes an OpTokenTransfer body.
func UnmarshalTokenTransfer(body []byte) (TokenTransfer, error) {
	r := &msgReader{buf: body}
	m := TokenTransfer{To: r.addr(), Amount: r.bigInt(), Payload: r.bytes()}
	return m, r.finish()
}

// Notification reports the outcome of an operation to a caller-specified
// recipient.
type Notification struct {
	OK      bool
	Payload []byte
}

// Marshal encodes the notification as an OpNotify message.
func (m Notification) Marshal() Message {
	w := &msgWriter{}
	w.bool(m.OK)
	w.bytes(m.Payload)
	return Message{Op: OpNotify, Body: w.finish()}
}

// UnmarshalNotification decodes an OpNotify body.
func UnmarshalNotification(body []byte) (Notification, error) {
	r := &msgReader{buf: body}
	m := Notification{OK: r.bool(), Payload: r.bytes()}
	return m, r.finish()
}

// LPSupplyNotify is the token-standard-compatible mint/burn notification
// a pool emits when LP supply changes.
type LPSupplyNotify struct {
	Owner  common.Address
	Amount *big.Int
}

// Marshal encodes the change under OpLPMintNotify or OpLPBurnNotify.
func (m LPSupplyNotify) Marshal(op uint32) Message {
	w := &msgWriter{}
	w.addr(m.Owner)
	w.bigInt(m.Amount)
	return Message{Op: op, Body: w.finish()}
}

// UnmarshalLPSupplyNotify decodes an LP supply notification body.
func UnmarshalLPSupplyNotify(body []byte) (LPSupplyNotify, error) {
	r := &msgReader{buf: body}
	m := LPSupplyNotify{Owner: r.addr(), Amount: r.bigInt()}
	return m, r.finish()
}
