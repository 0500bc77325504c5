// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dex implements an actor-model decentralized exchange engine.
// Every protocol participant (factory, vaults, pools, deposit escrows) is
// an isolated actor that owns its state and communicates through one-way
// messages with bounce-based failure signaling. Addresses are content
// derived: the same logical key always resolves to the same actor without
// a stored lookup table.
package dex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// AssetKind discriminates the closed set of asset variants.
type AssetKind uint8

const (
	// AssetNative is the ledger's native coin.
	AssetNative AssetKind = iota
	// AssetToken is a fungible token identified by its master account
	// (chain, hash). Custody goes through a per-vault sub-account.
	AssetToken
	// AssetCurrency is an external currency referenced by numeric id.
	AssetCurrency
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetToken:
		return "token"
	case AssetCurrency:
		return "currency"
	default:
		return "unknown"
	}
}

// Asset identifies what a vault custodies and what a pool trades.
// It is a value type; equality is structural and assets are usable as map
// keys.
type Asset struct {
	Kind  AssetKind
	Chain int8        // token master chain, AssetToken only
	Hash  common.Hash // token master account hash, AssetToken only
	ID    uint32      // external currency id, AssetCurrency only
}

// NativeAsset returns the native coin asset.
func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

// TokenAsset returns the fungible token asset for a master account.
func TokenAsset(chain int8, hash common.Hash) Asset {
	return Asset{Kind: AssetToken, Chain: chain, Hash: hash}
}

// CurrencyAsset returns the external currency asset for an id.
func CurrencyAsset(id uint32) Asset {
	return Asset{Kind: AssetCurrency, ID: id}
}

// IsNative returns true for the native coin asset.
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

const assetEncodedLen = 1 + 1 + 32 + 4

// ToBytes serializes the asset as a fixed 38-byte record.
func (a Asset) ToBytes() []byte {
	data := make([]byte, assetEncodedLen)
	data[0] = byte(a.Kind)
	data[1] = byte(a.Chain)
	copy(data[2:34], a.Hash[:])
	binary.BigEndian.PutUint32(data[34:38], a.ID)
	return data
}

// AssetFromBytes deserializes an asset from its fixed layout.
func AssetFromBytes(data []byte) (Asset, error) {
	if len(data) < assetEncodedLen {
		return Asset{}, errors.New("invalid asset data length")
	}
	a := Asset{
		Kind:  AssetKind(data[0]),
		Chain: int8(data[1]),
		ID:    binary.BigEndian.Uint32(data[34:38]),
	}
	copy(a.Hash[:], data[2:34])
	if a.Kind > AssetCurrency {
		return Asset{}, ErrUnsupportedAsset
	}
	return a, nil
}

// Cmp defines the canonical asset order: by kind, then by the token or
// currency identity bytes. Used to normalize unordered pairs.
func (a Asset) Cmp(b Asset) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.ToBytes(), b.ToBytes())
}

func (a Asset) String() string {
	switch a.Kind {
	case AssetNative:
		return "native"
	case AssetToken:
		return fmt.Sprintf("token:%d:%s", a.Chain, a.Hash.Hex())
	case AssetCurrency:
		return fmt.Sprintf("currency:%d", a.ID)
	default:
		return "unknown"
	}
}

// AmmKind selects the pool's trading-curve strategy, baked into the pool
// address at creation time.
type AmmKind uint8

const (
	ConstantProduct AmmKind = iota // x * y = k
	CurveFiStable                  // Curve-style stable swap
)

func (k AmmKind) String() string {
	switch k {
	case ConstantProduct:
		return "constant_product"
	case CurveFiStable:
		return "curve_fi_stable"
	default:
		return "unknown"
	}
}

// StableSettings carries the stable-curve parameters: the amplification
// coefficient (already scaled by APrecision) and one rate normalizer per
// asset, ordered like the pool's asset pair.
type StableSettings struct {
	Amp   *big.Int
	Rate0 *big.Int
	Rate1 *big.Int
}

// Clone returns a deep copy.
func (s *StableSettings) Clone() *StableSettings {
	if s == nil {
		return nil
	}
	return &StableSettings{
		Amp:   new(big.Int).Set(s.Amp),
		Rate0: new(big.Int).Set(s.Rate0),
		Rate1: new(big.Int).Set(s.Rate1),
	}
}

// swap flips the per-asset normalizers when the asset pair is reordered.
func (s *StableSettings) swap() *StableSettings {
	if s == nil {
		return nil
	}
	return &StableSettings{
		Amp:   new(big.Int).Set(s.Amp),
		Rate0: new(big.Int).Set(s.Rate1),
		Rate1: new(big.Int).Set(s.Rate0),
	}
}

// ToBytes serializes settings for hashing and wire transport.
func (s *StableSettings) ToBytes() []byte {
	if s == nil {
		return []byte{0}
	}
	data := []byte{1}
	for _, v := range []*big.Int{s.Amp, s.Rate0, s.Rate1} {
		b := v.Bytes()
		data = append(data, byte(len(b)))
		data = append(data, b...)
	}
	return data
}

// StableSettingsFromBytes deserializes settings; returns nil for the
// constant-product encoding.
func StableSettingsFromBytes(data []byte) (*StableSettings, []byte, error) {
	if len(data) < 1 {
		return nil, nil, errors.New("invalid settings data length")
	}
	if data[0] == 0 {
		return nil, data[1:], nil
	}
	rest := data[1:]
	vals := make([]*big.Int, 3)
	for i := range vals {
		if len(rest) < 1 {
			return nil, nil, errors.New("invalid settings data length")
		}
		n := int(rest[0])
		if len(rest) < 1+n {
			return nil, nil, errors.New("invalid settings data length")
		}
		vals[i] = new(big.Int).SetBytes(rest[1 : 1+n])
		rest = rest[1+n:]
	}
	return &StableSettings{Amp: vals[0], Rate0: vals[1], Rate1: vals[2]}, rest, nil
}

// PoolKey uniquely identifies a pool: an unordered asset pair plus the
// curve kind and, for the stable curve, its settings. (A,B) and (B,A)
// normalize to the same key.
type PoolKey struct {
	Asset0   Asset
	Asset1   Asset
	Kind     AmmKind
	Settings *StableSettings
}

// Normalized returns the key with assets in canonical order, swapping the
// per-asset settings when the pair is flipped.
func (pk PoolKey) Normalized() PoolKey {
	if pk.Asset0.Cmp(pk.Asset1) <= 0 {
		return pk
	}
	return PoolKey{
		Asset0:   pk.Asset1,
		Asset1:   pk.Asset0,
		Kind:     pk.Kind,
		Settings: pk.Settings.swap(),
	}
}

// ToBytes serializes the normalized key.
func (pk PoolKey) ToBytes() []byte {
	n := pk.Normalized()
	data := make([]byte, 0, 2*assetEncodedLen+8)
	data = append(data, n.Asset0.ToBytes()...)
	data = append(data, n.Asset1.ToBytes()...)
	data = append(data, byte(n.Kind))
	data = append(data, n.Settings.ToBytes()...)
	return data
}

// PoolKeyFromBytes deserializes a pool key.
func PoolKeyFromBytes(data []byte) (PoolKey, error) {
	if len(data) < 2*assetEncodedLen+1 {
		return PoolKey{}, errors.New("invalid pool key data length")
	}
	a0, err := AssetFromBytes(data[:assetEncodedLen])
	if err != nil {
		return PoolKey{}, err
	}
	a1, err := AssetFromBytes(data[assetEncodedLen : 2*assetEncodedLen])
	if err != nil {
		return PoolKey{}, err
	}
	kind := AmmKind(data[2*assetEncodedLen])
	if kind > CurveFiStable {
		return PoolKey{}, ErrUnsupportedAmm
	}
	settings, _, err := StableSettingsFromBytes(data[2*assetEncodedLen+1:])
	if err != nil {
		return PoolKey{}, err
	}
	return PoolKey{Asset0: a0, Asset1: a1, Kind: kind, Settings: settings}, nil
}

// ID computes the content hash of the normalized key.
func (pk PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(pk.ToBytes())
	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// SwapStep is one hop of a multi-hop swap route: the pool to traverse,
// the minimum acceptable output for this hop, and the remaining chain.
// Message-local; never persisted.
type SwapStep struct {
	Pool   common.Address
	MinOut *big.Int
	Next   *SwapStep
}

// Errors - protocol taxonomy
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDeadlineExceeded      = errors.New("deadline exceeded")
	ErrSlippage              = errors.New("output below minimum")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrAlreadyInitialized    = errors.New("pool already initialized")
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrUnknownRouteTarget    = errors.New("unknown route target")
	ErrUnsupportedAmm        = errors.New("unsupported amm kind")
	ErrUnsupportedAsset      = errors.New("unsupported asset")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrSameAsset             = errors.New("cannot pair an asset with itself")
	ErrVaultInactive         = errors.New("vault not active")
	ErrVaultExists           = errors.New("vault already exists")
	ErrInvalidFee            = errors.New("invalid fee")
)

// Fee bounds (basis points)
const (
	FeeDenominator uint64 = 10_000
	MaxTradeFee    uint64 = 1_000 // 10% combined cap
)

// Zero is the shared zero big integer; never mutated.
var Zero = big.NewInt(0)
