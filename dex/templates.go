// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// ContractKind identifies a deployable contract template.
type ContractKind uint8

const (
	KindFactory ContractKind = iota
	KindVault
	KindPoolProduct
	KindPoolStable
	KindDepository
	KindPoolCreator

	kindCount
)

func (k ContractKind) String() string {
	switch k {
	case KindFactory:
		return "factory"
	case KindVault:
		return "vault"
	case KindPoolProduct:
		return "pool_constant_product"
	case KindPoolStable:
		return "pool_curve_fi_stable"
	case KindDepository:
		return "liquidity_depository"
	case KindPoolCreator:
		return "pool_creator"
	default:
		return "unknown"
	}
}

// poolKindFor maps a curve strategy to its contract template.
func poolKindFor(amm AmmKind) ContractKind {
	if amm == CurveFiStable {
		return KindPoolStable
	}
	return KindPoolProduct
}

// ZeroAddress receives permanently locked LP dust on pool bootstrap.
var ZeroAddress = common.Address{}

// CodeTemplates is the authoritative set of code hashes the factory
// derives addresses from. Replacing a hash changes every address derived
// for that kind from then on; existing actors keep their addresses.
type CodeTemplates struct {
	mu     sync.RWMutex
	hashes [kindCount]common.Hash
}

// DefaultCodeTemplates returns a template set whose hashes are derived
// from the kind names. Production deployments replace these with the
// hashes of the deployed code.
func DefaultCodeTemplates() *CodeTemplates {
	ct := &CodeTemplates{}
	for k := ContractKind(0); k < kindCount; k++ {
		h := blake3.New()
		h.Write([]byte("amm/code/"))
		h.Write([]byte(k.String()))
		h.Digest().Read(ct.hashes[k][:])
	}
	return ct
}

// Hash returns the code hash for a kind.
func (ct *CodeTemplates) Hash(kind ContractKind) common.Hash {
	if kind >= kindCount {
		return common.Hash{}
	}
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.hashes[kind]
}

// Set replaces the code hash for a kind.
func (ct *CodeTemplates) Set(kind ContractKind, code common.Hash) error {
	if kind >= kindCount {
		return fmt.Errorf("%w: kind %d", ErrUnsupportedAmm, kind)
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.hashes[kind] = code
	return nil
}

// Clone returns a copy of the template set.
func (ct *CodeTemplates) Clone() *CodeTemplates {
	out := &CodeTemplates{}
	ct.mu.RLock()
	out.hashes = ct.hashes
	ct.mu.RUnlock()
	return out
}

// Kinds returns all contract kinds in deterministic order.
func (ct *CodeTemplates) Kinds() []ContractKind {
	kinds := make([]ContractKind, 0, kindCount)
	for k := ContractKind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DeriveAddress computes the content address of an actor: the first 20
// bytes of blake3(codeHash || initData). The same (template, key) pair
// always yields the same address; distinct init data cannot collide.
func DeriveAddress(code common.Hash, initData []byte) common.Address {
	h := blake3.New()
	h.Write(code[:])
	h.Write(initData)
	var out [32]byte
	h.Digest().Read(out[:])
	return common.BytesToAddress(out[:common.AddressLength])
}

// Init data layouts. Each layout serializes the actor's logical key; the
// factory address is always bound in so two factories never share actors.

func vaultInitData(factory common.Address, asset Asset) []byte {
	data := append([]byte{}, factory.Bytes()...)
	return append(data, asset.ToBytes()...)
}

func poolInitData(factory common.Address, key PoolKey) []byte {
	data := append([]byte{}, factory.Bytes()...)
	return append(data, key.ToBytes()...)
}

func escrowInitData(factory, owner common.Address, key PoolKey) []byte {
	data := append([]byte{}, factory.Bytes()...)
	data = append(data, owner.Bytes()...)
	return append(data, key.ToBytes()...)
}
