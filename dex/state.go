// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Storage key prefixes
var (
	actorStatePrefix = []byte("acst")
	ledgerPrefix     = []byte("ledg")
)

// stateVersion tags every persisted actor record so a code upgrade can
// migrate old layouts.
const stateVersion byte = 1

// makeStorageKey creates a storage key from prefix and identifier.
func makeStorageKey(prefix []byte, id []byte) []byte {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key.Bytes()
}

// StateStore persists each actor's state as a single versioned record,
// written atomically after every processed message.
type StateStore struct {
	db database.Database
}

// NewStateStore wraps a database as the actor-state store.
func NewStateStore(db database.Database) *StateStore {
	return &StateStore{db: db}
}

// PutActor writes the versioned state record for an actor.
func (s *StateStore) PutActor(addr common.Address, payload []byte) error {
	record := make([]byte, 1+len(payload))
	record[0] = stateVersion
	copy(record[1:], payload)
	return s.db.Put(makeStorageKey(actorStatePrefix, addr.Bytes()), record)
}

// GetActor reads an actor's state record; (nil, nil) when absent.
func (s *StateStore) GetActor(addr common.Address) ([]byte, error) {
	record, err := s.db.Get(makeStorageKey(actorStatePrefix, addr.Bytes()))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(record) < 1 {
		return nil, fmt.Errorf("empty state record for %s", addr.Hex())
	}
	if record[0] != stateVersion {
		return nil, fmt.Errorf("unknown state record version %d for %s", record[0], addr.Hex())
	}
	return record[1:], nil
}

// DeleteActor removes an actor's state record (escrow self-destruct).
func (s *StateStore) DeleteActor(addr common.Address) error {
	err := s.db.Delete(makeStorageKey(actorStatePrefix, addr.Bytes()))
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return err
}

// PutBalance records a native ledger balance.
func (s *StateStore) PutBalance(addr common.Address, balance []byte) error {
	return s.db.Put(makeStorageKey(ledgerPrefix, addr.Bytes()), balance)
}

// GetBalance reads a native ledger balance; (nil, nil) when absent.
func (s *StateStore) GetBalance(addr common.Address) ([]byte, error) {
	b, err := s.db.Get(makeStorageKey(ledgerPrefix, addr.Bytes()))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return b, err
}

// snapshotter is implemented by actors whose state survives restarts.
type snapshotter interface {
	snapshot() []byte
}
