/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keystore persists password-wrapped private key records in a local
// key-value store, keyed by the (user, organization) composite id.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orgvault/orgvault-go/pkg/common/log"
	spi "github.com/orgvault/orgvault-go/spi/storage"
)

const (
	// StoreName is the name of the underlying key-value store.
	StoreName = "keyrecords"

	userIDTagName = "userID"
)

var logger = log.New("orgvault/keystore")

// ErrNotFound is returned when no record exists under the requested id.
// Absence is a normal outcome, distinct from a StorageError.
var ErrNotFound = errors.New("key record not found")

// StorageError indicates the underlying store failed. The wrapped provider
// error is preserved for the cause chain.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("key store %s: %s", e.Op, e.Err.Error())
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store persists encrypted private key records.
type Store struct {
	store spi.Store
}

// Open opens the key record store on the given provider and configures the
// userID tag index used by the bulk operations.
func Open(provider spi.Provider) (*Store, error) {
	store, err := provider.OpenStore(StoreName)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	err = provider.SetStoreConfig(StoreName, spi.StoreConfiguration{TagNames: []string{userIDTagName}})
	if err != nil {
		return nil, &StorageError{Op: "configure", Err: err}
	}

	return &Store{store: store}, nil
}

// Put upserts the record under record.ID, overwriting any existing record with
// the same id.
func (s *Store) Put(record *Record) error {
	if record == nil || record.ID == "" {
		return &StorageError{Op: "put", Err: errors.New("record id is empty")}
	}

	value, err := json.Marshal(record)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	err = s.store.Put(record.ID, value, spi.Tag{Name: userIDTagName, Value: record.UserID})
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	return nil
}

// Get fetches the record stored under id. It returns ErrNotFound if no record
// exists; any other failure is a StorageError.
func (s *Store) Get(id string) (*Record, error) {
	value, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, spi.ErrDataNotFound) {
			return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
		}

		return nil, &StorageError{Op: "get", Err: err}
	}

	record := &Record{}
	if err := json.Unmarshal(value, record); err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}

	return record, nil
}

// Delete removes the record stored under id. Deleting a missing record is a
// no-op.
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}

	return nil
}

// Rekey moves the record stored under oldID to newID as a single atomic batch.
// It is used when a registration-time placeholder user id is replaced by the
// server-confirmed one. If no record exists under oldID the store is left
// unchanged and ErrNotFound is returned.
func (s *Store) Rekey(oldID, newID string) error {
	record, err := s.Get(oldID)
	if err != nil {
		return fmt.Errorf("rekey %q: %w", oldID, err)
	}

	record.ID = newID

	value, err := json.Marshal(record)
	if err != nil {
		return &StorageError{Op: "rekey", Err: err}
	}

	err = s.store.Batch([]spi.Operation{
		{Key: newID, Value: value, Tags: []spi.Tag{{Name: userIDTagName, Value: record.UserID}}},
		{Key: oldID, Value: nil},
	})
	if err != nil {
		return &StorageError{Op: "rekey", Err: err}
	}

	logger.Debugf("rekeyed key record %q to %q", oldID, newID)

	return nil
}

// ListByUser returns all records whose embedded user id matches userID, across
// organizations.
func (s *Store) ListByUser(userID string) ([]*Record, error) {
	iterator, err := s.store.Query(userIDTagName + ":" + userID)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}

	defer func() {
		if errClose := iterator.Close(); errClose != nil {
			logger.Errorf("failed to close key record iterator: %s", errClose.Error())
		}
	}()

	var records []*Record

	for {
		more, err := iterator.Next()
		if err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}

		if !more {
			break
		}

		value, err := iterator.Value()
		if err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}

		record := &Record{}
		if err := json.Unmarshal(value, record); err != nil {
			return nil, &StorageError{Op: "decode", Err: err}
		}

		records = append(records, record)
	}

	return records, nil
}

// ClearAllForUser deletes every record belonging to userID as a single batch.
// Used for full account key purges (logout everywhere, account deletion).
func (s *Store) ClearAllForUser(userID string) error {
	records, err := s.ListByUser(userID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	operations := make([]spi.Operation, len(records))
	for i, record := range records {
		operations[i] = spi.Operation{Key: record.ID, Value: nil}
	}

	if err := s.store.Batch(operations); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}

	logger.Debugf("cleared %d key record(s) for user %q", len(records), userID)

	return nil
}
