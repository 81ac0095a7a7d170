/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"errors"
)

var (
	// ErrStoreNotFound is returned when a store is not found.
	ErrStoreNotFound = errors.New("store not found")
	// ErrDataNotFound is returned when data is not found.
	ErrDataNotFound = errors.New("data not found")
)

// StoreConfiguration represents the configuration of a store. It is used for
// creating indexes in underlying storage databases.
type StoreConfiguration struct {
	// TagNames is a list of Tag names to create indexes on.
	// Tag names cannot contain any ':' characters.
	TagNames []string `json:"tagNames,omitempty"`
}

// Tag represents a Name + Value pair that can be associated with a key + value pair for querying later.
// Tag names are static values a store is configured with; tag values are dynamic.
// Neither may contain ':' characters.
type Tag struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Operation represents a single Put or Delete to be performed in the Batch method.
// A nil Value indicates a delete operation.
type Operation struct {
	Key   string `json:"key,omitempty"`
	Value []byte `json:"value,omitempty"`
	Tags  []Tag  `json:"tags,omitempty"`
}

// Provider represents a storage provider.
type Provider interface {
	// OpenStore opens a Store with the given name and returns it.
	// Depending on the store implementation, this may or may not create an underlying database.
	// Store names are not case-sensitive. If name is blank, then an error will be returned.
	OpenStore(name string) (Store, error)

	// SetStoreConfig sets the configuration on a Store. The underlying database uses this
	// to create indexes so that Store.Query calls against the configured tag names work.
	// OpenStore must be called first, otherwise an error wrapping ErrStoreNotFound is returned.
	SetStoreConfig(name string, config StoreConfiguration) error

	// GetStoreConfig gets the current Store configuration.
	// If the store cannot be found, then an error wrapping ErrStoreNotFound is returned.
	GetStoreConfig(name string) (StoreConfiguration, error)

	// Close closes all open Stores in this Provider.
	// For persistent Store implementations, this does not delete any data in the underlying databases.
	Close() error
}

// Store represents a storage database.
type Store interface {
	// Put stores the key + value pair along with the (optional) tags. If the key already exists in the
	// database, then the value and tags will be overwritten silently.
	// If key is empty or value is nil, then an error will be returned.
	Put(key string, value []byte, tags ...Tag) error

	// Get fetches the value associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	// If key is empty, then an error will be returned.
	Get(key string) ([]byte, error)

	// GetTags fetches all tags associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	GetTags(key string) ([]Tag, error)

	// Query returns all data that satisfies the expression. Expression format: TagName:TagValue.
	// If TagValue is not provided, then all data associated with the TagName will be returned,
	// regardless of tag value.
	Query(expression string) (Iterator, error)

	// Delete deletes the key + value pair (and all tags) associated with key.
	// Deleting a key that does not exist is not an error.
	// If key is empty, then an error will be returned.
	Delete(key string) error

	// Batch performs multiple Put and/or Delete operations in order as a single unit.
	// If any of the given keys are empty, or the operations slice is empty or nil,
	// then an error will be returned and nothing is written.
	Batch(operations []Operation) error

	// Close closes this store object, freeing resources. For persistent store implementations,
	// this does not delete any data in the underlying databases.
	// Close can be called repeatedly on the same store multiple times without causing an error.
	Close() error
}

// Iterator allows for iteration over a collection of entries in a store.
type Iterator interface {
	// Next moves the pointer to the next entry in the iterator.
	// Note that it must be called before accessing the first entry.
	// It returns false if the iterator is exhausted - this is not considered an error.
	Next() (bool, error)

	// Key returns the key of the current entry.
	Key() (string, error)

	// Value returns the value of the current entry.
	Value() ([]byte, error)

	// Tags returns the tags associated with the key of the current entry.
	Tags() ([]Tag, error)

	// Close closes this iterator object, freeing resources.
	Close() error
}
