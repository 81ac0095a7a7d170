/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mem provides an in-memory implementation of the storage SPI.
package mem

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	spi "github.com/orgvault/orgvault-go/spi/storage"
)

const invalidTagName = `"%s" is an invalid tag name since it contains one or more ':' characters`

var (
	errEmptyKey                     = errors.New("key cannot be empty")
	errInvalidQueryExpressionFormat = errors.New("invalid expression format. " +
		"it must be in the following format: TagName:TagValue")
	errIteratorExhausted = errors.New("iterator is exhausted")
)

// Provider is an in-memory implementation of the spi.Provider interface.
type Provider struct {
	dbs  map[string]*memStore
	lock sync.RWMutex
}

// NewProvider instantiates a new in-memory storage Provider.
func NewProvider() *Provider {
	return &Provider{dbs: make(map[string]*memStore)}
}

// OpenStore opens a store with the given name and returns a handle.
// If the store has never been opened before, then it is created.
func (p *Provider) OpenStore(name string) (spi.Store, error) {
	if name == "" {
		return nil, errors.New("store name cannot be empty")
	}

	storeName := strings.ToLower(name)

	p.lock.Lock()
	defer p.lock.Unlock()

	store := p.dbs[storeName]
	if store == nil {
		store = &memStore{db: make(map[string]dbEntry)}
		p.dbs[storeName] = store
	}

	return store, nil
}

// SetStoreConfig sets the configuration on a store. The store must be created
// prior to calling this method, otherwise spi.ErrStoreNotFound is returned.
func (p *Provider) SetStoreConfig(name string, config spi.StoreConfiguration) error {
	for _, tagName := range config.TagNames {
		if strings.Contains(tagName, ":") {
			return fmt.Errorf(invalidTagName, tagName)
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	store := p.dbs[strings.ToLower(name)]
	if store == nil {
		return spi.ErrStoreNotFound
	}

	store.config = config

	return nil
}

// GetStoreConfig gets the current store configuration.
func (p *Provider) GetStoreConfig(name string) (spi.StoreConfiguration, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	store := p.dbs[strings.ToLower(name)]
	if store == nil {
		return spi.StoreConfiguration{}, spi.ErrStoreNotFound
	}

	return store.config, nil
}

// Close closes all stores created under this store provider.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.dbs = make(map[string]*memStore)

	return nil
}

type dbEntry struct {
	value []byte
	tags  []spi.Tag
}

type memStore struct {
	db     map[string]dbEntry
	config spi.StoreConfiguration
	sync.RWMutex
}

// Put stores the key + value pair along with the (optional) tags.
func (m *memStore) Put(key string, value []byte, tags ...spi.Tag) error {
	if key == "" {
		return errEmptyKey
	}

	if value == nil {
		return errors.New("value cannot be nil")
	}

	for _, tag := range tags {
		if strings.Contains(tag.Name, ":") || strings.Contains(tag.Value, ":") {
			return fmt.Errorf(invalidTagName, tag.Name)
		}
	}

	m.Lock()
	defer m.Unlock()

	m.db[key] = dbEntry{value: value, tags: tags}

	return nil
}

// Get fetches the value associated with the given key.
// If key cannot be found, then an error wrapping spi.ErrDataNotFound is returned.
func (m *memStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	m.RLock()
	defer m.RUnlock()

	entry, ok := m.db[key]
	if !ok {
		return nil, spi.ErrDataNotFound
	}

	return entry.value, nil
}

// GetTags fetches all tags associated with the given key.
func (m *memStore) GetTags(key string) ([]spi.Tag, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	m.RLock()
	defer m.RUnlock()

	entry, ok := m.db[key]
	if !ok {
		return nil, spi.ErrDataNotFound
	}

	return entry.tags, nil
}

// Query returns all data that satisfies the expression. Expression format:
// TagName:TagValue. If TagValue is not provided, then all data associated with
// the TagName is returned.
func (m *memStore) Query(expression string) (spi.Iterator, error) {
	if expression == "" {
		return nil, errInvalidQueryExpressionFormat
	}

	var tagName, tagValue string

	switch split := strings.Split(expression, ":"); len(split) {
	case 1:
		tagName = split[0]
	case 2: //nolint:gomnd
		tagName = split[0]
		tagValue = split[1]
	default:
		return nil, errInvalidQueryExpressionFormat
	}

	m.RLock()
	defer m.RUnlock()

	var (
		keys    []string
		entries []dbEntry
	)

	for key, entry := range m.db {
		for _, tag := range entry.tags {
			if tag.Name == tagName && (tagValue == "" || tag.Value == tagValue) {
				keys = append(keys, key)
				entries = append(entries, entry)

				break
			}
		}
	}

	return &memIterator{keys: keys, entries: entries}, nil
}

// Delete deletes the key + value pair (and all tags) associated with key.
func (m *memStore) Delete(key string) error {
	if key == "" {
		return errEmptyKey
	}

	m.Lock()
	defer m.Unlock()

	delete(m.db, key)

	return nil
}

// Batch performs multiple Put and/or Delete operations in order under a single
// lock. If any of the given keys are empty, then an error is returned and
// nothing is written.
func (m *memStore) Batch(operations []spi.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	for _, operation := range operations {
		if operation.Key == "" {
			return errEmptyKey
		}
	}

	m.Lock()
	defer m.Unlock()

	for _, operation := range operations {
		if operation.Value == nil {
			delete(m.db, operation.Key)
			continue
		}

		m.db[operation.Key] = dbEntry{value: operation.Value, tags: operation.Tags}
	}

	return nil
}

// Close is a no-op for the in-memory store; data is dropped when the provider closes.
func (m *memStore) Close() error {
	return nil
}

// memIterator represents a snapshot of some set of entries in a memStore.
type memIterator struct {
	currentIndex int
	started      bool
	keys         []string
	entries      []dbEntry
}

// Next moves the pointer to the next entry in the iterator.
// It returns false if the iterator is exhausted.
func (m *memIterator) Next() (bool, error) {
	if m.started {
		m.currentIndex++
	}

	m.started = true

	return m.currentIndex < len(m.entries), nil
}

// Key returns the key of the current entry.
func (m *memIterator) Key() (string, error) {
	if !m.started || m.currentIndex >= len(m.entries) {
		return "", errIteratorExhausted
	}

	return m.keys[m.currentIndex], nil
}

// Value returns the value of the current entry.
func (m *memIterator) Value() ([]byte, error) {
	if !m.started || m.currentIndex >= len(m.entries) {
		return nil, errIteratorExhausted
	}

	return m.entries[m.currentIndex].value, nil
}

// Tags returns the tags associated with the key of the current entry.
func (m *memIterator) Tags() ([]spi.Tag, error) {
	if !m.started || m.currentIndex >= len(m.entries) {
		return nil, errIteratorExhausted
	}

	return m.entries[m.currentIndex].tags, nil
}

// Close is a no-op, since there is nothing to close for a memIterator.
func (m *memIterator) Close() error {
	return nil
}
