/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package leveldb provides a LevelDB-backed implementation of the storage SPI,
// used as the persistent store behind the encrypted key store.
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	spi "github.com/orgvault/orgvault-go/spi/storage"
)

const (
	tagMapKey      = "TagMap"
	storeConfigKey = "StoreConfig"

	invalidTagName               = `"%s" is an invalid tag name since it contains one or more ':' characters`
	invalidQueryExpressionFormat = `"%s" is not in a valid expression format. ` +
		"it must be in the following format: TagName:TagValue"
)

// tagMapping maps a tag name to the set of database keys carrying that tag.
type tagMapping map[string]map[string]struct{}

type dbEntry struct {
	Value []byte    `json:"value,omitempty"`
	Tags  []spi.Tag `json:"tags,omitempty"`
}

// Provider is a LevelDB implementation of the spi.Provider interface.
type Provider struct {
	dbPath string
	dbs    map[string]*store
	lock   sync.RWMutex
}

// NewProvider instantiates a Provider. Each store opened under it lives in its
// own LevelDB database beneath dbPath.
func NewProvider(dbPath string) *Provider {
	return &Provider{dbs: make(map[string]*store), dbPath: dbPath}
}

// OpenStore opens and returns a store for the given name space.
func (p *Provider) OpenStore(name string) (spi.Store, error) {
	if name == "" {
		return nil, errors.New("store name cannot be blank")
	}

	name = strings.ToLower(name)

	p.lock.Lock()
	defer p.lock.Unlock()

	if openStore, ok := p.dbs[name]; ok {
		return openStore, nil
	}

	db, err := leveldb.OpenFile(filepath.Join(p.dbPath, name), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb store %q: %w", name, err)
	}

	newStore := &store{db: db}
	p.dbs[name] = newStore

	return newStore, nil
}

// SetStoreConfig saves the store configuration for later retrieval. LevelDB
// needs no index creation; the tag map is maintained on every write.
func (p *Provider) SetStoreConfig(name string, config spi.StoreConfiguration) error {
	for _, tagName := range config.TagNames {
		if strings.Contains(tagName, ":") {
			return fmt.Errorf(invalidTagName, tagName)
		}
	}

	p.lock.RLock()
	openStore, ok := p.dbs[strings.ToLower(name)]
	p.lock.RUnlock()

	if !ok {
		return spi.ErrStoreNotFound
	}

	configBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal store configuration: %w", err)
	}

	if err := openStore.db.Put([]byte(storeConfigKey), configBytes, nil); err != nil {
		return fmt.Errorf("failed to put store configuration: %w", err)
	}

	return nil
}

// GetStoreConfig returns the current store configuration.
func (p *Provider) GetStoreConfig(name string) (spi.StoreConfiguration, error) {
	p.lock.RLock()
	openStore, ok := p.dbs[strings.ToLower(name)]
	p.lock.RUnlock()

	if !ok {
		return spi.StoreConfiguration{}, spi.ErrStoreNotFound
	}

	configBytes, err := openStore.db.Get([]byte(storeConfigKey), nil)
	if err != nil {
		return spi.StoreConfiguration{}, fmt.Errorf(`failed to get store configuration for "%s": %w`, name, err)
	}

	var config spi.StoreConfiguration

	if err := json.Unmarshal(configBytes, &config); err != nil {
		return spi.StoreConfiguration{}, fmt.Errorf("failed to unmarshal store configuration: %w", err)
	}

	return config, nil
}

// Close closes all stores created under this store provider.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	for name, openStore := range p.dbs {
		if err := openStore.Close(); err != nil {
			return fmt.Errorf("failed to close store %q: %w", name, err)
		}
	}

	p.dbs = make(map[string]*store)

	return nil
}

type store struct {
	db   *leveldb.DB
	lock sync.Mutex
}

// Put stores the key + value pair along with the (optional) tags. The entry
// write and the tag map update go into one LevelDB batch.
func (s *store) Put(key string, value []byte, tags ...spi.Tag) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if value == nil {
		return errors.New("value cannot be nil")
	}

	for _, tag := range tags {
		if strings.Contains(tag.Name, ":") || strings.Contains(tag.Value, ":") {
			return fmt.Errorf(invalidTagName, tag.Name)
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writeBatch([]spi.Operation{{Key: key, Value: value, Tags: tags}})
}

// Get fetches the value associated with the given key.
func (s *store) Get(key string) ([]byte, error) {
	entry, err := s.getEntry(key)
	if err != nil {
		return nil, err
	}

	return entry.Value, nil
}

// GetTags fetches all tags associated with the given key.
func (s *store) GetTags(key string) ([]spi.Tag, error) {
	entry, err := s.getEntry(key)
	if err != nil {
		return nil, err
	}

	return entry.Tags, nil
}

// Query returns all data that satisfies the expression. Expression format:
// TagName:TagValue.
func (s *store) Query(expression string) (spi.Iterator, error) {
	if expression == "" {
		return nil, fmt.Errorf(invalidQueryExpressionFormat, expression)
	}

	var tagName, tagValue string

	switch split := strings.Split(expression, ":"); len(split) {
	case 1:
		tagName = split[0]
	case 2: //nolint:gomnd
		tagName = split[0]
		tagValue = split[1]
	default:
		return nil, fmt.Errorf(invalidQueryExpressionFormat, expression)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	tagMap, err := s.getTagMap()
	if err != nil {
		return nil, err
	}

	var (
		keys    []string
		entries []dbEntry
	)

	for key := range tagMap[tagName] {
		entry, err := s.getEntry(key)
		if err != nil {
			if errors.Is(err, spi.ErrDataNotFound) {
				continue // tag map can reference a key deleted mid-query
			}

			return nil, err
		}

		for _, tag := range entry.Tags {
			if tag.Name == tagName && (tagValue == "" || tag.Value == tagValue) {
				keys = append(keys, key)
				entries = append(entries, *entry)

				break
			}
		}
	}

	return &iterator{keys: keys, entries: entries, currentIndex: -1}, nil
}

// Delete deletes the key + value pair (and all tags) associated with key.
func (s *store) Delete(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writeBatch([]spi.Operation{{Key: key, Value: nil}})
}

// Batch performs multiple Put and/or Delete operations as one LevelDB write,
// so either all of them or none of them are applied.
func (s *store) Batch(operations []spi.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	for _, operation := range operations {
		if operation.Key == "" {
			return errors.New("key cannot be empty")
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writeBatch(operations)
}

// Close closes this store's underlying database.
func (s *store) Close() error {
	err := s.db.Close()
	if err != nil && !errors.Is(err, leveldb.ErrClosed) {
		return fmt.Errorf("failed to close leveldb: %w", err)
	}

	return nil
}

// writeBatch applies operations plus the resulting tag map update in a single
// LevelDB batch. Callers must hold s.lock.
func (s *store) writeBatch(operations []spi.Operation) error {
	tagMap, err := s.getTagMap()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)

	for _, operation := range operations {
		for tagName := range tagMap {
			delete(tagMap[tagName], operation.Key)
		}

		if operation.Value == nil {
			batch.Delete([]byte(operation.Key))
			continue
		}

		entryBytes, err := json.Marshal(dbEntry{Value: operation.Value, Tags: operation.Tags})
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}

		batch.Put([]byte(operation.Key), entryBytes)

		for _, tag := range operation.Tags {
			if tagMap[tag.Name] == nil {
				tagMap[tag.Name] = make(map[string]struct{})
			}

			tagMap[tag.Name][operation.Key] = struct{}{}
		}
	}

	tagMapBytes, err := json.Marshal(tagMap)
	if err != nil {
		return fmt.Errorf("failed to marshal tag map: %w", err)
	}

	batch.Put([]byte(tagMapKey), tagMapBytes)

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}

	return nil
}

func (s *store) getEntry(key string) (*dbEntry, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	entryBytes, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, spi.ErrDataNotFound
		}

		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	entry := &dbEntry{}
	if err := json.Unmarshal(entryBytes, entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return entry, nil
}

func (s *store) getTagMap() (tagMapping, error) {
	tagMapBytes, err := s.db.Get([]byte(tagMapKey), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return make(tagMapping), nil
		}

		return nil, fmt.Errorf("failed to get tag map: %w", err)
	}

	var tagMap tagMapping
	if err := json.Unmarshal(tagMapBytes, &tagMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tag map: %w", err)
	}

	return tagMap, nil
}

// iterator iterates over a snapshot of query results.
type iterator struct {
	currentIndex int
	keys         []string
	entries      []dbEntry
}

func (i *iterator) Next() (bool, error) {
	i.currentIndex++

	return i.currentIndex < len(i.entries), nil
}

func (i *iterator) Key() (string, error) {
	if i.currentIndex < 0 || i.currentIndex >= len(i.entries) {
		return "", errors.New("iterator is exhausted")
	}

	return i.keys[i.currentIndex], nil
}

func (i *iterator) Value() ([]byte, error) {
	if i.currentIndex < 0 || i.currentIndex >= len(i.entries) {
		return nil, errors.New("iterator is exhausted")
	}

	return i.entries[i.currentIndex].Value, nil
}

func (i *iterator) Tags() ([]spi.Tag, error) {
	if i.currentIndex < 0 || i.currentIndex >= len(i.entries) {
		return nil, errors.New("iterator is exhausted")
	}

	return i.entries[i.currentIndex].Tags, nil
}

func (i *iterator) Close() error {
	return nil
}
