/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keysession keeps unlocked private keys in memory for a bounded time.
// A successful password unwrap yields an opaque session token; the key is
// usable through the token until it is closed or the TTL lapses.
package keysession

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"

	"github.com/orgvault/orgvault-go/pkg/keypair"
	"github.com/orgvault/orgvault-go/pkg/keystore"
	"github.com/orgvault/orgvault-go/pkg/passlock"
)

// DefaultTTL is how long an unlocked key stays usable without being closed.
const DefaultTTL = 15 * time.Minute

// ErrSessionExpired is returned by Get when the token is unknown, closed or
// past its TTL. All three are indistinguishable on purpose.
var ErrSessionExpired = errors.New("session expired or not found")

// Session is an unlocked private key bound to the (user, organization) pair it
// was stored under.
type Session struct {
	UserID           string
	OrganizationName string
	PrivateKey       *rsa.PrivateKey
}

// Manager unlocks stored key records and caches the resulting sessions.
// The underlying gcache is thread safe, no need of locks.
type Manager struct {
	store  *keystore.Store
	lock   *passlock.Service
	keys   *keypair.Manager
	tokens gcache.Cache
	ttl    time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// NewManager returns a session manager over the given key store.
func NewManager(store *keystore.Store, lock *passlock.Service, keys *keypair.Manager, opts ...Option) *Manager {
	manager := &Manager{
		store:  store,
		lock:   lock,
		keys:   keys,
		tokens: gcache.New(0).Build(),
		ttl:    DefaultTTL,
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// Open loads the wrapped key record for (userID, organizationName), unwraps it
// under password and caches the imported private key. It returns the session
// token. A wrong password surfaces as passlock.ErrAuthentication; a missing
// record as keystore.ErrNotFound.
func (m *Manager) Open(userID, organizationName, password string) (string, error) {
	record, err := m.store.Get(keystore.CompositeID(userID, organizationName))
	if err != nil {
		return "", fmt.Errorf("load key record: %w", err)
	}

	privateKeyBytes, err := m.lock.Unwrap(&passlock.WrappedKey{
		Ciphertext: record.Encrypted,
		Salt:       record.Salt,
		IV:         record.IV,
	}, password)
	if err != nil {
		return "", fmt.Errorf("unlock key record: %w", err)
	}

	privateKey, err := m.keys.ImportPrivateKeyFromBytes(privateKeyBytes)
	if err != nil {
		return "", fmt.Errorf("import unlocked key: %w", err)
	}

	token := uuid.New().String()

	err = m.tokens.SetWithExpire(token, &Session{
		UserID:           userID,
		OrganizationName: organizationName,
		PrivateKey:       privateKey,
	}, m.ttl)
	if err != nil {
		return "", fmt.Errorf("cache session: %w", err)
	}

	return token, nil
}

// Get returns the session for token, or ErrSessionExpired.
func (m *Manager) Get(token string) (*Session, error) {
	value, err := m.tokens.Get(token)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return nil, ErrSessionExpired
		}

		return nil, fmt.Errorf("get session: %w", err)
	}

	session, ok := value.(*Session)
	if !ok {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Close drops the session for token. Closing an unknown token is a no-op.
func (m *Manager) Close(token string) {
	m.tokens.Remove(token)
}

// CloseAll drops every open session.
func (m *Manager) CloseAll() {
	m.tokens.Purge()
}
