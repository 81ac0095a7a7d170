/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keysession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orgvault/orgvault-go/pkg/keypair"
	"github.com/orgvault/orgvault-go/pkg/keystore"
	"github.com/orgvault/orgvault-go/pkg/passlock"
	"github.com/orgvault/orgvault-go/pkg/storage/mem"
)

const testPassword = "Tr0ub4dor&3" //nolint:gosec

func storeTestKey(t *testing.T, store *keystore.Store, userID, org string) *keypair.KeyPair {
	t.Helper()

	keyPair, err := keypair.New().Generate()
	require.NoError(t, err)

	privateKeyBytes, err := keypair.New().ExportPrivateKeyBytes(keyPair.PrivateKey)
	require.NoError(t, err)

	wrapped, err := passlock.New().Wrap(privateKeyBytes, testPassword)
	require.NoError(t, err)

	require.NoError(t, store.Put(&keystore.Record{
		ID:               keystore.CompositeID(userID, org),
		Encrypted:        keystore.ByteSeq(wrapped.Ciphertext),
		Salt:             keystore.ByteSeq(wrapped.Salt),
		IV:               keystore.ByteSeq(wrapped.IV),
		Timestamp:        time.Now().UTC(),
		OrganizationName: org,
		UserID:           userID,
	}))

	return keyPair
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *keystore.Store) {
	t.Helper()

	store, err := keystore.Open(mem.NewProvider())
	require.NoError(t, err)

	return NewManager(store, passlock.New(), keypair.New(), opts...), store
}

func TestOpenAndGet(t *testing.T) {
	manager, store := newTestManager(t)

	keyPair := storeTestKey(t, store, "u1", "acme")

	token, err := manager.Open("u1", "acme", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	session, err := manager.Get(token)
	require.NoError(t, err)
	require.Equal(t, "u1", session.UserID)
	require.Equal(t, "acme", session.OrganizationName)
	require.True(t, session.PrivateKey.Equal(keyPair.PrivateKey))

	t.Run("Tokens are unique per open", func(t *testing.T) {
		token2, err := manager.Open("u1", "acme", testPassword)
		require.NoError(t, err)
		require.NotEqual(t, token, token2)
	})
}

func TestOpenWrongPassword(t *testing.T) {
	manager, store := newTestManager(t)

	storeTestKey(t, store, "u1", "acme")

	token, err := manager.Open("u1", "acme", "not the password")
	require.ErrorIs(t, err, passlock.ErrAuthentication)
	require.Empty(t, token)
}

func TestOpenMissingRecord(t *testing.T) {
	manager, _ := newTestManager(t)

	token, err := manager.Open("nobody", "acme", testPassword)
	require.ErrorIs(t, err, keystore.ErrNotFound)
	require.Empty(t, token)
}

func TestGetUnknownToken(t *testing.T) {
	manager, _ := newTestManager(t)

	session, err := manager.Get("bogus token")
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Nil(t, session)
}

func TestSessionTTL(t *testing.T) {
	manager, store := newTestManager(t, WithSessionTTL(50*time.Millisecond))

	storeTestKey(t, store, "u1", "acme")

	token, err := manager.Open("u1", "acme", testPassword)
	require.NoError(t, err)

	_, err = manager.Get(token)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = manager.Get(token)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestClose(t *testing.T) {
	manager, store := newTestManager(t)

	storeTestKey(t, store, "u1", "acme")

	token, err := manager.Open("u1", "acme", testPassword)
	require.NoError(t, err)

	manager.Close(token)

	_, err = manager.Get(token)
	require.ErrorIs(t, err, ErrSessionExpired)

	// closing again is a no-op
	manager.Close(token)
}

func TestCloseAll(t *testing.T) {
	manager, store := newTestManager(t)

	storeTestKey(t, store, "u1", "acme")
	storeTestKey(t, store, "u2", "acme")

	token1, err := manager.Open("u1", "acme", testPassword)
	require.NoError(t, err)

	token2, err := manager.Open("u2", "acme", testPassword)
	require.NoError(t, err)

	manager.CloseAll()

	_, err = manager.Get(token1)
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = manager.Get(token2)
	require.ErrorIs(t, err, ErrSessionExpired)
}
