/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package passlock

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/google/tink/go/subtle/random"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	svc := New()

	keyBytes := random.GetRandomBytes(1192) // typical PKCS8 RSA-2048 private key size
	goodPassphrase := "somepassphrase"

	wk, err := svc.Wrap(keyBytes, goodPassphrase)
	require.NoError(t, err)
	require.NotEmpty(t, wk.Ciphertext)
	require.Len(t, wk.Salt, SaltSize)
	require.Len(t, wk.IV, NonceSize)

	unwrapped, err := svc.Unwrap(wk, goodPassphrase)
	require.NoError(t, err)
	require.Equal(t, keyBytes, unwrapped)
}

func TestUnwrapWrongPassword(t *testing.T) {
	svc := New()

	wk, err := svc.Wrap([]byte("top secret key bytes"), "correct horse")
	require.NoError(t, err)

	unwrapped, err := svc.Unwrap(wk, "battery staple")
	require.ErrorIs(t, err, ErrAuthentication)
	require.Empty(t, unwrapped)
}

func TestUnwrapCorruptedRecord(t *testing.T) {
	svc := New()
	passphrase := "somepassphrase"

	wk, err := svc.Wrap([]byte("top secret key bytes"), passphrase)
	require.NoError(t, err)

	// corruption and a wrong password must be indistinguishable: both fail the
	// GCM tag check and surface as ErrAuthentication
	corrupted := &WrappedKey{
		Ciphertext: append([]byte{}, wk.Ciphertext...),
		Salt:       wk.Salt,
		IV:         wk.IV,
	}
	corrupted.Ciphertext[0] ^= 0xff

	unwrapped, err := svc.Unwrap(corrupted, passphrase)
	require.ErrorIs(t, err, ErrAuthentication)
	require.Empty(t, unwrapped)

	// corrupting the salt derives a different key, same failure mode
	corruptSalt := &WrappedKey{
		Ciphertext: wk.Ciphertext,
		Salt:       random.GetRandomBytes(SaltSize),
		IV:         wk.IV,
	}

	_, err = svc.Unwrap(corruptSalt, passphrase)
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	svc := New()

	salt := random.GetRandomBytes(SaltSize)

	key1, err := svc.DeriveKey("somepassphrase", salt)
	require.NoError(t, err)

	key2, err := svc.DeriveKey("somepassphrase", salt)
	require.NoError(t, err)
	require.Equal(t, key1, key2)

	key3, err := svc.DeriveKey("somepassphrase", random.GetRandomBytes(SaltSize))
	require.NoError(t, err)
	require.NotEqual(t, key1, key3)
}

func TestDeriveKeyValidation(t *testing.T) {
	svc := New()

	_, err := svc.DeriveKey("somepassphrase", []byte("short salt"))
	require.Error(t, err)
}

func TestWrapUnwrapEmptyPassword(t *testing.T) {
	// the round trip holds for any password, the empty one included
	svc := New()

	keyBytes := random.GetRandomBytes(64)

	wk, err := svc.Wrap(keyBytes, "")
	require.NoError(t, err)

	unwrapped, err := svc.Unwrap(wk, "")
	require.NoError(t, err)
	require.Equal(t, keyBytes, unwrapped)

	// a non-empty password still fails against an empty-password wrap
	_, err = svc.Unwrap(wk, "somepassphrase")
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestWrapFreshSaltAndNoncePerCall(t *testing.T) {
	svc := New()

	wk1, err := svc.Wrap([]byte("key bytes"), "somepassphrase")
	require.NoError(t, err)

	wk2, err := svc.Wrap([]byte("key bytes"), "somepassphrase")
	require.NoError(t, err)

	require.NotEqual(t, wk1.Salt, wk2.Salt)
	require.NotEqual(t, wk1.IV, wk2.IV)
	require.NotEqual(t, wk1.Ciphertext, wk2.Ciphertext)
}

func TestWithRandomSource(t *testing.T) {
	// a fixed random source makes Wrap fully deterministic
	fixed := bytes.Repeat([]byte{7}, SaltSize+NonceSize)

	svc1 := New(WithRandomSource(bytes.NewReader(fixed)))
	svc2 := New(WithRandomSource(bytes.NewReader(fixed)))

	wk1, err := svc1.Wrap([]byte("key bytes"), "somepassphrase")
	require.NoError(t, err)

	wk2, err := svc2.Wrap([]byte("key bytes"), "somepassphrase")
	require.NoError(t, err)

	require.Equal(t, wk1, wk2)

	// an exhausted random source fails the wrap, not the unwrap
	svcEmpty := New(WithRandomSource(bytes.NewReader(nil)))

	_, err = svcEmpty.Wrap([]byte("key bytes"), "somepassphrase")
	require.Error(t, err)

	unwrapped, err := New(WithRandomSource(rand.Reader)).Unwrap(wk1, "somepassphrase")
	require.NoError(t, err)
	require.Equal(t, []byte("key bytes"), unwrapped)
}

func TestUnwrapValidation(t *testing.T) {
	svc := New()

	_, err := svc.Unwrap(nil, "somepassphrase")
	require.Error(t, err)

	_, err = svc.Unwrap(&WrappedKey{Ciphertext: []byte{1}, Salt: random.GetRandomBytes(SaltSize), IV: []byte{1, 2}}, "somepassphrase")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAuthentication)
}
