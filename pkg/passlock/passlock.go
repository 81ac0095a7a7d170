/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package passlock wraps and unwraps private key material under a key derived
// from a user password. The underlying golang.org/x/crypto/pbkdf2 package
// implements IETF RFC 8018's PBKDF2 specification found at:
// https://tools.ietf.org/html/rfc8018#section-5.2. Similarly the NIST document
// 800-132 section 5 provides PBKDF recommendations.
package passlock

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/google/tink/go/subtle/random"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size in bytes of the random salt generated for each Wrap call.
	SaltSize = 16

	// NonceSize is the size in bytes of the AES-GCM nonce generated for each Wrap call.
	NonceSize = 12

	// Iterations is the PBKDF2 iteration count.
	Iterations = 100000

	derivedKeySize = sha256.Size
)

// ErrAuthentication is returned by Unwrap when the authentication tag check
// fails. A wrong password and a corrupted record are indistinguishable here;
// both surface as this error.
var ErrAuthentication = fmt.Errorf("authentication failure: wrong password or corrupted key record")

// WrappedKey is the result of wrapping private key bytes under a password.
// Salt and IV are fresh random values generated by Wrap; they are required,
// together with the password, to unwrap Ciphertext again.
type WrappedKey struct {
	Ciphertext []byte
	Salt       []byte
	IV         []byte
}

// Service performs password-based wrapping of key material.
type Service struct {
	randReader io.Reader
}

// Option configures a Service.
type Option func(*Service)

// WithRandomSource replaces the default secure random source with r.
// Intended for tests; production callers should rely on the default.
func WithRandomSource(r io.Reader) Option {
	return func(s *Service) {
		s.randReader = r
	}
}

// New returns a password-based key wrapping service.
func New(opts ...Option) *Service {
	s := &Service{}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DeriveKey expands password and salt into an AES-256 key using PBKDF2-SHA256.
// The result is deterministic for identical inputs: the salt is the only source
// of randomness, so callers must generate a fresh salt per wrap operation and
// persist it alongside the ciphertext. Any password is accepted, including the
// empty one; password policy belongs to the caller.
func (s *Service) DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("derive key: salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	return pbkdf2.Key([]byte(password), salt, Iterations, derivedKeySize, sha256.New), nil
}

// Wrap encrypts keyBytes under a key derived from password, using a fresh
// random salt and nonce.
func (s *Service) Wrap(keyBytes []byte, password string) (*WrappedKey, error) {
	salt, err := s.randomBytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	nonce, err := s.randomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	derivedKey, err := s.DeriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	aead, err := createAESCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	return &WrappedKey{
		Ciphertext: aead.Seal(nil, nonce, keyBytes, nil),
		Salt:       salt,
		IV:         nonce,
	}, nil
}

// Unwrap re-derives the wrapping key from wk.Salt and password and decrypts
// wk.Ciphertext. It returns ErrAuthentication if the GCM tag check fails.
func (s *Service) Unwrap(wk *WrappedKey, password string) ([]byte, error) {
	if wk == nil {
		return nil, fmt.Errorf("unwrap key: wrapped key is nil")
	}

	if len(wk.IV) != NonceSize {
		return nil, fmt.Errorf("unwrap key: iv must be %d bytes, got %d", NonceSize, len(wk.IV))
	}

	derivedKey, err := s.DeriveKey(password, wk.Salt)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}

	aead, err := createAESCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}

	keyBytes, err := aead.Open(nil, wk.IV, wk.Ciphertext, nil)
	if err != nil {
		// the tag check cannot distinguish a wrong password from corrupted data
		return nil, ErrAuthentication
	}

	return keyBytes, nil
}

func (s *Service) randomBytes(size int) ([]byte, error) {
	if s.randReader == nil {
		return random.GetRandomBytes(uint32(size)), nil
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(s.randReader, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}

	return b, nil
}

func createAESCipher(key []byte) (cipher.AEAD, error) {
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(cipherBlock)
}
