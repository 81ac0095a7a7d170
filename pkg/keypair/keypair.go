/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keypair generates and serializes the RSA-OAEP key pairs used for
// organization-scoped payload encryption. Public keys travel as SPKI PEM,
// private keys as PKCS8 bytes that are only ever handed to the password lock
// for wrapping.
package keypair

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
)

const (
	// KeySize is the RSA modulus size in bits.
	KeySize = 2048

	// KeyType identifies the scheme the pair is generated for.
	KeyType = "RSA-OAEP"

	publicKeyPEMType = "PUBLIC KEY"
)

// ErrKeyFormat is returned when key material cannot be parsed as PEM, SPKI or PKCS8.
var ErrKeyFormat = fmt.Errorf("malformed key material")

// KeyPair holds a generated RSA-OAEP pair. The private half must never be
// persisted or logged unwrapped.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// Manager generates, exports and imports RSA-OAEP key pairs.
type Manager struct {
	randReader io.Reader
}

// Option configures a Manager.
type Option func(*Manager)

// WithRandomSource replaces the default secure random source with r.
func WithRandomSource(r io.Reader) Option {
	return func(m *Manager) {
		m.randReader = r
	}
}

// New returns a key pair manager.
func New(opts ...Option) *Manager {
	m := &Manager{randReader: rand.Reader}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Generate produces a fresh RSA 2048-bit pair for OAEP use.
func (m *Manager) Generate() (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(m.randReader, KeySize)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	return &KeyPair{PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// ExportPublicKeyPEM serializes the public key as SPKI wrapped in a PEM block.
// The encoding is deterministic: exporting the same key twice yields
// byte-identical text, so Fingerprint over the result is stable.
func (m *Manager) ExportPublicKeyPEM(publicKey *rsa.PublicKey) (string, error) {
	spkiBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("export public key: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyPEMType,
		Bytes: spkiBytes,
	})

	return string(pemBytes), nil
}

// ExportPrivateKeyBytes serializes the private key as PKCS8. The result is
// meant to be wrapped immediately; it must never be persisted as-is.
func (m *Manager) ExportPrivateKeyBytes(privateKey *rsa.PrivateKey) ([]byte, error) {
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("export private key: %w", err)
	}

	return pkcs8Bytes, nil
}

// ImportPrivateKeyFromBytes parses PKCS8 private key bytes.
func (m *Manager) ImportPrivateKeyFromBytes(keyBytes []byte) (*rsa.PrivateKey, error) {
	parsedKey, err := x509.ParsePKCS8PrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("import private key: %w: %v", ErrKeyFormat, err)
	}

	privateKey, ok := parsedKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("import private key: %w: not an RSA private key", ErrKeyFormat)
	}

	return privateKey, nil
}

// ImportPublicKeyFromPEM parses a public key from SPKI PEM text.
func (m *Manager) ImportPublicKeyFromPEM(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil || block.Type != publicKeyPEMType {
		return nil, fmt.Errorf("import public key: %w: missing PUBLIC KEY PEM block", ErrKeyFormat)
	}

	return parseSPKI(block.Bytes)
}

// ImportPublicKey parses a public key supplied in an unknown serialization:
// PEM text is tried first, then the raw bytes are treated as SPKI directly.
// Public keys arrive either textually or as raw exported bytes, and the caller
// cannot be required to pre-know which.
func (m *Manager) ImportPublicKey(raw []byte) (*rsa.PublicKey, error) {
	if publicKey, err := m.ImportPublicKeyFromPEM(string(raw)); err == nil {
		return publicKey, nil
	}

	return parseSPKI(raw)
}

func parseSPKI(spkiBytes []byte) (*rsa.PublicKey, error) {
	parsedKey, err := x509.ParsePKIXPublicKey(spkiBytes)
	if err != nil {
		return nil, fmt.Errorf("import public key: %w: %v", ErrKeyFormat, err)
	}

	publicKey, ok := parsedKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("import public key: %w: not an RSA public key", ErrKeyFormat)
	}

	return publicKey, nil
}

// Fingerprint returns the hex-encoded SHA-256 hash of the PEM text. It is the
// content identity the key server uses to detect duplicate registrations.
func Fingerprint(pemText string) string {
	digest := sha256.Sum256([]byte(pemText))

	return hex.EncodeToString(digest[:])
}
