/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package chunkcipher encrypts arbitrary-length payloads under an RSA-OAEP
// public key. A single OAEP operation over a 2048-bit modulus fits at most 190
// plaintext bytes and always yields 256 ciphertext bytes, so payloads are split
// into fixed-size chunks whose ciphertext blocks are concatenated in byte-offset
// order with no separators. Chunk boundaries on decrypt are derived purely from
// the encrypted block size.
package chunkcipher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"
)

const (
	// MaxChunkSize is the largest plaintext chunk a single RSA-OAEP/SHA-256
	// operation over a 2048-bit modulus can carry: 256 - 2*32 - 2.
	MaxChunkSize = 190

	// EncryptedChunkSize is the ciphertext block size produced per chunk.
	EncryptedChunkSize = 256
)

var (
	// ErrDecryption is returned when a ciphertext block fails to decrypt under
	// the supplied private key. The whole payload decrypt is aborted; a
	// partially decrypted payload is never returned.
	ErrDecryption = fmt.Errorf("decryption failure: ciphertext block does not match key")

	// ErrMalformedPayload is returned when the ciphertext length is not a
	// positive multiple of the encrypted block size.
	ErrMalformedPayload = fmt.Errorf("malformed encrypted payload")
)

// Cipher splits and reassembles chunked RSA-OAEP payloads.
type Cipher struct {
	randReader io.Reader
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithRandomSource replaces the default secure random source used for OAEP
// padding with r.
func WithRandomSource(r io.Reader) Option {
	return func(c *Cipher) {
		c.randReader = r
	}
}

// New returns a chunked payload cipher.
func New(opts ...Option) *Cipher {
	c := &Cipher{randReader: rand.Reader}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Encrypt splits payload into sequential chunks of at most MaxChunkSize bytes,
// encrypts each independently under publicKey and concatenates the ciphertext
// blocks in original order. An empty payload produces a single encrypted empty
// chunk rather than zero-length output, keeping the chunk-count invariant
// simple: len(result) == ceil(max(1,len(payload))/190) * 256.
func (c *Cipher) Encrypt(payload []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("encrypt payload: public key is nil")
	}

	if publicKey.Size() != EncryptedChunkSize {
		return nil, fmt.Errorf("encrypt payload: expected a %d-bit key, got %d bits",
			EncryptedChunkSize*8, publicKey.Size()*8)
	}

	chunkCount := (len(payload) + MaxChunkSize - 1) / MaxChunkSize
	if chunkCount == 0 {
		chunkCount = 1
	}

	encrypted := make([]byte, 0, chunkCount*EncryptedChunkSize)

	for i := 0; i < chunkCount; i++ {
		start := i * MaxChunkSize

		end := start + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}

		block, err := rsa.EncryptOAEP(sha256.New(), c.randReader, publicKey, payload[start:end], nil)
		if err != nil {
			return nil, fmt.Errorf("encrypt payload chunk %d: %w", i, err)
		}

		encrypted = append(encrypted, block...)
	}

	return encrypted, nil
}

// Decrypt splits ciphertext into sequential EncryptedChunkSize blocks, decrypts
// each independently and concatenates the plaintext chunks in order. It is the
// exact inverse of Encrypt for a matching key pair. Any block failure aborts the
// whole decrypt.
func (c *Cipher) Decrypt(ciphertext []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("decrypt payload: private key is nil")
	}

	if len(ciphertext) == 0 || len(ciphertext)%EncryptedChunkSize != 0 {
		return nil, fmt.Errorf("decrypt payload: %w: length %d is not a positive multiple of %d",
			ErrMalformedPayload, len(ciphertext), EncryptedChunkSize)
	}

	blockCount := len(ciphertext) / EncryptedChunkSize
	payload := make([]byte, 0, blockCount*MaxChunkSize)

	for i := 0; i < blockCount; i++ {
		block := ciphertext[i*EncryptedChunkSize : (i+1)*EncryptedChunkSize]

		chunk, err := rsa.DecryptOAEP(sha256.New(), c.randReader, privateKey, block, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt payload block %d: %w", i, ErrDecryption)
		}

		payload = append(payload, chunk...)
	}

	return payload, nil
}

// EncryptedSize returns the ciphertext length Encrypt produces for a payload of
// the given length.
func EncryptedSize(payloadLen int) int {
	chunkCount := (payloadLen + MaxChunkSize - 1) / MaxChunkSize
	if chunkCount == 0 {
		chunkCount = 1
	}

	return chunkCount * EncryptedChunkSize
}
