/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package orgvault implements the client-side key lifecycle for organization
// vaults: RSA-OAEP key pairs, password-based private key protection, local
// encrypted key storage and the registration protocol that binds a public key
// to a server-held user identity.
//
// Packages for end developer usage
//
// pkg/keypair: Generates 2048-bit RSA-OAEP key pairs and converts them between
// the runtime representation and the wire formats (SPKI PEM, PKCS8 bytes).
//
// pkg/passlock: Wraps and unwraps private key bytes under a user password
// (PBKDF2-SHA256 key derivation, AES-GCM encryption).
//
// pkg/keystore: Persists password-wrapped key records in a local key-value
// store, one record per (user, organization) pair.
//
// pkg/chunkcipher: Encrypts payloads of arbitrary size under an RSA-OAEP
// public key by splitting them into chunks.
//
// pkg/registration: Drives the key registration protocol end to end: account
// creation, public key upload, then local storage of the wrapped private key.
//
// pkg/keysession: Holds unlocked private keys in memory for a bounded time
// after a successful password unwrap.
//
// Basic workflow
//
//      1) Open a keystore.Store over a storage provider (pkg/storage/leveldb
//         for persistence, pkg/storage/mem for tests).
//      2) Create a registration.Client for the key server and wire it into a
//         registration.Registrar together with keypair, passlock and the store.
//      3) Call Registrar.Register to provision an account with a key pair.
//      4) Use keysession.Manager to unlock the stored key for use, and
//         chunkcipher to encrypt/decrypt payloads under it.
package orgvault
