/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registration

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orgvault/orgvault-go/pkg/keypair"
	"github.com/orgvault/orgvault-go/pkg/keystore"
	"github.com/orgvault/orgvault-go/pkg/passlock"
)

// State is a step of the key registration protocol.
type State string

// Protocol states. A run moves strictly forward through the success states;
// the failure states are terminal for that run.
const (
	StateGenerated        State = "Generated"
	StateExported         State = "Exported"
	StateAccountPending   State = "AccountPending"
	StateAccountConfirmed State = "AccountConfirmed"
	StateKeyUploaded      State = "KeyUploaded"
	StatePrivateKeyStored State = "PrivateKeyStored"
	StateComplete         State = "Complete"

	StateAccountFailed   State = "AccountFailed"
	StateKeyUploadFailed State = "KeyUploadFailed"
	StateInconsistent    State = "Inconsistent"
)

// AccountProfile is the profile data handed to the external user-registration
// collaborator.
type AccountProfile struct {
	Email            string
	DisplayName      string
	OrganizationName string
}

// KeyUploadError is returned when the public key upload is rejected after the
// account was already created server-side. The account is not rolled back; the
// caller decides whether to treat this as fatal or recover via ProvisionKeys.
type KeyUploadError struct {
	UserID         string
	AccountCreated bool
	Err            error
}

func (e *KeyUploadError) Error() string {
	return "public key upload failed for user " + e.UserID + ": " + e.Err.Error()
}

func (e *KeyUploadError) Unwrap() error {
	return e.Err
}

// Result reports how far a protocol run got. On error, State names the
// terminal failure state.
type Result struct {
	State        State
	UserID       string
	PublicKeyPEM string
	Fingerprint  string
}

// Registrar drives the key registration protocol across the key pair manager,
// the password lock, the encrypted key store and the key server client.
type Registrar struct {
	keys   *keypair.Manager
	lock   *passlock.Service
	store  *keystore.Store
	client *Client
	now    func() time.Time
}

// NewRegistrar returns a Registrar wired to the given collaborators.
func NewRegistrar(keys *keypair.Manager, lock *passlock.Service, store *keystore.Store, client *Client) *Registrar {
	return &Registrar{
		keys:   keys,
		lock:   lock,
		store:  store,
		client: client,
		now:    time.Now,
	}
}

// Register runs the full protocol for a new account: generate a key pair,
// create the account, upload the public key, then wrap and store the private
// key under the confirmed user id.
//
// The private key is persisted strictly after the upload succeeds. An orphaned
// local private key with no registered public key can never decrypt anything
// sent to the user, so upload failure aborts before any local write.
func (r *Registrar) Register(profile *AccountProfile, password string) (*Result, error) {
	result := &Result{State: StateGenerated}

	if profile == nil || profile.OrganizationName == "" {
		return result, errors.New("account profile with an organization name is required")
	}

	keyPair, err := r.keys.Generate()
	if err != nil {
		return result, errors.Wrap(err, "generate key pair")
	}

	publicKeyPEM, err := r.keys.ExportPublicKeyPEM(keyPair.PublicKey)
	if err != nil {
		return result, errors.Wrap(err, "export public key")
	}

	privateKeyBytes, err := r.keys.ExportPrivateKeyBytes(keyPair.PrivateKey)
	if err != nil {
		return result, errors.Wrap(err, "export private key")
	}

	result.State = StateExported
	result.PublicKeyPEM = publicKeyPEM

	result.State = StateAccountPending

	userID, err := r.client.CreateAccount(profile.Email, profile.DisplayName, profile.OrganizationName)
	if err != nil {
		// nothing was persisted, so this state leaves no artifacts to clean up
		result.State = StateAccountFailed

		return result, errors.Wrap(err, "create account")
	}

	result.State = StateAccountConfirmed
	result.UserID = userID

	logger.Debugf("account confirmed for user %q in organization %q", userID, profile.OrganizationName)

	return r.uploadAndStore(result, profile.OrganizationName, publicKeyPEM, privateKeyBytes, password)
}

// ProvisionKeys re-runs key setup for an already confirmed account: a fresh
// key pair is generated, uploaded and stored. This is the recovery path after
// a KeyUploadFailed run left the user with an account but no usable key.
func (r *Registrar) ProvisionKeys(userID, organizationName, password string) (*Result, error) {
	result := &Result{State: StateGenerated, UserID: userID}

	if userID == "" || organizationName == "" {
		return result, errors.New("user id and organization name are required")
	}

	keyPair, err := r.keys.Generate()
	if err != nil {
		return result, errors.Wrap(err, "generate key pair")
	}

	publicKeyPEM, err := r.keys.ExportPublicKeyPEM(keyPair.PublicKey)
	if err != nil {
		return result, errors.Wrap(err, "export public key")
	}

	privateKeyBytes, err := r.keys.ExportPrivateKeyBytes(keyPair.PrivateKey)
	if err != nil {
		return result, errors.Wrap(err, "export private key")
	}

	result.State = StateExported
	result.PublicKeyPEM = publicKeyPEM

	return r.uploadAndStore(result, organizationName, publicKeyPEM, privateKeyBytes, password)
}

// PurgeLocalKeys removes every locally stored wrapped key belonging to userID.
// The server-side public key records are untouched; deactivating them is a
// separate, explicit operation.
func (r *Registrar) PurgeLocalKeys(userID string) error {
	return errors.Wrap(r.store.ClearAllForUser(userID), "purge local keys")
}

func (r *Registrar) uploadAndStore(result *Result, organizationName, publicKeyPEM string,
	privateKeyBytes []byte, password string) (*Result, error) {
	fingerprint, err := r.client.UploadPublicKey(organizationName, result.UserID, publicKeyPEM)
	if err != nil {
		result.State = StateKeyUploadFailed

		return result, &KeyUploadError{UserID: result.UserID, AccountCreated: true, Err: err}
	}

	result.State = StateKeyUploaded
	result.Fingerprint = fingerprint

	if err := r.storeWrappedKey(result.UserID, organizationName, privateKeyBytes, password); err != nil {
		// the uploaded public key now exists with no stored private key; the
		// only remedy is retrying the storage step, there is no rollback
		result.State = StateInconsistent

		return result, err
	}

	result.State = StatePrivateKeyStored

	logger.Infof("key registration complete for user %q in organization %q", result.UserID, organizationName)

	result.State = StateComplete

	return result, nil
}

// storeWrappedKey wraps the private key bytes under the password and persists
// the record. It is first written under a pending id and then atomically
// rekeyed to the confirmed composite id, so the record never becomes visible
// under the confirmed id half-written.
func (r *Registrar) storeWrappedKey(userID, organizationName string, privateKeyBytes []byte, password string) error {
	wrapped, err := r.lock.Wrap(privateKeyBytes, password)
	if err != nil {
		return errors.Wrap(err, "wrap private key")
	}

	pendingID := keystore.CompositeID("pending-"+uuid.New().String(), organizationName)

	record := &keystore.Record{
		ID:               pendingID,
		Encrypted:        keystore.ByteSeq(wrapped.Ciphertext),
		Salt:             keystore.ByteSeq(wrapped.Salt),
		IV:               keystore.ByteSeq(wrapped.IV),
		Timestamp:        r.now().UTC(),
		OrganizationName: organizationName,
		UserID:           userID,
	}

	if err := r.store.Put(record); err != nil {
		return errors.Wrap(err, "store wrapped key")
	}

	if err := r.store.Rekey(pendingID, keystore.CompositeID(userID, organizationName)); err != nil {
		return errors.Wrap(err, "commit wrapped key")
	}

	return nil
}
