/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registration binds a freshly generated key pair to a server-held
// user identity: account creation, public key upload and the local storage of
// the password-wrapped private key, in that order.
package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/orgvault/orgvault-go/pkg/common/log"
	"github.com/orgvault/orgvault-go/pkg/keypair"
)

const (
	// AccountsEndpoint is the account-registration endpoint with a swappable
	// {serverEndpoint} value.
	AccountsEndpoint = "{serverEndpoint}/api/v1/accounts"

	// KeysEndpoint is the public-key upload endpoint with swappable
	// {serverEndpoint} and {userId} values. The organization the key is scoped
	// to travels in the request body, not the path.
	KeysEndpoint = "{serverEndpoint}/api/v1/users/{userId}/keys"

	// ContentType is the key server's http content-type.
	ContentType = "application/json"
)

var logger = log.New("orgvault/registration")

// HTTPClient interface for the http client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Server rejection outcomes the protocol distinguishes. A 4xx is never
// retried; 5xx and transport failures are retried per the client options.
var (
	// ErrValidation covers 400 responses: malformed PEM, unknown organization,
	// bad profile data.
	ErrValidation = errors.New("request rejected by key server")

	// ErrForbidden covers 403 responses: the user is not a member of the
	// organization the key is scoped to.
	ErrForbidden = errors.New("user not in organization")

	// ErrConflict covers 409 responses: a duplicate active key or a
	// fingerprint collision for the (organization, user) pair.
	ErrConflict = errors.New("active key already registered")
)

// ServerError indicates the key server failed with a 5xx after all retries
// were exhausted.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("key server error (status %d): %s", e.StatusCode, e.Message)
}

type errMessage struct {
	Error string `json:"errMessage"`
}

type createAccountReq struct {
	Email            string `json:"email"`
	DisplayName      string `json:"displayName,omitempty"`
	OrganizationName string `json:"organizationName"`
}

type createAccountResp struct {
	UserID string `json:"userId"`
}

type uploadKeyReq struct {
	PublicKeyPEM     string `json:"publicKeyPem"`
	OrganizationName string `json:"organizationName"`
	KeyType          string `json:"keyType"`
	KeySize          int    `json:"keySize"`
}

type uploadKeyResp struct {
	Fingerprint string `json:"fingerprint"`
}

type marshalFunc func(interface{}) ([]byte, error)

type unmarshalFunc func([]byte, interface{}) error

// AddHeaders is a function signature for adding http headers to the key server
// requests (e.g. for fetching authorization tokens).
type AddHeaders func(req *http.Request) (*http.Header, error)

// Opts represents the client options.
type Opts struct {
	HeadersFunc   AddHeaders
	marshal       marshalFunc
	retries       uint64
	retryInterval time.Duration
}

// NewOpt creates a new empty option. Not to be used directly, use the With...
// option functions below instead.
func NewOpt() *Opts {
	return &Opts{marshal: json.Marshal, retries: 3, retryInterval: time.Second}
}

// Opt is a client option.
type Opt func(opts *Opts)

// WithHeaders option is for setting additional http request headers.
func WithHeaders(addHeadersFunc AddHeaders) Opt {
	return func(opts *Opts) {
		opts.HeadersFunc = addHeadersFunc
	}
}

// WithMarshalFn allows providing a marshal function.
func WithMarshalFn(fn marshalFunc) Opt {
	return func(opts *Opts) {
		opts.marshal = fn
	}
}

// WithRetries sets how many times a 5xx or transport failure is retried and
// the constant interval between attempts. Zero retries disables the retry
// loop.
func WithRetries(retries uint64, interval time.Duration) Opt {
	return func(opts *Opts) {
		opts.retries = retries
		opts.retryInterval = interval
	}
}

// Client is an http client of the external account and key registration
// collaborators.
type Client struct {
	httpClient    HTTPClient
	serverURL     string
	marshalFunc   marshalFunc
	unmarshalFunc unmarshalFunc
	opts          *Opts
}

// NewClient creates a new registration client using httpClient connecting to
// serverURL.
func NewClient(serverURL string, httpClient HTTPClient, opts ...Opt) *Client {
	clientOpts := NewOpt()

	for _, opt := range opts {
		opt(clientOpts)
	}

	return &Client{
		httpClient:    httpClient,
		serverURL:     strings.TrimSuffix(serverURL, "/"),
		marshalFunc:   clientOpts.marshal,
		unmarshalFunc: json.Unmarshal,
		opts:          clientOpts,
	}
}

// CreateAccount registers the account's profile data with the user service and
// returns the server-confirmed user id.
func (c *Client) CreateAccount(email, displayName, organizationName string) (string, error) {
	destination := strings.ReplaceAll(AccountsEndpoint, "{serverEndpoint}", c.serverURL)

	mReq, err := c.marshalFunc(&createAccountReq{
		Email:            email,
		DisplayName:      displayName,
		OrganizationName: organizationName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal create account request [%s, %w]", destination, err)
	}

	var httpResp createAccountResp

	if err := c.postAndRead(destination, mReq, &httpResp, "CreateAccount"); err != nil {
		return "", fmt.Errorf("create account failed [%s, %w]", destination, err)
	}

	if httpResp.UserID == "" {
		return "", fmt.Errorf("create account failed [%s]: server confirmed no user id", destination)
	}

	return httpResp.UserID, nil
}

// UploadPublicKey submits the exported public key PEM to the key server,
// scoped to (organizationName, userID). The returned fingerprint is the
// server's content hash of the PEM text.
func (c *Client) UploadPublicKey(organizationName, userID, publicKeyPEM string) (string, error) {
	destination := strings.ReplaceAll(
		strings.ReplaceAll(KeysEndpoint, "{serverEndpoint}", c.serverURL),
		"{userId}", userID)

	mReq, err := c.marshalFunc(&uploadKeyReq{
		PublicKeyPEM:     publicKeyPEM,
		OrganizationName: organizationName,
		KeyType:          keypair.KeyType,
		KeySize:          keypair.KeySize,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal upload key request [%s, %w]", destination, err)
	}

	var httpResp uploadKeyResp

	if err := c.postAndRead(destination, mReq, &httpResp, "UploadPublicKey"); err != nil {
		return "", fmt.Errorf("upload public key failed [%s, %w]", destination, err)
	}

	return httpResp.Fingerprint, nil
}

// postAndRead POSTs mReq to destination and decodes the response into
// httpResp. 5xx and transport failures are retried with a constant backoff;
// 4xx rejections are permanent.
func (c *Client) postAndRead(destination string, mReq []byte, httpResp interface{}, action string) error {
	return backoff.Retry(func() error {
		resp, err := c.postHTTPRequest(destination, mReq)
		if err != nil {
			return fmt.Errorf("posting %s failed: %w", action, err)
		}

		defer closeResponseBody(resp.Body, action)

		if err := readResponse(resp, httpResp, c.unmarshalFunc); err != nil {
			serverErr := &ServerError{}
			if errors.As(err, &serverErr) {
				logger.Warnf("%s returned a server error, retrying: %s", action, err.Error())

				return err
			}

			return backoff.Permanent(err)
		}

		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.retryInterval), c.opts.retries))
}

func (c *Client) postHTTPRequest(destination string, mReq []byte) (*http.Response, error) {
	start := time.Now()

	httpReq, err := http.NewRequest(http.MethodPost, destination, bytes.NewBuffer(mReq))
	if err != nil {
		return nil, fmt.Errorf("build post request error: %w", err)
	}

	httpReq.Header.Set("Content-Type", ContentType)

	if c.opts.HeadersFunc != nil {
		httpHeaders, e := c.opts.HeadersFunc(httpReq)
		if e != nil {
			return nil, fmt.Errorf("add optional request headers error: %w", e)
		}

		if httpHeaders != nil {
			httpReq.Header = httpHeaders.Clone()
		}
	}

	resp, err := c.httpClient.Do(httpReq)

	logger.Debugf("  HTTP POST %s call duration: %s", destination, time.Since(start))

	return resp, err
}

func readResponse(resp *http.Response, httpResp interface{}, unmarshal unmarshalFunc) error {
	if err := checkError(resp); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}

	if err := unmarshal(respBody, httpResp); err != nil {
		return fmt.Errorf("unmarshal response failed: %w", err)
	}

	return nil
}

// checkError maps the key server's rejection statuses onto the protocol's
// typed outcomes.
func checkError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var errAPI errMessage

	message := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&errAPI); err == nil && errAPI.Error != "" {
		message = errAPI.Error
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%s: %w", message, ErrValidation)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", message, ErrForbidden)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", message, ErrConflict)
	case resp.StatusCode >= http.StatusInternalServerError:
		return &ServerError{StatusCode: resp.StatusCode, Message: message}
	default:
		return errors.New(message)
	}
}

func closeResponseBody(respBody io.Closer, action string) {
	err := respBody.Close()
	if err != nil {
		logger.Errorf("Failed to close response body for '%s' REST call: %s", action, err.Error())
	}
}
