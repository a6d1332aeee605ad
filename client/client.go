// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package client is a library for programs that create and manage faucets
// on a remote arethusa server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xmidt-org/arethusa/faucet"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrAddressEmpty        = errors.New("arethusa address is required")
	ErrCodeEmpty           = errors.New("faucet code is required")
	ErrFaucetIDEmpty       = errors.New("faucet ID is required")
	ErrScanIDEmpty         = errors.New("scan ID is required")
	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")

	// ErrCodeGone is every non-resolvable code: expired, revoked, consumed,
	// forged or unknown. The server does not say which.
	ErrCodeGone = errors.New("code no longer valid")

	ErrBadRequest           = errors.New("arethusa rejected the request as invalid")
	ErrFailedAuthentication = errors.New("arethusa rejected the admin credentials")
)

var (
	errNonSuccessResponse = errors.New("arethusa responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling request as JSON payload")
)

const (
	apiBasePath      = "/api/v1"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
	errorHeaderKey   = "errorHeader"
)

// ClientConfig contains config data for the client that will be used to
// make requests to an arethusa server.
type ClientConfig struct {
	// Address is the arethusa URL (i.e. https://example-arethusa.io:8090)
	Address string

	// AdminToken authorizes the management operations: create, revoke and
	// lineage. (Optional) Resolve works without it.
	AdminToken string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add auth headers to outgoing requests.
	// (Optional) If not provided, no auth headers are added.
	Auth Auth

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Auth contains authorization data for requests to arethusa.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// Client makes requests to an arethusa server.
type Client struct {
	client     *http.Client
	auth       acquire.Acquirer
	baseURL    string
	adminToken string
	logger     *zap.Logger
	getLogger  func(context.Context) *zap.Logger
}

type response struct {
	Body        []byte
	ErrorHeader string
	Code        int
}

// NewClient creates a new Client that can be used to make requests to an
// arethusa server.
func NewClient(config ClientConfig, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	err := validateConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:     config.HTTPClient,
		auth:       tokenAcquirer,
		baseURL:    config.Address + apiBasePath,
		adminToken: config.AdminToken,
		logger:     config.Logger,
		getLogger:  getLogger,
	}, nil
}

// CreateFaucet builds a new faucet on the server and returns the opaque
// code to render as a QR.
func (c *Client) CreateFaucet(ctx context.Context, req faucet.CreateRequest) (faucet.CreateResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return faucet.CreateResult{}, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	resp, err := c.sendRequest(ctx, true, http.MethodPost, c.baseURL+"/faucets", bytes.NewReader(data))
	if err != nil {
		return faucet.CreateResult{}, err
	}

	if resp.Code != http.StatusCreated {
		c.loggerFor(ctx).Error("non-successful status code for a CreateFaucet request",
			zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
		return faucet.CreateResult{}, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var result faucet.CreateResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return faucet.CreateResult{}, fmt.Errorf("CreateFaucet: %w: %s", errJSONUnmarshal, err.Error())
	}
	return result, nil
}

// ResolveFaucet presents a scanned code and returns the target action.
func (c *Client) ResolveFaucet(ctx context.Context, code string) (faucet.ResolveResult, error) {
	if len(code) < 1 {
		return faucet.ResolveResult{}, ErrCodeEmpty
	}

	resp, err := c.sendRequest(ctx, false, http.MethodGet, c.baseURL+"/resolve/"+code, nil)
	if err != nil {
		return faucet.ResolveResult{}, err
	}

	if resp.Code != http.StatusOK {
		return faucet.ResolveResult{}, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var result faucet.ResolveResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return faucet.ResolveResult{}, fmt.Errorf("ResolveFaucet: %w: %s", errJSONUnmarshal, err.Error())
	}
	return result, nil
}

// RevokeFaucet kills the faucet immediately. Revoking twice is not an
// error.
func (c *Client) RevokeFaucet(ctx context.Context, id string) error {
	if len(id) < 1 {
		return ErrFaucetIDEmpty
	}

	resp, err := c.sendRequest(ctx, true, http.MethodDelete, c.baseURL+"/faucets/"+id, nil)
	if err != nil {
		return err
	}

	if resp.Code != http.StatusNoContent {
		c.loggerFor(ctx).Error("non-successful status code for a RevokeFaucet request",
			zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
		return fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}
	return nil
}

// GetLineage fetches the scan ancestry of the given scan, oldest first.
func (c *Client) GetLineage(ctx context.Context, scanID string) ([]model.ScanEvent, error) {
	if len(scanID) < 1 {
		return nil, ErrScanIDEmpty
	}

	resp, err := c.sendRequest(ctx, true, http.MethodGet, c.baseURL+"/scans/"+scanID+"/lineage", nil)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		c.loggerFor(ctx).Error("non-successful status code for a GetLineage request",
			zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
		return nil, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var chain []model.ScanEvent
	if err := json.Unmarshal(resp.Body, &chain); err != nil {
		return nil, fmt.Errorf("GetLineage: %w: %s", errJSONUnmarshal, err.Error())
	}
	return chain, nil
}

func (c *Client) loggerFor(ctx context.Context) *zap.Logger {
	if l := c.getLogger(ctx); l != nil {
		return l
	}
	return c.logger
}

func (c *Client) sendRequest(ctx context.Context, admin bool, method, url string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	err = acquire.AddAuth(r, c.auth)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	if admin && len(c.adminToken) > 0 {
		r.Header.Set(faucet.AdminTokenHeaderKey, c.adminToken)
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	result := response{
		Code:        resp.StatusCode,
		ErrorHeader: resp.Header.Get(faucet.ErrorHeaderKey),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	result.Body = bodyBytes
	return result, nil
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

// translateNonSuccessStatusCode returns a specific error
// for known arethusa status codes.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrFailedAuthentication
	case http.StatusGone:
		return ErrCodeGone
	default:
		return errNonSuccessResponse
	}
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func validateConfig(config *ClientConfig) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
