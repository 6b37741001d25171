package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BUICUONGG/courseauth"
	"github.com/BUICUONGG/courseauth/token"
)

// DefaultTimeout bounds each identity call when no other timeout is set.
const DefaultTimeout = 5 * time.Second

// ErrBadResponse is returned when a 2xx answer cannot be decoded.
var ErrBadResponse = errors.New("identity: bad response")

// Client talks to the identity service at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

var _ courseauth.IdentityService = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a Client for baseURL, for example "https://id.example".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, identity, secret string) (courseauth.LoginResult, error) {
	var out TokenResponse
	status, err := c.post(ctx, PathLogin, LoginRequest{Identity: identity, Secret: secret}, &out)
	if err != nil {
		return courseauth.LoginResult{}, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return courseauth.LoginResult{}, courseauth.ErrCredentialsRejected
	}
	if err := statusError(status); err != nil {
		return courseauth.LoginResult{}, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return courseauth.LoginResult{}, fmt.Errorf("%w: missing token", ErrBadResponse)
	}

	role, _ := token.ParseRole(out.Role)
	return courseauth.LoginResult{
		TokenPair: courseauth.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken},
		Role:      role,
	}, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (courseauth.TokenPair, error) {
	var out TokenResponse
	status, err := c.post(ctx, PathRefresh, RefreshRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		return courseauth.TokenPair{}, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return courseauth.TokenPair{}, courseauth.ErrRefreshRejected
	}
	if err := statusError(status); err != nil {
		return courseauth.TokenPair{}, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return courseauth.TokenPair{}, fmt.Errorf("%w: missing token", ErrBadResponse)
	}
	return courseauth.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken}, nil
}

// Logout treats 401 as success: the session is already gone server side.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	status, err := c.post(ctx, PathLogout, LogoutRequest{AccessToken: accessToken, RefreshToken: refreshToken}, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return nil
	}
	return statusError(status)
}

func (c *Client) Introspect(ctx context.Context, rawToken string) (courseauth.Introspection, error) {
	var out IntrospectResponse
	status, err := c.post(ctx, PathIntrospect, IntrospectRequest{Token: rawToken}, &out)
	if err != nil {
		return courseauth.Introspection{}, err
	}
	if err := statusError(status); err != nil {
		return courseauth.Introspection{}, err
	}
	return courseauth.Introspection{Valid: out.Valid, Subject: out.Subject, Expiry: out.Expiry}, nil
}

// post sends body as JSON and decodes a 2xx answer into out when out is not
// nil. Transport failures wrap courseauth.ErrIdentityUnavailable.
func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("identity: encode %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("identity: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", courseauth.ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 || out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return resp.StatusCode, nil
}

func statusError(status int) error {
	switch {
	case status/100 == 2:
		return nil
	case status >= 500:
		return fmt.Errorf("%w: status %d", courseauth.ErrIdentityUnavailable, status)
	default:
		return fmt.Errorf("identity: unexpected status %d", status)
	}
}
