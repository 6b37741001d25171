package courseauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testKey = []byte("courseauth-test-key")

// testEpoch is whole seconds so exp round-trips exactly.
var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mintAccess(t testing.TB, subject string, role token.Role, exp time.Time) string {
	t.Helper()
	raw, err := token.Mint(token.Claims{
		Scope: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-identity",
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, testKey)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return raw
}

// fakeIdentity issues tokens for "student@b.com"/"pw". Refresh blocks on gate
// when it is set.
type fakeIdentity struct {
	t     testing.TB
	clock *testClock
	ttl   time.Duration

	gate       chan struct{}
	refreshErr error

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
	logoutErr    error

	mu      sync.Mutex
	current string
}

func newFakeIdentity(t testing.TB, clock *testClock) *fakeIdentity {
	return &fakeIdentity{t: t, clock: clock, ttl: time.Hour}
}

func (f *fakeIdentity) issue() TokenPair {
	access := mintAccess(f.t, "student@b.com", token.RoleStudent, f.clock.Now().Add(f.ttl))
	f.mu.Lock()
	f.current = access
	f.mu.Unlock()
	return TokenPair{Access: access, Refresh: uuid.NewString()}
}

// Current returns the last access token issued, the only one the fake API
// server accepts.
func (f *fakeIdentity) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeIdentity) Login(_ context.Context, identity, secret string) (LoginResult, error) {
	if identity != "student@b.com" || secret != "pw" {
		return LoginResult{}, ErrCredentialsRejected
	}
	return LoginResult{TokenPair: f.issue(), Role: token.RoleStudent}, nil
}

func (f *fakeIdentity) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	f.refreshCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return TokenPair{}, errors.Join(ErrIdentityUnavailable, ctx.Err())
		}
	}
	if f.refreshErr != nil {
		return TokenPair{}, f.refreshErr
	}
	if refreshToken == "" {
		return TokenPair{}, ErrRefreshRejected
	}
	return f.issue(), nil
}

func (f *fakeIdentity) Logout(context.Context, string, string) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeIdentity) Introspect(_ context.Context, raw string) (Introspection, error) {
	tok, err := token.Decode(raw)
	if err != nil {
		return Introspection{}, err
	}
	exp, _ := tok.Claims().Expiry()
	return Introspection{
		Valid:   raw == f.Current() && !token.IsExpired(tok.Claims(), f.clock.Now()),
		Subject: tok.Claims().Subject,
		Expiry:  exp,
	}, nil
}

type clientOpts struct {
	store  store.Store
	doer   HTTPDoer
	sink   AuditSink
	config func(*Config)
}

func newTestClient(t *testing.T, id IdentityService, clock *testClock, opts clientOpts) *Client {
	t.Helper()

	if opts.store == nil {
		opts.store = store.NewMemoryStore()
	}
	cfg := DefaultConfig()
	cfg.Origin = "test.example"
	if opts.config != nil {
		opts.config(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithStore(opts.store).
		WithIdentity(id).
		WithClock(clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if opts.doer != nil {
		b.WithHTTPClient(opts.doer)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}

	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
