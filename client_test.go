package courseauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
)

func TestLoginStoresPairAndDerivesSession(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	s := store.NewMemoryStore()
	c := newTestClient(t, id, clock, clientOpts{store: s})

	sess, err := c.Login(context.Background(), "student@b.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !sess.LoggedIn || !sess.IsStudent || sess.Role != token.RoleStudent {
		t.Fatalf("session = %+v", sess)
	}
	access, refresh, _ := store.Load(context.Background(), s)
	if access != id.Current() || refresh == "" {
		t.Fatal("login did not store the issued pair")
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success metric = %d", got)
	}
}

func TestLoginRejected(t *testing.T) {
	clock := newTestClock()
	c := newTestClient(t, newFakeIdentity(t, clock), clock, clientOpts{})

	_, err := c.Login(context.Background(), "student@b.com", "wrong")
	if !errors.Is(err, ErrCredentialsRejected) {
		t.Fatalf("err = %v, want ErrCredentialsRejected", err)
	}
	if c.Session(context.Background()).LoggedIn {
		t.Fatal("rejected login produced a session")
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("login failure metric = %d", got)
	}
}

type garbageIdentity struct{ *fakeIdentity }

func (g garbageIdentity) Login(context.Context, string, string) (LoginResult, error) {
	return LoginResult{TokenPair: TokenPair{Access: "garbage", Refresh: "r"}}, nil
}

func (g garbageIdentity) Refresh(context.Context, string) (TokenPair, error) {
	g.refreshCalls.Add(1)
	return TokenPair{Access: "still.not.json", Refresh: "r2"}, nil
}

func TestUndecodableIssuedTokens(t *testing.T) {
	clock := newTestClock()
	g := garbageIdentity{newFakeIdentity(t, clock)}
	s := store.NewMemoryStore()
	c := newTestClient(t, g, clock, clientOpts{store: s})

	if _, err := c.Login(context.Background(), "x", "y"); !errors.Is(err, ErrInvalidIssuedToken) {
		t.Fatalf("login err = %v, want ErrInvalidIssuedToken", err)
	}
	if v, _ := s.Access(context.Background()); v != "" {
		t.Fatal("undecodable login token was stored")
	}

	_ = s.SetPair(context.Background(), mintAccess(t, "a@b.com", token.RoleMentor, clock.Now().Add(time.Minute)), "r1")
	err := c.EnsureFresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) || !errors.Is(err, ErrInvalidIssuedToken) {
		t.Fatalf("refresh err = %v", err)
	}
	if v, _ := s.Refresh(context.Background()); v != "" {
		t.Fatal("store not cleared after bad refresh")
	}
}

func TestLogoutIsIdempotentAndBestEffort(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	id.logoutErr = ErrIdentityUnavailable
	s := store.NewMemoryStore()
	c := newTestClient(t, id, clock, clientOpts{store: s})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := c.Logout(context.Background()); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
		access, refresh, _ := store.Load(context.Background(), s)
		if access != "" || refresh != "" || c.Session(context.Background()).LoggedIn {
			t.Fatalf("logout %d left state behind", i)
		}
	}
	if id.logoutCalls.Load() != 1 {
		t.Fatalf("identity logout calls = %d, want 1", id.logoutCalls.Load())
	}
	if got := c.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("logout metric = %d, want 1", got)
	}
}

func TestEnsureFreshSkipsNetworkWhenFresh(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	c := newTestClient(t, id, clock, clientOpts{})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if id.refreshCalls.Load() != 0 {
		t.Fatal("fresh token must not be refreshed")
	}

	clock.Advance(56 * time.Minute)
	if err := c.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("ensure fresh near expiry: %v", err)
	}
	if id.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", id.refreshCalls.Load())
	}
}

func TestEnsureFreshEmptyStoreStaysIdle(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	s := store.NewMemoryStore()
	c := newTestClient(t, id, clock, clientOpts{store: s})

	if err := c.EnsureFresh(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
	snap := c.MetricsSnapshot()
	if snap.Counters[MetricProactiveRefresh] != 0 || snap.Counters[MetricRefreshWaiter] != 0 {
		t.Fatalf("empty store counted as a refresh trigger: %+v", snap.Counters)
	}
	if c.RefreshState() != RefreshIdle || id.refreshCalls.Load() != 0 {
		t.Fatal("empty store started a refresh")
	}

	// A refresh token alone is still worth a refresh.
	_ = s.SetRefresh(context.Background(), "r1")
	if err := c.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("refresh-only store: %v", err)
	}
	if id.refreshCalls.Load() != 1 || !c.Session(context.Background()).LoggedIn {
		t.Fatal("refresh-only store was not refreshed")
	}
}

func TestForceRefreshIgnoresThreshold(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	c := newTestClient(t, id, clock, clientOpts{})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	before := id.Current()
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if id.refreshCalls.Load() != 1 || id.Current() == before {
		t.Fatal("force refresh did not rotate the pair")
	}
}

func TestRefreshMissingRefreshTokenIsTerminal(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	s := store.NewMemoryStore()
	_ = s.SetAccess(context.Background(), mintAccess(t, "a@b.com", token.RoleStudent, clock.Now().Add(time.Minute)))
	c := newTestClient(t, id, clock, clientOpts{store: s})

	var forced int
	c.OnForcedLogout(func(ForcedLogout) { forced++ })

	err := c.EnsureFresh(context.Background())
	if !errors.Is(err, ErrRefreshTokenMissing) || !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if id.refreshCalls.Load() != 0 {
		t.Fatal("no network call expected without a refresh token")
	}
	if forced != 1 {
		t.Fatalf("forced logouts = %d, want 1", forced)
	}
}

func TestEnsureFreshCallerContextStopsWaitingOnly(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	id.gate = make(chan struct{})
	s := store.NewMemoryStore()
	_ = s.SetPair(context.Background(), mintAccess(t, "a@b.com", token.RoleStudent, clock.Now().Add(time.Minute)), "r1")
	c := newTestClient(t, id, clock, clientOpts{store: s})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.EnsureFresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(id.gate)
	waitFor(t, func() bool { return c.RefreshState() == RefreshIdle })
	if v, _ := s.Access(context.Background()); v != id.Current() {
		t.Fatal("flight did not complete after the caller gave up")
	}
}

func TestRefreshTimeoutFailsFlight(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	id.gate = make(chan struct{})
	defer close(id.gate)
	s := store.NewMemoryStore()
	_ = s.SetPair(context.Background(), mintAccess(t, "a@b.com", token.RoleStudent, clock.Now().Add(time.Minute)), "r1")
	c := newTestClient(t, id, clock, clientOpts{store: s, config: func(cfg *Config) {
		cfg.Refresh.Timeout = 20 * time.Millisecond
	}})

	err := c.EnsureFresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if c.RefreshState() != RefreshIdle {
		t.Fatalf("state = %v, want idle", c.RefreshState())
	}
	if v, _ := s.Refresh(context.Background()); v != "" {
		t.Fatal("store not cleared after timeout")
	}
}

func TestIntrospect(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	c := newTestClient(t, id, clock, clientOpts{})

	if _, err := c.Introspect(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	info, err := c.Introspect(context.Background())
	if err != nil || !info.Valid || info.Subject != "student@b.com" {
		t.Fatalf("introspect = %+v err=%v", info, err)
	}
}

func TestAuditEventsAndClose(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	sink := NewChannelSink(16)
	c := newTestClient(t, id, clock, clientOpts{sink: sink})

	_, _ = c.Login(context.Background(), "student@b.com", "nope")
	_, _ = c.Login(context.Background(), "student@b.com", "pw")
	_ = c.ForceRefresh(context.Background())
	_ = c.Logout(context.Background())
	_ = c.Close()
	_ = c.Close()

	want := []string{AuditLoginFailure, AuditLoginSuccess, AuditRefreshSuccess, AuditLogout}
	for i, typ := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != typ {
				t.Fatalf("event %d = %q, want %q", i, ev.EventType, typ)
			}
			if ev.Origin != "test.example" || ev.ID == "" || !ev.Timestamp.Equal(testEpoch) {
				t.Fatalf("event %d not stamped: %+v", i, ev)
			}
		default:
			t.Fatalf("event %d (%s) missing", i, typ)
		}
	}

	if err := c.EnsureFresh(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("err after close = %v", err)
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().WithIdentity(newFakeIdentity(t, newTestClock())).Build(); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New().WithStore(store.NewMemoryStore()).Build(); err == nil {
		t.Fatal("expected error without identity")
	}

	b := New().WithStore(store.NewMemoryStore()).WithIdentity(newFakeIdentity(t, newTestClock()))
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}
