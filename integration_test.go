package courseauth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BUICUONGG/courseauth"
	"github.com/BUICUONGG/courseauth/identity"
	"github.com/BUICUONGG/courseauth/internal/devidentity"
	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stack struct {
	dev   *devidentity.Server
	rdb   *redis.Client
	idURL string
	api   string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dev, err := devidentity.New(devidentity.Config{Key: []byte("integration-key")})
	if err != nil {
		t.Fatalf("devidentity.New: %v", err)
	}
	_ = dev.AddUser("student@courses.test", "pw", token.RoleStudent)

	idSrv := httptest.NewServer(dev)
	t.Cleanup(idSrv.Close)
	api := httptest.NewServer(dev.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	t.Cleanup(api.Close)

	return &stack{dev: dev, rdb: rdb, idURL: idSrv.URL, api: api.URL}
}

func (s *stack) client(t *testing.T) *courseauth.Client {
	t.Helper()
	cfg := courseauth.DefaultConfig()
	cfg.Origin = "courses.test"
	c, err := courseauth.New().
		WithConfig(cfg).
		WithStore(store.NewRedisStore(s.rdb, "", cfg.Origin)).
		WithIdentity(identity.New(s.idURL)).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func get(c *courseauth.Client, url string) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Execute(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func TestNearExpirySessionRefreshesOnce(t *testing.T) {
	s := newStack(t)
	c := s.client(t)

	s.dev.SetAccessTTL(time.Minute)
	if _, err := c.Login(context.Background(), "student@courses.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	s.dev.SetAccessTTL(time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := get(c, s.api+"/courses")
			if err == nil && code != http.StatusOK {
				err = errors.New(http.StatusText(code))
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("request failed: %v", err)
	}

	if got := s.dev.RefreshCalls(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
}

func TestRedisSharedSessionAcrossClients(t *testing.T) {
	s := newStack(t)
	a := s.client(t)
	b := s.client(t)

	seen := make(chan courseauth.Session, 8)
	unsubscribe := b.Subscribe(func(sess courseauth.Session) { seen <- sess })
	defer unsubscribe()

	if _, err := a.Login(context.Background(), "student@courses.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	waitSession(t, seen, true)

	if sess := b.Session(context.Background()); !sess.LoggedIn || sess.Role != token.RoleStudent {
		t.Fatalf("b session = %+v", sess)
	}

	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	waitSession(t, seen, false)
}

func TestRevokedRefreshForcesLogout(t *testing.T) {
	s := newStack(t)
	c := s.client(t)

	if _, err := c.Login(context.Background(), "student@courses.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	forced := make(chan courseauth.ForcedLogout, 1)
	c.OnForcedLogout(func(ev courseauth.ForcedLogout) { forced <- ev })

	s.dev.RevokeAll()
	err := c.ForceRefresh(context.Background())
	if !errors.Is(err, courseauth.ErrSessionExpired) || !errors.Is(err, courseauth.ErrRefreshRejected) {
		t.Fatalf("err = %v, want ErrSessionExpired wrapping ErrRefreshRejected", err)
	}

	select {
	case <-forced:
	case <-time.After(2 * time.Second):
		t.Fatalf("forced logout not emitted")
	}
	if sess := c.Session(context.Background()); sess.LoggedIn {
		t.Fatalf("session survived forced logout")
	}
}

func waitSession(t *testing.T, ch <-chan courseauth.Session, loggedIn bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sess := <-ch:
			if sess.LoggedIn == loggedIn {
				return
			}
		case <-deadline:
			t.Fatalf("no session with LoggedIn=%v observed", loggedIn)
		}
	}
}
