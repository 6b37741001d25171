package courseauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BUICUONGG/courseauth/internal/audit"
	"github.com/BUICUONGG/courseauth/internal/notify"
	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
	"golang.org/x/sync/singleflight"
)

// Client owns one execution context's view of a session: a tab, a CLI
// process, a worker. Several Clients may share one store.
type Client struct {
	config   Config
	store    store.Store
	identity IdentityService
	http     HTTPDoer
	logger   *slog.Logger
	now      func() time.Time
	metrics  *Metrics
	audit    *audit.Dispatcher

	authFailure map[int]struct{}

	flight       singleflight.Group
	refreshState atomic.Int32

	listeners notify.Registry[Session]
	forced    notify.Registry[ForcedLogout]

	watchMu   sync.Mutex
	watchStop func()
	tickStop  chan struct{}

	lastMu   sync.Mutex
	lastSent Session

	closed atomic.Bool
}

// ForcedLogout is delivered when a failed refresh ends the session.
type ForcedLogout struct {
	Reason error
	At     time.Time
}

// Login exchanges identity and secret for a token pair, stores it and notifies
// subscribers.
func (c *Client) Login(ctx context.Context, identity, secret string) (Session, error) {
	if c.closed.Load() {
		return Session{}, ErrClientClosed
	}

	res, err := c.identity.Login(ctx, identity, secret)
	if err == nil {
		if _, derr := token.Decode(res.Access); derr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidIssuedToken, derr)
		}
	}
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginFailure,
			Subject:   identity,
			Error:     err.Error(),
		})
		return Session{}, err
	}

	if err := c.store.SetPair(ctx, res.Access, res.Refresh); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return Session{}, err
	}

	sess := c.notify(ctx)
	if res.Role != token.RoleNone && res.Role != sess.Role {
		c.logger.WarnContext(ctx, "login role differs from token role",
			slog.String("reported", string(res.Role)),
			slog.String("token", string(sess.Role)))
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginSuccess,
		Subject:   sess.Identity,
		Role:      string(sess.Role),
		Success:   true,
	})
	c.logger.InfoContext(ctx, "logged in", slog.String("subject", sess.Identity))
	return sess, nil
}

// Logout revokes the session at the identity service on a best-effort basis
// and clears the store regardless of that outcome. Calling it on an empty
// store is a no-op apart from the notification.
func (c *Client) Logout(ctx context.Context) error {
	access, refresh, err := store.Load(ctx, c.store)
	if err != nil {
		c.logger.WarnContext(ctx, "read tokens for logout", slog.Any("err", err))
	}

	hadCredentials := access != "" || refresh != ""
	if hadCredentials {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Request.LogoutTimeout)
		if err := c.identity.Logout(lctx, access, refresh); err != nil {
			c.logger.WarnContext(ctx, "identity logout failed", slog.Any("err", err))
		}
		cancel()
	}

	if err := c.store.Clear(ctx); err != nil {
		return err
	}

	if hadCredentials {
		c.metrics.Inc(MetricLogout)
		c.emitAudit(ctx, AuditEvent{EventType: AuditLogout, Success: true})
		c.logger.InfoContext(ctx, "logged out")
	}
	c.notify(ctx)
	return nil
}

// Introspect asks the identity service about the stored access token.
func (c *Client) Introspect(ctx context.Context) (Introspection, error) {
	access, err := c.store.Access(ctx)
	if err != nil {
		return Introspection{}, err
	}
	if access == "" {
		return Introspection{}, ErrNotLoggedIn
	}
	return c.identity.Introspect(ctx, access)
}

// OnForcedLogout registers fn for forced-logout events. fn runs on the
// refresh goroutine before waiters are released. The returned func is
// idempotent.
func (c *Client) OnForcedLogout(fn func(ForcedLogout)) (unsubscribe func()) {
	return c.forced.Subscribe(fn)
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// MetricsSnapshot returns the current metric values.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Close stops session notifications and flushes the audit dispatcher. An
// in-flight refresh completes on its own. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.watchMu.Lock()
	c.stopWatchingLocked()
	c.watchMu.Unlock()
	c.audit.Close()
	return nil
}
