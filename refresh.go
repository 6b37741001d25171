package courseauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
)

// RefreshState is the observable state of a Client's refresh flight.
type RefreshState int32

const (
	RefreshIdle RefreshState = iota
	RefreshRefreshing
	// RefreshFailed is held while a failed flight clears the store and
	// signals the forced logout. It returns to RefreshIdle before waiters are
	// released.
	RefreshFailed
)

func (s RefreshState) String() string {
	switch s {
	case RefreshIdle:
		return "idle"
	case RefreshRefreshing:
		return "refreshing"
	case RefreshFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type refreshTrigger uint8

const (
	triggerProactive refreshTrigger = iota
	triggerReactive
)

func (t refreshTrigger) String() string {
	if t == triggerReactive {
		return "reactive"
	}
	return "proactive"
}

const flightKey = "refresh"

// RefreshState reports whether a refresh is in flight.
func (c *Client) RefreshState() RefreshState {
	return RefreshState(c.refreshState.Load())
}

// EnsureFresh returns immediately when the stored access token is valid for
// longer than Config.Refresh.Threshold. Otherwise it joins or starts the
// single refresh flight and returns its result. ctx only bounds the wait. An
// empty store returns ErrNotLoggedIn without starting a flight.
func (c *Client) EnsureFresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	access, err := c.store.Access(ctx)
	if err != nil {
		return err
	}
	if c.freshEnough(access) {
		return nil
	}
	if access == "" {
		refresh, err := c.store.Refresh(ctx)
		if err != nil {
			return err
		}
		if refresh == "" {
			return ErrNotLoggedIn
		}
	}

	c.metrics.Inc(MetricProactiveRefresh)
	return c.joinFlight(ctx, triggerProactive, "")
}

// ForceRefresh refreshes regardless of the access token's expiry, unless a
// refresh is already in flight, in which case it waits for that one.
func (c *Client) ForceRefresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.metrics.Inc(MetricReactiveRefresh)
	return c.joinFlight(ctx, triggerReactive, "")
}

// forceRefreshAfterReject is ForceRefresh for a request whose access token was
// rejected. A flight that finds the store already holding a different valid
// token skips the network.
func (c *Client) forceRefreshAfterReject(ctx context.Context, rejected string) error {
	c.metrics.Inc(MetricReactiveRefresh)
	return c.joinFlight(ctx, triggerReactive, rejected)
}

func (c *Client) freshEnough(access string) bool {
	if access == "" {
		return false
	}
	tok, err := token.Decode(access)
	if err != nil {
		return false
	}
	return !token.ExpiresWithin(tok.Claims(), c.now(), c.config.Refresh.Threshold)
}

func (c *Client) joinFlight(ctx context.Context, trigger refreshTrigger, rejected string) error {
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return nil, c.runFlight(trigger, rejected)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.Inc(MetricRefreshWaiter)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runFlight is the body of the single flight. It runs on its own goroutine
// with a context detached from every caller and bounded by
// Config.Refresh.Timeout.
func (c *Client) runFlight(trigger refreshTrigger, rejected string) error {
	c.refreshState.Store(int32(RefreshRefreshing))
	defer c.refreshState.Store(int32(RefreshIdle))

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Refresh.Timeout)
	defer cancel()

	access, refresh, err := store.Load(ctx, c.store)
	if err != nil {
		return err
	}

	if c.flightUnneeded(trigger, access, rejected) {
		c.metrics.Inc(MetricRefreshSkipped)
		return nil
	}

	if refresh == "" {
		if access == "" {
			return ErrNotLoggedIn
		}
		return c.failFlight(ctx, trigger, "", ErrRefreshTokenMissing)
	}

	c.metrics.Inc(MetricRefreshStarted)
	start := time.Now()
	pair, err := c.identity.Refresh(ctx, refresh)
	if err == nil {
		if _, derr := token.Decode(pair.Access); derr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidIssuedToken, derr)
		}
	}
	swapped := false
	if err == nil {
		swapped, err = c.store.SwapPair(ctx, refresh, pair.Access, pair.Refresh)
	}
	c.metrics.Observe(MetricRefreshLatency, time.Since(start))
	if err != nil {
		return c.failFlight(ctx, trigger, refresh, err)
	}
	if !swapped {
		c.discardPair(ctx, pair)
		return c.superseded(ctx, trigger)
	}

	sess := SessionFromToken(pair.Access, c.now())
	c.metrics.Inc(MetricRefreshSuccess)
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditRefreshSuccess,
		Subject:   sess.Identity,
		Role:      string(sess.Role),
		Trigger:   trigger.String(),
		Success:   true,
	})
	c.logger.Debug("token pair refreshed", slog.String("trigger", trigger.String()))
	return nil
}

// flightUnneeded reports whether another writer already produced a usable
// access token.
func (c *Client) flightUnneeded(trigger refreshTrigger, access, rejected string) bool {
	switch trigger {
	case triggerProactive:
		return c.freshEnough(access)
	case triggerReactive:
		if rejected == "" || access == rejected || access == "" {
			return false
		}
		_, err := token.Check(access, c.now())
		return err == nil
	}
	return false
}

// superseded ends a flight whose credentials were replaced by Login, Logout or
// another client while it ran. Nothing is written. Waiters see the store as it
// now is.
func (c *Client) superseded(ctx context.Context, trigger refreshTrigger) error {
	c.metrics.Inc(MetricRefreshSkipped)
	c.logger.Debug("refresh superseded", slog.String("trigger", trigger.String()))

	access, err := c.store.Access(ctx)
	if err != nil {
		return err
	}
	if access == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// discardPair revokes a pair that lost the race to another writer, so no
// live refresh token is left behind at the identity service.
func (c *Client) discardPair(ctx context.Context, pair TokenPair) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Request.LogoutTimeout)
	defer cancel()
	if err := c.identity.Logout(lctx, pair.Access, pair.Refresh); err != nil {
		c.logger.Warn("revoke superseded token pair", slog.Any("err", err))
	}
}

// failFlight ends the session that held refresh: the store is cleared and
// the forced-logout event fires. When refresh is no longer the stored token
// the session already ended or was replaced, and the flight is superseded
// instead. Waiters receive *RefreshError.
func (c *Client) failFlight(ctx context.Context, trigger refreshTrigger, refresh string, cause error) error {
	c.refreshState.Store(int32(RefreshFailed))

	// The flight deadline may be what failed the refresh.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Refresh.Timeout)
	defer cancel()

	swapped, err := c.store.SwapPair(ctx, refresh, "", "")
	if err != nil {
		// Fail closed: the credentials cannot be shown to have changed.
		c.logger.Error("clear tokens after failed refresh", slog.Any("err", err))
		swapped = true
	}
	if !swapped {
		return c.superseded(ctx, trigger)
	}
	c.metrics.Inc(MetricRefreshFailure)

	c.emitAudit(ctx, AuditEvent{
		EventType: AuditRefreshFailure,
		Trigger:   trigger.String(),
		Error:     cause.Error(),
	})
	c.logger.Warn("refresh failed",
		slog.String("trigger", trigger.String()),
		slog.Any("err", cause),
		slog.Bool("rejected", errors.Is(cause, ErrRefreshRejected)))

	c.forcedLogout(ctx, cause)
	return &RefreshError{Cause: cause}
}

func (c *Client) forcedLogout(ctx context.Context, cause error) {
	c.metrics.Inc(MetricForcedLogout)
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditForcedLogout,
		Error:     cause.Error(),
	})
	c.forced.Emit(ForcedLogout{Reason: cause, At: c.now()})
	c.notify(ctx)
}
