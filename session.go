package courseauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
)

// Session is the logical session derived from the stored access token. It is
// never persisted.
type Session struct {
	LoggedIn  bool
	Role      token.Role
	Identity  string
	IsAdmin   bool
	IsStudent bool
	IsMentor  bool
}

// SessionFromToken derives a Session from a raw access token at now. Empty,
// malformed and expired tokens yield the zero Session.
func SessionFromToken(raw string, now time.Time) Session {
	if raw == "" {
		return Session{}
	}
	tok, err := token.Check(raw, now)
	if err != nil {
		return Session{}
	}
	id := token.DeriveIdentity(tok.Claims())
	return Session{
		LoggedIn:  true,
		Role:      id.Role,
		Identity:  id.Subject,
		IsAdmin:   id.IsAdmin,
		IsStudent: id.IsStudent,
		IsMentor:  id.IsMentor,
	}
}

// Session reads the store and derives the current session. A store error is
// logged and reported as logged out.
func (c *Client) Session(ctx context.Context) Session {
	access, err := c.store.Access(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read access token", slog.Any("err", err))
		return Session{}
	}
	return SessionFromToken(access, c.now())
}

// Subscribe registers fn for session changes: login, logout, store changes
// (including other clients sharing the store), forced logout, and a periodic
// expiry re-check that only reports actual changes. The first subscriber
// starts the re-check ticker and the store watch; the last one to leave stops
// them. The returned func is idempotent.
func (c *Client) Subscribe(fn func(Session)) (unsubscribe func()) {
	c.watchMu.Lock()
	id, n := c.listeners.Add(fn)
	if n == 1 && !c.closed.Load() {
		c.startWatchingLocked()
	}
	c.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchMu.Lock()
			defer c.watchMu.Unlock()
			if removed, remaining := c.listeners.Remove(id); removed && remaining == 0 {
				c.stopWatchingLocked()
			}
		})
	}
}

// startWatchingLocked runs under watchMu, so the store calls it makes are
// bounded by Config.Request.Timeout, or Config.Refresh.Timeout when requests
// have no timeout.
func (c *Client) startWatchingLocked() {
	timeout := c.config.Request.Timeout
	if timeout <= 0 {
		timeout = c.config.Refresh.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.lastMu.Lock()
	c.lastSent = c.Session(ctx)
	c.lastMu.Unlock()

	stop, err := c.store.Watch(ctx, c.onStoreChange)
	if err != nil {
		c.logger.Warn("watch token store", slog.Any("err", err))
	} else {
		c.watchStop = stop
	}

	c.tickStop = make(chan struct{})
	go c.tickLoop(c.config.Session.TickInterval, c.tickStop)
}

// stopWatchingLocked does not wait for the tick goroutine, so a listener may
// unsubscribe from inside a notification.
func (c *Client) stopWatchingLocked() {
	if c.watchStop != nil {
		c.watchStop()
		c.watchStop = nil
	}
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Client) tickLoop(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.tick()
		}
	}
}

// tick re-derives the session and notifies only when it changed since the
// last delivered value.
func (c *Client) tick() {
	sess := c.Session(context.Background())

	c.lastMu.Lock()
	if sess == c.lastSent {
		c.lastMu.Unlock()
		return
	}
	c.lastSent = sess
	c.lastMu.Unlock()

	c.deliver(sess)
}

func (c *Client) onStoreChange(ch store.Change) {
	c.metrics.Inc(MetricStoreChange)
	c.logger.Debug("token store changed", slog.String("slot", string(ch.Slot)))
	c.notify(context.Background())
}

// notify derives the session and delivers it unconditionally.
func (c *Client) notify(ctx context.Context) Session {
	sess := c.Session(ctx)

	c.lastMu.Lock()
	c.lastSent = sess
	c.lastMu.Unlock()

	c.deliver(sess)
	return sess
}

func (c *Client) deliver(sess Session) {
	if c.listeners.Len() == 0 {
		return
	}
	c.metrics.Inc(MetricSessionNotified)
	c.listeners.Emit(sess)
}
