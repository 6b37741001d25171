package courseauth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/BUICUONGG/courseauth/store"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	sink := &countingSink{}

	// WithConfig after WithAuditSink switches auditing back off.
	c, err := New().
		WithAuditSink(sink).
		WithConfig(DefaultConfig()).
		WithStore(store.NewMemoryStore()).
		WithIdentity(id).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = c.Logout(context.Background())
	_ = c.Close()

	if sink.Count() != 0 {
		t.Fatalf("sink called %d times", sink.Count())
	}
	if c.AuditDropped() != 0 {
		t.Fatalf("dropped = %d", c.AuditDropped())
	}
}

func TestAuditForcedLogoutEvent(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	sink := NewChannelSink(16)
	c := newTestClient(t, id, clock, clientOpts{sink: sink})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	id.refreshErr = ErrRefreshRejected
	_ = c.ForceRefresh(context.Background())
	_ = c.Close()

	var types []string
	for len(types) < 3 {
		select {
		case ev := <-sink.Events():
			types = append(types, ev.EventType)
			if ev.EventType == AuditRefreshFailure && (ev.Success || ev.Error == "" || ev.Trigger != "reactive") {
				t.Fatalf("refresh failure event = %+v", ev)
			}
		default:
			t.Fatalf("events = %v, want 3", types)
		}
	}
	want := []string{AuditLoginSuccess, AuditRefreshFailure, AuditForcedLogout}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestAuditNoTokensInEventsOrLogs(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)

	var events, logs syncBuffer
	c, err := New().
		WithConfig(DefaultConfig()).
		WithStore(store.NewMemoryStore()).
		WithIdentity(id).
		WithClock(clock.Now).
		WithLogger(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))).
		WithAuditSink(NewJSONWriterSink(&events)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Login(ctx, "student@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	access, refresh, err := store.Load(ctx, c.store)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	needles := []string{access, refresh}

	if err := c.ForceRefresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	access, refresh, _ = store.Load(ctx, c.store)
	needles = append(needles, access, refresh)

	id.refreshErr = ErrRefreshRejected
	_ = c.ForceRefresh(ctx)
	_ = c.Close()

	if !strings.Contains(events.String(), AuditForcedLogout) {
		t.Fatalf("expected forced logout in audit output")
	}
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(events.String(), needle) {
			t.Fatalf("token leaked into audit output")
		}
		if strings.Contains(logs.String(), needle) {
			t.Fatalf("token leaked into logs")
		}
	}
}
