package courseauth

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRefreshConcurrencyMixedTriggersSingleWinner(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	id.ttl = 2 * time.Minute // inside the default threshold
	c := newTestClient(t, id, clock, clientOpts{})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	id.ttl = time.Hour
	id.gate = make(chan struct{})

	const n = 16
	var started, wg sync.WaitGroup
	started.Add(n)
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(force bool) {
			defer wg.Done()
			started.Done()
			if force {
				results <- c.ForceRefresh(context.Background())
				return
			}
			results <- c.EnsureFresh(context.Background())
		}(i%2 == 1)
	}

	started.Wait()
	waitFor(t, func() bool { return id.refreshCalls.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if c.RefreshState() != RefreshRefreshing {
		t.Fatalf("state = %v, want refreshing", c.RefreshState())
	}
	close(id.gate)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if got := id.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one identity refresh, got %d", got)
	}

	snap := c.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 1 || snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("started=%d success=%d", snap.Counters[MetricRefreshStarted], snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricRefreshWaiter] == 0 {
		t.Fatalf("expected shared waiters")
	}
	if !c.Session(context.Background()).LoggedIn {
		t.Fatalf("session lost after refresh")
	}
}

func TestRefreshSequentialFlightsAreIndependent(t *testing.T) {
	clock := newTestClock()
	id := newFakeIdentity(t, clock)
	c := newTestClient(t, id, clock, clientOpts{})

	if _, err := c.Login(context.Background(), "student@b.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.ForceRefresh(context.Background()); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if got := id.refreshCalls.Load(); got != 3 {
		t.Fatalf("refresh calls = %d, want 3", got)
	}
}
