// Command courseauth-loadtest drives many concurrent authorized requests
// against sessions that are about to expire and reports how many refresh
// calls reached the identity service.
//
// Each round logs in with a short-lived access token, so every request of
// the round sees a session inside the refresh threshold. A correct client
// performs exactly one refresh per round however many requests race.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BUICUONGG/courseauth"
	"github.com/BUICUONGG/courseauth/identity"
	"github.com/BUICUONGG/courseauth/internal/devidentity"
	"github.com/BUICUONGG/courseauth/store"
	"github.com/BUICUONGG/courseauth/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	var (
		concurrency  = flag.Int("concurrency", 256, "concurrent requests per round")
		rounds       = flag.Int("rounds", 10, "number of near-expiry sessions to drive")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix       = flag.String("prefix", store.DefaultRedisPrefix, "token key prefix")
		refreshDelay = flag.Duration("refresh-delay", 50*time.Millisecond, "artificial identity refresh latency")
	)
	flag.Parse()

	if *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var rdb *redis.Client
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	dev, err := devidentity.New(devidentity.Config{Key: []byte("courseauth-loadtest")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity init: %v\n", err)
		os.Exit(1)
	}
	if err := dev.AddUser("load@courses.test", "load-secret", token.RoleStudent); err != nil {
		fmt.Fprintf(os.Stderr, "seed user: %v\n", err)
		os.Exit(1)
	}
	dev.SetRefreshDelay(*refreshDelay)

	idSrv := httptest.NewServer(dev)
	defer idSrv.Close()
	api := httptest.NewServer(dev.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	defer api.Close()

	cfg := courseauth.DefaultConfig()
	cfg.Origin = "loadtest.courses.test"
	client, err := courseauth.New().
		WithConfig(cfg).
		WithStore(store.NewRedisStore(rdb, *prefix, cfg.Origin)).
		WithIdentity(identity.New(idSrv.URL, identity.WithHTTPClient(idSrv.Client()))).
		WithHTTPClient(&http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}).
		WithLogger(logger).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client build: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	var all []time.Duration
	var failures int64
	start := time.Now()
	for round := 0; round < *rounds; round++ {
		// Inside the default five minute threshold on purpose.
		dev.SetAccessTTL(time.Minute)
		if _, err := client.Login(ctx, "load@courses.test", "load-secret"); err != nil {
			fmt.Fprintf(os.Stderr, "login: %v\n", err)
			os.Exit(1)
		}
		dev.SetAccessTTL(time.Hour)

		before := dev.RefreshCalls()
		samples, failed := runRound(client, api.URL+"/courses", *concurrency)
		all = append(all, samples...)
		failures += failed
		fmt.Printf("round %d: requests=%d failures=%d refresh_calls=%d\n",
			round+1, len(samples), failed, dev.RefreshCalls()-before)
	}
	total := time.Since(start)

	snap := client.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("execute", computeStats(total, all, failures))
	fmt.Printf("refresh: started=%d success=%d waiters=%d identity_calls=%d\n",
		snap.Counters[courseauth.MetricRefreshStarted],
		snap.Counters[courseauth.MetricRefreshSuccess],
		snap.Counters[courseauth.MetricRefreshWaiter],
		dev.RefreshCalls(),
	)
}

func runRound(client *courseauth.Client, url string, concurrency int) ([]time.Duration, int64) {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, 0, concurrency)
		mu        sync.Mutex
		start     = make(chan struct{})
	)

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			t0 := time.Now()
			resp, err := client.Execute(req)
			d := time.Since(t0)
			if err != nil {
				atomic.AddInt64(&failures, 1)
			} else {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failures, 1)
				}
			}

			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	return latencies, failures
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
