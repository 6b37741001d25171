package courseauth

import (
	"errors"
	"net/http"
	"slices"
	"time"
)

// Config is the client configuration. Build copies it; later changes to the
// caller's value have no effect.
type Config struct {
	// Origin names the token slot set, like a browser origin. It also labels
	// log records and audit events.
	Origin  string
	Refresh RefreshConfig
	Session SessionConfig
	Request RequestConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// RefreshConfig controls the refresh flight.
type RefreshConfig struct {
	// Threshold is the proactive window: an access token expiring within it
	// is refreshed before use.
	Threshold time.Duration
	// Timeout bounds one refresh flight, including the store writes.
	Timeout time.Duration
}

// SessionConfig controls session-change notifications.
type SessionConfig struct {
	// TickInterval is the period of the expiry re-check while anyone is
	// subscribed.
	TickInterval time.Duration
}

// RequestConfig controls authorized requests and logout.
type RequestConfig struct {
	// Timeout of the default HTTP client. Ignored when an HTTPDoer is
	// supplied to the Builder.
	Timeout time.Duration
	// LogoutTimeout bounds the best-effort identity logout call.
	LogoutTimeout time.Duration
	// AuthFailureStatuses are the response codes that trigger a reactive
	// refresh.
	AuthFailureStatuses []int
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Origin: "default",
		Refresh: RefreshConfig{
			Threshold: 5 * time.Minute,
			Timeout:   10 * time.Second,
		},
		Session: SessionConfig{
			TickInterval: 60 * time.Second,
		},
		Request: RequestConfig{
			Timeout:             30 * time.Second,
			LogoutTimeout:       5 * time.Second,
			AuthFailureStatuses: []int{http.StatusUnauthorized},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Request.AuthFailureStatuses = slices.Clone(cfg.Request.AuthFailureStatuses)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Origin == "" {
		return errors.New("Origin must not be empty")
	}

	// Refresh
	if c.Refresh.Threshold < 0 {
		return errors.New("Refresh Threshold must be >= 0")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	// Session
	if c.Session.TickInterval <= 0 {
		return errors.New("Session TickInterval must be > 0")
	}

	// Request
	if c.Request.Timeout < 0 {
		return errors.New("Request Timeout must be >= 0")
	}
	if c.Request.LogoutTimeout <= 0 {
		return errors.New("Request LogoutTimeout must be > 0")
	}
	if len(c.Request.AuthFailureStatuses) == 0 {
		return errors.New("Request AuthFailureStatuses must not be empty")
	}
	for _, code := range c.Request.AuthFailureStatuses {
		if code < 400 || code > 499 {
			return errors.New("Request AuthFailureStatuses must be 4xx codes")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
