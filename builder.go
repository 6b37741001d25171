package courseauth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BUICUONGG/courseauth/internal/audit"
	"github.com/BUICUONGG/courseauth/store"
)

// HTTPDoer sends authorized requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Builder assembles a Client. A Builder builds at most one Client.
type Builder struct {
	config   Config
	store    store.Store
	identity IdentityService
	http     HTTPDoer
	logger   *slog.Logger
	sink     AuditSink
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the token store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithIdentity sets the identity service. Required.
func (b *Builder) WithIdentity(svc IdentityService) *Builder {
	b.identity = svc
	return b
}

// WithHTTPClient sets the doer used by Execute. Defaults to an *http.Client
// with Config.Request.Timeout.
func (b *Builder) WithHTTPClient(doer HTTPDoer) *Builder {
	b.http = doer
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithClock replaces time.Now for expiry decisions and notifications.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	if !enabled {
		b.config.Metrics.EnableLatencyHistograms = false
	}
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("token store required")
	}
	if b.identity == nil {
		return nil, errors.New("identity service required")
	}

	doer := b.http
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Request.Timeout}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		config:   cfg,
		store:    b.store,
		identity: b.identity,
		http:     doer,
		logger:   logger.With(slog.String("origin", cfg.Origin)),
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.sink, now),
	}
	c.authFailure = make(map[int]struct{}, len(cfg.Request.AuthFailureStatuses))
	for _, code := range cfg.Request.AuthFailureStatuses {
		c.authFailure[code] = struct{}{}
	}
	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		c.logger.Warn("config lint",
			slog.String("code", w.Code),
			slog.String("severity", w.Severity.String()),
			slog.String("detail", w.Message),
		)
	}

	b.built = true
	return c, nil
}
