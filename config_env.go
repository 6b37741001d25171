package courseauth

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// fileConfig is the YAML/env layout read by LoadConfig. Environment variables
// override file values; env-default fills the rest. Booleans that default to
// true carry no env-default because cleanenv would also apply it over an
// explicit false; LoadConfig presets them instead.
type fileConfig struct {
	Origin string `yaml:"origin" env:"COURSEAUTH_ORIGIN" env-default:"default"`

	Refresh struct {
		Threshold time.Duration `yaml:"threshold" env:"COURSEAUTH_REFRESH_THRESHOLD" env-default:"5m"`
		Timeout   time.Duration `yaml:"timeout" env:"COURSEAUTH_REFRESH_TIMEOUT" env-default:"10s"`
	} `yaml:"refresh"`

	Session struct {
		TickInterval time.Duration `yaml:"tick_interval" env:"COURSEAUTH_SESSION_TICK" env-default:"60s"`
	} `yaml:"session"`

	Request struct {
		Timeout             time.Duration `yaml:"timeout" env:"COURSEAUTH_REQUEST_TIMEOUT" env-default:"30s"`
		LogoutTimeout       time.Duration `yaml:"logout_timeout" env:"COURSEAUTH_LOGOUT_TIMEOUT" env-default:"5s"`
		AuthFailureStatuses []int         `yaml:"auth_failure_statuses" env:"COURSEAUTH_AUTH_FAILURE_STATUSES" env-separator:"," env-default:"401"`
	} `yaml:"request"`

	Audit struct {
		Enabled    bool `yaml:"enabled" env:"COURSEAUTH_AUDIT_ENABLED"`
		BufferSize int  `yaml:"buffer_size" env:"COURSEAUTH_AUDIT_BUFFER" env-default:"1024"`
		DropIfFull bool `yaml:"drop_if_full" env:"COURSEAUTH_AUDIT_DROP_IF_FULL"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled           bool `yaml:"enabled" env:"COURSEAUTH_METRICS_ENABLED"`
		LatencyHistograms bool `yaml:"latency_histograms" env:"COURSEAUTH_METRICS_LATENCY"`
	} `yaml:"metrics"`
}

// LoadConfig reads a Config from the YAML file at path, then from the
// environment. An empty path reads the environment only. The result is
// validated.
func LoadConfig(path string) (Config, error) {
	var fc fileConfig
	fc.Audit.DropIfFull = true
	fc.Metrics.Enabled = true
	fc.Metrics.LatencyHistograms = true

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&fc)
	} else {
		err = cleanenv.ReadConfig(path, &fc)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg := Config{
		Origin: fc.Origin,
		Refresh: RefreshConfig{
			Threshold: fc.Refresh.Threshold,
			Timeout:   fc.Refresh.Timeout,
		},
		Session: SessionConfig{
			TickInterval: fc.Session.TickInterval,
		},
		Request: RequestConfig{
			Timeout:             fc.Request.Timeout,
			LogoutTimeout:       fc.Request.LogoutTimeout,
			AuthFailureStatuses: fc.Request.AuthFailureStatuses,
		},
		Audit: AuditConfig{
			Enabled:    fc.Audit.Enabled,
			BufferSize: fc.Audit.BufferSize,
			DropIfFull: fc.Audit.DropIfFull,
		},
		Metrics: MetricsConfig{
			Enabled:                 fc.Metrics.Enabled,
			EnableLatencyHistograms: fc.Metrics.LatencyHistograms,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
