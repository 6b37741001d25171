package courseauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one questionable but valid setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	sel := r.BySeverity(min)
	if len(sel) == 0 {
		return nil
	}
	parts := make([]string, 0, len(sel))
	for _, w := range sel {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint flags settings that pass Validate but are likely mistakes. Call it
// after Validate; it assumes a valid Config.
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Refresh.Threshold == 0 {
		add("proactive_refresh_disabled", LintWarn,
			"Refresh Threshold is 0; tokens are only refreshed after a rejection")
	} else if c.Refresh.Threshold < 30*time.Second {
		add("threshold_short", LintWarn,
			"Refresh Threshold below 30s leaves little room for clock skew")
	}

	if c.Request.Timeout > 0 && c.Refresh.Timeout > c.Request.Timeout {
		add("refresh_timeout_exceeds_request_timeout", LintWarn,
			"a request can time out while its refresh is still running")
	}

	if c.Session.TickInterval > 5*time.Minute {
		add("tick_slow", LintInfo,
			"expiry is noticed up to TickInterval late by session subscribers")
	}

	for _, status := range c.Request.AuthFailureStatuses {
		switch {
		case status == http.StatusForbidden:
			add("auth_failure_forbidden", LintHigh,
				"403 in AuthFailureStatuses turns every permission denial into a refresh")
		case status < 400 || status > 499:
			add("auth_failure_not_4xx", LintHigh,
				fmt.Sprintf("status %d in AuthFailureStatuses is not a client error", status))
		}
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session lifecycle events are not audited")
	} else if !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn,
			"a full audit buffer blocks login, logout and refresh")
	}

	if !c.Metrics.Enabled {
		add("metrics_disabled", LintInfo, "client metrics are not collected")
	}

	return r
}
