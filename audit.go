package courseauth

import (
	"context"

	"github.com/BUICUONGG/courseauth/internal/audit"
)

// AuditEvent is one session lifecycle record. It never carries token values.
type AuditEvent = audit.Event

// AuditSink receives audit events from the client's dispatcher goroutine.
type AuditSink = audit.Sink

// Sinks re-exported for callers.
type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewSlogSink       = audit.NewSlogSink
)

// Audit event types.
const (
	AuditLoginSuccess   = audit.TypeLoginSuccess
	AuditLoginFailure   = audit.TypeLoginFailure
	AuditLogout         = audit.TypeLogout
	AuditRefreshSuccess = audit.TypeRefreshSuccess
	AuditRefreshFailure = audit.TypeRefreshFailure
	AuditForcedLogout   = audit.TypeForcedLogout
)

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	event.Origin = c.config.Origin
	c.audit.Emit(ctx, event)
}

// AuditDropped reports audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}
