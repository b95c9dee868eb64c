// Package audit records security-relevant events to an append-only sink.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/metrics"
)

// Status is the outcome attached to an audit event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
)

// Event is one audit log entry. Empty optional fields are stored as NULL.
type Event struct {
	UserID     *uuid.UUID
	Category   string
	Action     string
	TargetType string
	TargetID   string
	IPAddress  string
	UserAgent  string
	Status     Status
	Details    map[string]any
}

// Sink persists audit events.
type Sink interface {
	Append(ctx context.Context, e Event) error
}

// Recorder appends events and never lets a sink failure reach the caller.
type Recorder struct {
	sink Sink
	log  *zap.Logger
}

// NewRecorder wraps sink. A nil sink turns Record into a no-op.
func NewRecorder(sink Sink, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sink: sink, log: log}
}

// Record appends e, defaulting Status to success. Errors are logged and counted, not returned.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || r.sink == nil {
		return
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}

	if err := r.sink.Append(ctx, e); err != nil {
		metrics.ObserveAuditDropped()
		r.log.Warn("failed to append audit event",
			zap.String("category", e.Category),
			zap.String("action", e.Action),
			zap.String("target_id", e.TargetID),
			zap.Error(err),
		)
	}
}
