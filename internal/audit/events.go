// Package audit records gate decisions as structured audit events.
package audit

import (
	"context"
	"time"

	"github.com/upb/access-gate/gate"
	"github.com/upb/access-gate/identity"
	"github.com/upb/access-gate/internal/shared"
	"go.uber.org/zap"
)

const anonymousPrincipal = "anonymous"

// Event captures one access decision.
// Never carries tokens or request bodies.
type Event struct {
	TimestampMs int64
	RequestID   string
	Principal   string
	Gate        string
	Predicate   string
	Decision    string
	Reason      string
	Method      string
	Path        string
}

// Recorder writes audit events to a dedicated logger. It implements gate.Observer.
type Recorder struct {
	logger      *zap.Logger
	denialsOnly bool
	now         func() time.Time
}

// NewRecorder creates a recorder. With denialsOnly set, allowed requests are not recorded.
func NewRecorder(logger *zap.Logger, denialsOnly bool) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger:      logger.Named("audit"),
		denialsOnly: denialsOnly,
		now:         time.Now,
	}
}

// ObserveDecision implements gate.Observer
func (r *Recorder) ObserveDecision(ctx context.Context, d gate.Decision) {
	if d.Allowed && r.denialsOnly {
		return
	}
	r.Record(NewEvent(ctx, d, r.now()))
}

// Record writes a single event
func (r *Recorder) Record(e Event) {
	r.logger.Info("access decision",
		zap.Int64("timestamp_ms", e.TimestampMs),
		zap.String("request_id", e.RequestID),
		zap.String("principal", e.Principal),
		zap.String("gate", e.Gate),
		zap.String("predicate", e.Predicate),
		zap.String("decision", e.Decision),
		zap.String("reason", e.Reason),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
	)
}

// NewEvent builds an event from a decision and the request context
func NewEvent(ctx context.Context, d gate.Decision, at time.Time) Event {
	decision := "deny"
	if d.Allowed {
		decision = "allow"
	}
	return Event{
		TimestampMs: at.UnixMilli(),
		RequestID:   shared.RequestID(ctx),
		Principal:   principalName(identity.FromContext(ctx)),
		Gate:        d.Gate,
		Predicate:   d.Predicate,
		Decision:    decision,
		Reason:      d.Reason,
		Method:      d.Method,
		Path:        d.Path,
	}
}

func principalName(user identity.User) string {
	p, ok := user.(*identity.Principal)
	if !ok || p == nil {
		return anonymousPrincipal
	}
	if p.Username != "" {
		return p.Username
	}
	return p.ID.String()
}
