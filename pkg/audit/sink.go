// Package audit implements the append-only audit sink spec.md §6.2
// requires: one record per state transition of interest (workflow
// start/end, validation create/resolve, cache hit, agent error).
// Grounded on the teacher's EventService (ent-backed append/query of a
// flat record type), stripped of the pub/sub distribution layer that
// EventService pairs with elsewhere in the teacher's codebase — nothing
// here needs real-time fanout.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/medqa-orchestrator/ent"
	"github.com/codeready-toolchain/medqa-orchestrator/ent/auditevent"
)

// EventType identifies the kind of transition being recorded.
type EventType string

const (
	EventWorkflowStart     EventType = "WORKFLOW_START"
	EventWorkflowEnd       EventType = "WORKFLOW_END"
	EventValidationCreate  EventType = "VALIDATION_CREATE"
	EventValidationResolve EventType = "VALIDATION_RESOLVE"
	EventCacheHit          EventType = "CACHE_HIT"
	EventAgentError        EventType = "AGENT_ERROR"
)

// Sink appends audit records. It never fails the caller's workflow: a
// write failure is logged by the caller, not propagated as a workflow
// error, since the audit trail is observability, not a correctness
// dependency.
type Sink struct {
	client *ent.Client
	now    func() time.Time
}

// NewSink builds a Sink backed by client.
func NewSink(client *ent.Client) *Sink {
	return &Sink{client: client, now: time.Now}
}

// Append records one event. payload may be nil.
func (s *Sink) Append(ctx context.Context, eventType EventType, requestID, fingerprint string, payload map[string]any) error {
	builder := s.client.AuditEvent.Create().
		SetID(uuid.New().String()).
		SetRequestID(requestID).
		SetEventType(auditevent.EventType(eventType)).
		SetRecordedAt(s.now())
	if fingerprint != "" {
		builder = builder.SetFingerprint(fingerprint)
	}
	if payload != nil {
		builder = builder.SetPayload(payload)
	}
	if _, err := builder.Save(ctx); err != nil {
		return fmt.Errorf("audit: append event: %w", err)
	}
	return nil
}

// Since returns every event for requestID in recorded_at order, for
// inspecting one workflow's audit trail.
func (s *Sink) Since(ctx context.Context, requestID string) ([]*ent.AuditEvent, error) {
	events, err := s.client.AuditEvent.Query().
		Where(auditevent.RequestIDEQ(requestID)).
		Order(ent.Asc(auditevent.FieldRecordedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	return events, nil
}
