package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AuditEvent holds the schema definition for the append-only audit sink
// (spec.md §6.2's audit.append) — one record per state transition of
// interest: workflow start/end, validation create/resolve, cache hit,
// agent error.
type AuditEvent struct {
	ent.Schema
}

// Fields of the AuditEvent.
func (AuditEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable(),
		field.String("request_id").
			Immutable(),
		field.String("fingerprint").
			Optional().
			Immutable(),
		field.Enum("event_type").
			Values("WORKFLOW_START", "WORKFLOW_END", "VALIDATION_CREATE",
				"VALIDATION_RESOLVE", "CACHE_HIT", "AGENT_ERROR").
			Immutable(),
		field.JSON("payload", map[string]any{}).
			Optional().
			Immutable(),
		field.Time("recorded_at").
			Immutable().
			Default(time.Now),
	}
}

// Indexes of the AuditEvent.
func (AuditEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("request_id"),
		index.Fields("event_type", "recorded_at"),
	}
}
