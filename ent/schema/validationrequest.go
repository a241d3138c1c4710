package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ValidationRequest holds the schema definition for a pending (or resolved)
// human-in-the-loop decision raised by the SafetyClassifier.
type ValidationRequest struct {
	ent.Schema
}

// Fields of the ValidationRequest.
func (ValidationRequest) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("validation_id").
			Unique().
			Immutable(),
		field.String("query_fingerprint").
			Immutable(),
		field.Enum("trigger_kind").
			Values("SAFETY_REVIEW", "REGULATORY_COMPLIANCE", "MEDICAL_APPROVAL",
				"CRITICAL_DECISION", "QUALITY_ASSURANCE").
			Immutable(),
		field.Int("priority").
			Immutable().
			Comment("1-5, higher reviewed first"),
		field.Text("draft_response").
			Immutable(),
		field.String("detected_language").
			Immutable(),
		field.String("target_language").
			Optional(),
		field.Enum("status").
			Values("PENDING", "APPROVED", "REJECTED", "MODIFIED", "EXPIRED").
			Default("PENDING"),
		field.Text("modified_text").
			Optional(),
		field.Text("reviewer_notes").
			Optional(),
		field.Time("created_at").
			Immutable().
			Default(time.Now),
		field.Time("expires_at").
			Immutable(),
		field.Time("resolved_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the ValidationRequest. The composite (status, priority,
// created_at) index backs the PENDING scans and the queue snapshot ordering
// from spec.md §4.6 (priority desc, created_at asc); the query_fingerprint
// index backs lookups by fingerprint.
func (ValidationRequest) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "priority", "created_at"),
		index.Fields("query_fingerprint"),
	}
}
