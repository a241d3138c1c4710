package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates the full-text search GIN index for PostgreSQL
// on validation_requests.draft_response, so a reviewer dashboard can search
// pending drafts without a separate search service. The audit trail gets
// no full-text index.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// GIN index for validation draft full-text search
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_validation_requests_draft_gin
		ON validation_requests USING gin(to_tsvector('english', draft_response))`)
	if err != nil {
		return fmt.Errorf("failed to create draft_response GIN index: %w", err)
	}

	return nil
}
