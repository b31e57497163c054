package port

import (
	"context"

	"github.com/sqlverdict/sqlverdict/internal/core/domain"
)

// SchemaSource produces a point-in-time SchemaMapping, typically by
// introspecting a live database. The returned mapping must be treated as
// read-only by callers.
type SchemaSource interface {
	Snapshot(ctx context.Context) (domain.SchemaMapping, error)
}
