package legacy

import (
	"context"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
)

// Repository runs structured queries against the legacy index.
type Repository interface {
	Query(ctx context.Context, q *db.Query) ([]legacy.Aggregate, error)
}

// Parser turns raw input into a parsed query.
type Parser interface {
	Parse(raw string) query.Parsed
}
