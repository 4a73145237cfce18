package search

import (
	"context"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
	"github.com/kailas-cloud/skuindex/internal/domain/search/result"
)

// Repository runs structured queries against the SKU index.
type Repository interface {
	Query(ctx context.Context, q *db.Query) ([]result.Hit, error)
}

// Parser turns raw input into a parsed query.
type Parser interface {
	Parse(raw string) query.Parsed
}
