package sync

import (
	"context"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
)

// Catalog reads product aggregates.
type Catalog interface {
	FetchAggregate(ctx context.Context, productID string) (catalog.Product, error)
}

// SKUWriter replaces the SKU documents of one product. SKUs listed in
// retain are kept even when absent from docs.
type SKUWriter interface {
	Replace(ctx context.Context, spuID string, docs []document.SKU, retain ...string) error
}

// LegacyWriter stores the legacy per-product document.
type LegacyWriter interface {
	Put(ctx context.Context, a *legacy.Aggregate) error
}
