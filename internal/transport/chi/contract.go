package chi

import (
	"context"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
	catalogrepo "github.com/kailas-cloud/skuindex/internal/repository/catalog"
	healthuc "github.com/kailas-cloud/skuindex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/skuindex/internal/usecase/search"
)

// Parser turns the raw q parameter into a parsed query.
type Parser interface {
	Parse(raw string) query.Parsed
}

// Searcher runs the per-SKU search.
type Searcher interface {
	Search(ctx context.Context, parsed query.Parsed, opts ...searchuc.Option) ([]document.SKU, error)
}

// LegacySearcher runs the per-product union search.
type LegacySearcher interface {
	Search(ctx context.Context, parsed query.Parsed) ([]legacy.Aggregate, error)
}

// Catalog is the relational catalog: writes plus the direct relational search.
type Catalog interface {
	CreateProduct(ctx context.Context, d *catalog.Draft) (catalogrepo.Created, error)
	EnqueueSync(ctx context.Context, productID string) error
	SearchProducts(ctx context.Context, parsed query.Parsed, limit int) ([]catalog.Product, error)
}

// SKUReader reads single SKU documents.
type SKUReader interface {
	Get(ctx context.Context, skuID string) (document.SKU, error)
}

// Kicker wakes the outbox relay.
type Kicker interface {
	Kick()
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
