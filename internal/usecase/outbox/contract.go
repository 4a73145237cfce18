package outbox

import (
	"context"
	"time"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
)

// Store is the outbox table.
type Store interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]catalog.SyncIntent, error)
	MarkDone(ctx context.Context, productID string, version int64) (bool, error)
	MarkFailed(ctx context.Context, in catalog.SyncIntent, cause error, maxAttempts int) (bool, error)
	PendingCount(ctx context.Context) (int, error)
}

// Syncer rebuilds the search documents of one product.
type Syncer interface {
	SyncProduct(ctx context.Context, productID string) error
}
