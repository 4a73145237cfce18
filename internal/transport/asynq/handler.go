package asynq

import (
	"context"
	"encoding/json"
	"time"

	hibiken "github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DefaultSyncTimeout bounds one event-triggered sync.
const DefaultSyncTimeout = 30 * time.Second

// Syncer rebuilds the search documents of one product.
type Syncer interface {
	SyncProduct(ctx context.Context, productID string) error
}

// Handler processes product-changed tasks.
type Handler struct {
	syncer  Syncer
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a task handler. timeout <= 0 takes DefaultSyncTimeout.
func NewHandler(syncer Syncer, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	return &Handler{syncer: syncer, timeout: timeout, logger: logger}
}

// ProcessTask syncs the product named in the payload. It always returns nil
// so the message is acknowledged; failures are logged.
func (h *Handler) ProcessTask(ctx context.Context, t *hibiken.Task) error {
	var p ProductChangedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Warn("Dropping malformed product event",
			zap.String("type", t.Type()),
			zap.Error(err),
		)
		return nil
	}
	if p.ProductID == "" {
		h.logger.Warn("Dropping product event without productId", zap.String("type", t.Type()))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.syncer.SyncProduct(ctx, p.ProductID); err != nil {
		h.logger.Error("Event-triggered sync failed",
			zap.String("product_id", p.ProductID),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Debug("Event-triggered sync done", zap.String("product_id", p.ProductID))
	return nil
}
