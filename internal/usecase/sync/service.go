// Package sync rebuilds the search documents of one product from the catalog.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/metrics"
	"github.com/kailas-cloud/skuindex/internal/usecase/transform"
)

// Default timeouts.
const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultIndexTimeout = 10 * time.Second
	DefaultAsyncTimeout = 30 * time.Second
)

// Config bounds the external calls of one sync.
type Config struct {
	FetchTimeout time.Duration
	IndexTimeout time.Duration
	AsyncTimeout time.Duration
}

// Service syncs products into the SKU and legacy indexes.
type Service struct {
	catalog   Catalog
	skus      SKUWriter
	legacy    LegacyWriter
	transform *transform.Transformer
	cfg       Config
	logger    *zap.Logger
	inflight  stdsync.WaitGroup
}

// New creates a sync service. legacy may be nil to skip the legacy index.
func New(c Catalog, skus SKUWriter, legacy LegacyWriter, cfg Config, logger *zap.Logger) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = DefaultIndexTimeout
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = DefaultAsyncTimeout
	}
	return &Service{
		catalog:   c,
		skus:      skus,
		legacy:    legacy,
		transform: transform.New(),
		cfg:       cfg,
		logger:    logger,
	}
}

// SyncProduct fetches, transforms and writes the documents of productID.
// A missing product or a product without variants is logged and skipped.
// Index failures return an error wrapping domain.ErrIndexUnavailable.
func (s *Service) SyncProduct(ctx context.Context, productID string) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.SyncTotal.WithLabelValues(outcome).Inc()
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	log := s.logger.With(zap.String("product_id", productID))

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	product, err := s.catalog.FetchAggregate(fetchCtx, productID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		outcome = "skipped"
		log.Warn("Product not found, skipping sync")
		return nil
	}
	if err != nil {
		outcome = "failed"
		log.Error("Fetch product failed", zap.Error(err))
		return fmt.Errorf("fetch product %s: %w", productID, err)
	}

	res, err := s.transform.SKUDocuments(&product)
	if errors.Is(err, domain.ErrEmptyVariantSet) {
		outcome = "skipped"
		log.Warn("Product has no variants, skipping sync")
		return nil
	}
	if err != nil {
		outcome = "failed"
		return fmt.Errorf("transform product %s: %w", productID, err)
	}
	for _, skipped := range res.Skipped {
		metrics.SyncSkippedVariantsTotal.Inc()
		log.Warn("Variant skipped",
			zap.String("variant_id", skipped.VariantID),
			zap.String("reason", skipped.Reason),
		)
	}

	indexCtx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(indexCtx)
	g.Go(func() error {
		if err := s.skus.Replace(gctx, product.ID, res.Docs, res.SkippedIDs()...); err != nil {
			return fmt.Errorf("write sku documents: %w", err)
		}
		return nil
	})
	if s.legacy != nil {
		g.Go(func() error {
			agg, err := s.transform.LegacyAggregate(&product)
			if err != nil {
				return fmt.Errorf("build legacy document: %w", err)
			}
			if err := s.legacy.Put(gctx, &agg); err != nil {
				return fmt.Errorf("write legacy document: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		outcome = "failed"
		log.Error("Index write failed", zap.Error(err))
		return fmt.Errorf("%w: product %s: %w", domain.ErrIndexUnavailable, productID, err)
	}

	log.Info("Product synced",
		zap.Int("skus", len(res.Docs)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// SyncAsync runs SyncProduct in its own goroutine with a background
// timeout. Errors are logged only.
func (s *Service) SyncAsync(productID string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AsyncTimeout)
		defer cancel()
		if err := s.SyncProduct(ctx, productID); err != nil {
			s.logger.Error("Async sync failed", zap.String("product_id", productID), zap.Error(err))
		}
	}()
}

// Wait blocks until every SyncAsync call has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}
