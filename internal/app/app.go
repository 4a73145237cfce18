// Package app assembles the stores, repositories and services from config.
// Both binaries build their handles here and close them in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/config"
	"github.com/kailas-cloud/skuindex/internal/db"
	dbBleve "github.com/kailas-cloud/skuindex/internal/db/bleve"
	dbRedis "github.com/kailas-cloud/skuindex/internal/db/redis"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/dictionary"
	"github.com/kailas-cloud/skuindex/internal/metrics"
	"github.com/kailas-cloud/skuindex/internal/repository/aggregate"
	catalogrepo "github.com/kailas-cloud/skuindex/internal/repository/catalog"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
	"github.com/kailas-cloud/skuindex/internal/repository/sku"
	healthuc "github.com/kailas-cloud/skuindex/internal/usecase/health"
	legacyuc "github.com/kailas-cloud/skuindex/internal/usecase/legacy"
	"github.com/kailas-cloud/skuindex/internal/usecase/outbox"
	"github.com/kailas-cloud/skuindex/internal/usecase/parser"
	searchuc "github.com/kailas-cloud/skuindex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/skuindex/internal/usecase/sync"
)

// App holds every long-lived handle.
type App struct {
	Store      db.Store
	Catalog    *catalogrepo.Repo
	Schema     *schema.Manager
	SKUs       *sku.Repo
	Aggregates *aggregate.Repo
	Dictionary *dictionary.Dictionary
	Parser     *parser.Cached
	Search     *searchuc.Service
	Legacy     *legacyuc.Service
	Sync       *syncuc.Service
	Relay      *outbox.Relay
	Health     *healthuc.Service

	logger *zap.Logger
}

// New opens the stores, ensures both index layouts and builds the services.
// On error every handle opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	if err := a.open(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, cfg *config.Config) error {
	logger := a.logger
	var err error

	metrics.RegisterDomainMetrics()

	if a.Store, err = OpenStore(cfg.Database); err != nil {
		return err
	}
	if err = a.Store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
		return fmt.Errorf("search store not ready: %w", err)
	}
	logger.Info("Connected to search store", zap.String("driver", cfg.Database.Driver))

	if a.Catalog, err = catalogrepo.Open(cfg.Catalog.DSN); err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	logger.Info("Opened catalog", zap.String("dsn", cfg.Catalog.DSN))

	prefix := cfg.Storage.KeyPrefix
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	a.Schema = schema.New(a.Store, prefix)
	if err = a.Schema.EnsureAll(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if a.Dictionary, err = LoadDictionary(cfg.Dictionary.Path); err != nil {
		return err
	}
	if a.Parser, err = parser.NewCached(parser.New(a.Dictionary), cfg.Search.CacheSize); err != nil {
		return fmt.Errorf("create parser: %w", err)
	}

	a.SKUs = sku.New(a.Store, prefix)
	a.Aggregates = aggregate.New(a.Store, prefix)

	searchTimeout := config.Millis(cfg.Search.TimeoutMS)
	a.Search = searchuc.New(a.SKUs, a.Parser, searchuc.Config{
		Search: domain.SearchConfig{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
			Overfetch:    cfg.Search.Overfetch,
			MaxFetch:     cfg.Search.MaxFetch,
			MaxScan:      cfg.Search.MaxScan,
		},
		Timeout: searchTimeout,
		Breaker: searchuc.BreakerConfig{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     config.Seconds(cfg.Breaker.IntervalSec),
			Timeout:      config.Seconds(cfg.Breaker.TimeoutSec),
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
		},
	}, logger)
	a.Legacy = legacyuc.New(a.Aggregates, a.Parser, searchTimeout, logger)

	a.Sync = syncuc.New(a.Catalog, a.SKUs, a.Aggregates, syncuc.Config{
		FetchTimeout: config.Millis(cfg.Timeouts.StoreMS),
		IndexTimeout: config.Millis(cfg.Timeouts.IndexMS),
		AsyncTimeout: config.Millis(cfg.Timeouts.AsyncMS),
	}, logger)
	a.Relay = outbox.NewRelay(a.Catalog, a.Sync, outbox.Config{
		PollInterval: config.Millis(cfg.Outbox.PollIntervalMS),
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		Lease:        config.Seconds(cfg.Outbox.LeaseSec),
	}, logger)

	a.Health = healthuc.New(a.Store, a.Catalog)
	return nil
}

// Close releases handles in reverse order of creation. Safe on a partial App.
func (a *App) Close() {
	if a.Relay != nil {
		a.Relay.Stop()
	}
	if a.Sync != nil {
		a.Sync.Wait()
	}
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			a.logger.Warn("Error closing catalog", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// OpenStore creates the search store for the configured driver.
func OpenStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Addrs, Password: cfg.Password})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case config.DriverBleve:
		s, err := dbBleve.NewStore(dbBleve.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("create bleve store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// LoadDictionary reads the dictionary at path, or returns the built-in
// table when path is empty.
func LoadDictionary(path string) (*dictionary.Dictionary, error) {
	if path == "" {
		return dictionary.Default(), nil
	}
	d, err := dictionary.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load dictionary %s: %w", path, err)
	}
	return d, nil
}

// ErrNoProducts is returned by ReindexAll when the catalog is empty.
var ErrNoProducts = errors.New("catalog has no products")

// ReindexAll enqueues every catalog product and drains the outbox once.
func (a *App) ReindexAll(ctx context.Context) (outbox.Stats, error) {
	ids, err := a.Catalog.ProductIDs(ctx)
	if err != nil {
		return outbox.Stats{}, fmt.Errorf("list products: %w", err)
	}
	if len(ids) == 0 {
		return outbox.Stats{}, ErrNoProducts
	}
	for _, id := range ids {
		if err := a.Catalog.EnqueueSync(ctx, id); err != nil {
			return outbox.Stats{}, fmt.Errorf("enqueue %s: %w", id, err)
		}
	}
	return a.Drain(ctx)
}

// Rebuild recreates every index from the current layouts and reindexes the
// whole catalog.
func (a *App) Rebuild(ctx context.Context) (outbox.Stats, error) {
	if err := a.Schema.Rebuild(ctx); err != nil {
		return outbox.Stats{}, fmt.Errorf("rebuild indexes: %w", err)
	}
	a.logger.Info("Rebuilt search indexes")
	return a.ReindexAll(ctx)
}

// Drain runs relay passes until a pass claims nothing, summing the stats.
// Parked and backed-off intents are not due, so the loop ends.
func (a *App) Drain(ctx context.Context) (outbox.Stats, error) {
	var total outbox.Stats
	for ctx.Err() == nil {
		st, err := a.Relay.RunOnce(ctx)
		if err != nil {
			return total, fmt.Errorf("relay pass: %w", err)
		}
		total.Claimed += st.Claimed
		total.Done += st.Done
		total.Superseded += st.Superseded
		total.Retried += st.Retried
		total.Parked += st.Parked
		if st.Claimed == 0 {
			break
		}
	}
	return total, ctx.Err()
}
