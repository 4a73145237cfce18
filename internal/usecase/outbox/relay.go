// Package outbox drains sync intents written alongside catalog changes
// and drives them through the sync service until they succeed.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/metrics"
)

// Defaults for Config.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultBatchSize    = 50
	DefaultMaxAttempts  = 10
	DefaultLease        = time.Minute
)

// Config tunes the relay.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease is how long a claimed intent stays invisible to other passes.
	Lease time.Duration
}

// Stats summarizes one pass.
type Stats struct {
	Claimed    int
	Done       int
	Superseded int
	Retried    int
	Parked     int
}

// Relay moves intents from the outbox into the index.
type Relay struct {
	store  Store
	syncer Syncer
	cfg    Config
	logger *zap.Logger

	runMu     sync.Mutex
	scheduler *gocron.Scheduler
	kick      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRelay creates a relay. Zero config values take defaults.
func NewRelay(store Store, syncer Syncer, cfg Config, logger *zap.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	return &Relay{
		store:  store,
		syncer: syncer,
		cfg:    cfg,
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// RunOnce claims one batch of due intents and syncs each of them. A
// successful sync clears the intent unless a newer write bumped its
// version; a failed one is rescheduled or parked.
func (r *Relay) RunOnce(ctx context.Context) (Stats, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	var st Stats
	intents, err := r.store.ClaimDue(ctx, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return st, fmt.Errorf("claim intents: %w", err)
	}
	st.Claimed = len(intents)

	for _, in := range intents {
		log := r.logger.With(zap.String("product_id", in.ProductID), zap.Int64("version", in.Version))

		syncErr := r.syncer.SyncProduct(ctx, in.ProductID)
		if syncErr == nil {
			cleared, err := r.store.MarkDone(ctx, in.ProductID, in.Version)
			if err != nil {
				return st, fmt.Errorf("mark done: %w", err)
			}
			if cleared {
				st.Done++
				metrics.OutboxProcessedTotal.WithLabelValues("done").Inc()
			} else {
				st.Superseded++
				metrics.OutboxProcessedTotal.WithLabelValues("superseded").Inc()
				log.Debug("Intent superseded by a newer write")
			}
			continue
		}

		parked, err := r.store.MarkFailed(ctx, in, syncErr, r.cfg.MaxAttempts)
		if err != nil {
			return st, fmt.Errorf("mark failed: %w", err)
		}
		if parked {
			st.Parked++
			metrics.OutboxProcessedTotal.WithLabelValues("parked").Inc()
			log.Error("Sync intent parked after max attempts",
				zap.Int("attempts", in.Attempts+1),
				zap.Error(syncErr),
			)
			continue
		}
		st.Retried++
		metrics.OutboxProcessedTotal.WithLabelValues("retry").Inc()
		log.Warn("Sync failed, will retry", zap.Int("attempts", in.Attempts+1), zap.Error(syncErr))
	}

	if n, err := r.store.PendingCount(ctx); err == nil {
		metrics.OutboxPending.Set(float64(n))
	}
	return st, nil
}

// Start runs RunOnce every PollInterval and on every Kick until Stop.
func (r *Relay) Start() error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(r.cfg.PollInterval).Tag("outbox-relay").Do(r.tick); err != nil {
		return fmt.Errorf("schedule outbox relay: %w", err)
	}

	r.scheduler = s
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.kickLoop()

	s.StartAsync()
	r.logger.Info("Outbox relay started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("batch_size", r.cfg.BatchSize),
	)
	return nil
}

// Stop halts the schedule and waits for the kick loop to exit.
func (r *Relay) Stop() {
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	close(r.done)
	r.wg.Wait()
	r.scheduler = nil
}

// Kick requests an immediate pass. Kicks coalesce while a pass is pending.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Relay) kickLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case <-r.kick:
			r.tick()
		}
	}
}

func (r *Relay) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Lease)
	defer cancel()
	st, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("Outbox pass failed", zap.Error(err))
		return
	}
	if st.Claimed > 0 {
		r.logger.Info("Outbox pass",
			zap.Int("claimed", st.Claimed),
			zap.Int("done", st.Done),
			zap.Int("superseded", st.Superseded),
			zap.Int("retried", st.Retried),
			zap.Int("parked", st.Parked),
		)
	}
}
