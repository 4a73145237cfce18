// Package search executes parsed product queries against the SKU index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/search/filter"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
	"github.com/kailas-cloud/skuindex/internal/domain/search/result"
	"github.com/kailas-cloud/skuindex/internal/metrics"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
)

// DefaultTimeout bounds every index call of one search.
const DefaultTimeout = 2 * time.Second

// BreakerConfig tunes the circuit breaker in front of the index.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips after 5 requests with at least 60% failures
// and lets a trial request through after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

// Config holds the executor settings.
type Config struct {
	Search  domain.SearchConfig
	Timeout time.Duration
	Breaker BreakerConfig
}

// Option adjusts one search call.
type Option func(*options)

type options struct {
	limit    int
	inStock  bool
	minPrice *float64
	maxPrice *float64
}

// WithLimit overrides the default result cap. Values above the configured
// maximum are clamped; non-positive values are ignored.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithInStock keeps only SKUs that are in stock.
func WithInStock() Option {
	return func(o *options) { o.inStock = true }
}

// WithPriceRange keeps SKUs priced within [minPrice, maxPrice]. A nil bound is open.
func WithPriceRange(minPrice, maxPrice *float64) Option {
	return func(o *options) {
		o.minPrice = minPrice
		o.maxPrice = maxPrice
	}
}

// Service is the SKU search executor.
type Service struct {
	repo    Repository
	parser  Parser
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a search executor. Zero config values take defaults.
func New(repo Repository, parser Parser, cfg Config, logger *zap.Logger) *Service {
	def := domain.DefaultSearchConfig()
	if cfg.Search.DefaultLimit <= 0 {
		cfg.Search.DefaultLimit = def.DefaultLimit
	}
	if cfg.Search.MaxLimit <= 0 {
		cfg.Search.MaxLimit = def.MaxLimit
	}
	if cfg.Search.Overfetch <= 0 {
		cfg.Search.Overfetch = def.Overfetch
	}
	if cfg.Search.MaxFetch <= 0 {
		cfg.Search.MaxFetch = def.MaxFetch
	}
	if cfg.Search.MaxScan <= 0 {
		cfg.Search.MaxScan = def.MaxScan
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}

	bc := cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sku-index",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Service{repo: repo, parser: parser, cfg: cfg, breaker: breaker, logger: logger}
}

// Search returns at most one SKU per product, best first. Values sharing
// an option name are alternatives; distinct option names must all hold on
// the same SKU. Any index failure returns domain.ErrSearchUnavailable; no
// match returns an empty slice.
func (s *Service) Search(ctx context.Context, parsed query.Parsed, opts ...Option) ([]document.SKU, error) {
	o := options{limit: s.cfg.Search.DefaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	limit := s.limit(o.limit)

	q, err := s.buildQuery(parsed, &o, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	hits, err := s.collect(ctx, q, limit)
	metrics.SearchDuration.WithLabelValues("sku").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchUnavailableTotal.Inc()
		s.logger.Error("Search failed",
			zap.String("text", parsed.Text),
			zap.Int("options", len(parsed.Options)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}

	grouped := groupBySPU(hits, limit)
	docs := make([]document.SKU, len(grouped))
	for i := range grouped {
		docs[i] = grouped[i].Doc()
	}
	metrics.SearchHits.WithLabelValues("sku").Observe(float64(len(docs)))
	return docs, nil
}

// collect pages through the index in result order until limit distinct
// products are seen or the matches run out. MaxScan bounds the raw hits
// read. The first hit of a product in result order is its best one, so products past
// the stopping page cannot displace any already seen.
func (s *Service) collect(ctx context.Context, base *db.Query, limit int) ([]result.Hit, error) {
	var hits []result.Hit
	products := make(map[string]struct{}, limit)

	for offset := 0; ; offset += base.Limit {
		page := *base
		page.Offset = offset

		got, err := s.query(ctx, &page)
		if err != nil {
			return nil, err
		}
		hits = append(hits, got...)
		for i := range got {
			products[got[i].SPUID()] = struct{}{}
		}

		if len(products) >= limit || len(got) < base.Limit {
			return hits, nil
		}
		if offset+base.Limit >= s.cfg.Search.MaxScan {
			s.logger.Warn("Search scan cap reached before filling the page",
				zap.Int("scanned", len(hits)),
				zap.Int("products", len(products)),
				zap.Int("limit", limit),
			)
			return hits, nil
		}
	}
}
// SearchRaw parses raw and runs Search.
func (s *Service) SearchRaw(ctx context.Context, raw string, opts ...Option) ([]document.SKU, error) {
	return s.Search(ctx, s.parser.Parse(raw), opts...)
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.cfg.Search.DefaultLimit
	}
	return min(n, s.cfg.Search.MaxLimit)
}

// resultOrder is score desc, popularity desc, skuId asc; groupBySPU applies
// the same order to the collected hits.
var resultOrder = []db.SortKey{
	{Field: db.SortScore, Desc: true},
	{Field: schema.FieldPopularity, Desc: true},
	{Field: schema.FieldSKUID},
}

// buildQuery maps parsed onto one text clause over the title and one
// attr_key filter per distinct option name, plus the stock and price
// refinements from o.
func (s *Service) buildQuery(parsed query.Parsed, o *options, limit int) (*db.Query, error) {
	q := &db.Query{Limit: s.cfg.Search.FetchSize(limit), Sort: resultOrder}

	if terms := strings.Fields(parsed.Text); len(terms) > 0 {
		q.Text = &db.TextMatch{Field: schema.FieldTitle, Terms: terms, Fuzzy: true}
	}

	groups := parsed.Grouped()
	conds := make([]filter.Condition, 0, len(groups)+2)
	for _, g := range groups {
		keys := make([]string, len(g.Values))
		for i, v := range g.Values {
			keys[i] = document.Attr{Name: g.Name, Value: v}.Key()
		}
		c, err := filter.NewMatchAny(schema.FieldAttrKey, keys...)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}

	if o.inStock {
		c, err := filter.NewMatch(schema.FieldHasStock, "true")
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if o.minPrice != nil || o.maxPrice != nil {
		if o.minPrice != nil && o.maxPrice != nil && *o.minPrice > *o.maxPrice {
			return nil, fmt.Errorf("min price %g exceeds max price %g", *o.minPrice, *o.maxPrice)
		}
		rng, err := filter.NewRangeFilter(nil, o.minPrice, nil, o.maxPrice)
		if err != nil {
			return nil, err
		}
		c, err := filter.NewRange(schema.FieldPrice, rng)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}

	expr, err := filter.NewExpression(conds)
	if err != nil {
		return nil, err
	}
	q.Filters = expr
	return q, nil
}

func (s *Service) query(ctx context.Context, q *db.Query) ([]result.Hit, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.repo.Query(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("sku index breaker: %w", err)
	}
	if err != nil {
		return nil, err
	}
	hits, _ := out.([]result.Hit)
	return hits, nil
}
