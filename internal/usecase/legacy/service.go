// Package legacy queries the per-product union index. Its filters cannot
// tell whether two options belong to the same variant, so its results may
// include products no single SKU satisfies. It exists for comparison only.
package legacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	"github.com/kailas-cloud/skuindex/internal/domain/search/filter"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
	"github.com/kailas-cloud/skuindex/internal/metrics"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
)

// DefaultLimit caps legacy results.
const DefaultLimit = 20

// Service is the legacy query path.
type Service struct {
	repo    Repository
	parser  Parser
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a legacy search service.
func New(repo Repository, parser Parser, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{repo: repo, parser: parser, timeout: timeout, logger: logger}
}

// Search matches the product name and, per option, an independent name
// filter and value filter over the union of all variants.
func (s *Service) Search(ctx context.Context, parsed query.Parsed) ([]legacy.Aggregate, error) {
	q := &db.Query{Limit: DefaultLimit}
	if terms := strings.Fields(parsed.Text); len(terms) > 0 {
		q.Text = &db.TextMatch{Field: schema.FieldName, Terms: terms}
	}

	conds := make([]filter.Condition, 0, 2*len(parsed.Options))
	for _, o := range parsed.Options {
		name, err := filter.NewMatch(schema.FieldOptName, o.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		value, err := filter.NewMatch(schema.FieldOptValue, o.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		conds = append(conds, name, value)
	}
	expr, err := filter.NewExpression(conds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	q.Filters = expr

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.repo.Query(ctx, q)
	metrics.SearchDuration.WithLabelValues("legacy").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Legacy search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}
	if out == nil {
		out = []legacy.Aggregate{}
	}
	metrics.SearchHits.WithLabelValues("legacy").Observe(float64(len(out)))
	return out, nil
}

// SearchRaw parses raw and runs Search.
func (s *Service) SearchRaw(ctx context.Context, raw string) ([]legacy.Aggregate, error) {
	return s.Search(ctx, s.parser.Parse(raw))
}
