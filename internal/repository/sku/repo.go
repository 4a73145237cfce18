// Package sku stores and queries per-variant search documents.
package sku

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/search/filter"
	"github.com/kailas-cloud/skuindex/internal/domain/search/result"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
)

// siblingPage is the page size of the stale-document scan of one product.
const siblingPage = 1000

// store is the consumer interface for SKU documents (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
}

// RetryConfig bounds write retries.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Repo implements the SKU document store used by sync and search.
type Repo struct {
	store  store
	prefix string
	retry  RetryConfig
}

// New creates a SKU repository for keys under keyPrefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{
		store:  s,
		prefix: keyPrefix,
		retry:  RetryConfig{MaxTries: 3, InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second},
	}
}

// WithRetry configures write retries.
func (r *Repo) WithRetry(cfg RetryConfig) *Repo {
	if cfg.MaxTries > 0 {
		r.retry.MaxTries = cfg.MaxTries
	}
	if cfg.InitialInterval > 0 {
		r.retry.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		r.retry.MaxInterval = cfg.MaxInterval
	}
	return r
}

// IndexName returns the SKU index name.
func (r *Repo) IndexName() string { return schema.SKUIndex(r.prefix) }

// Replace writes docs for product spuID, each fully replacing the stored
// document with the same skuId, then deletes documents of spuID that are
// neither written nor listed in retain.
func (r *Repo) Replace(ctx context.Context, spuID string, docs []document.SKU, retain ...string) error {
	keep := make(map[string]bool, len(docs)+len(retain))
	items := make([]db.JSONSetItem, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.SPUID() != spuID {
			return fmt.Errorf("sku %s belongs to %s, not %s", d.SKUID(), d.SPUID(), spuID)
		}
		data, err := json.Marshal(toDoc(d))
		if err != nil {
			return fmt.Errorf("marshal sku %s: %w", d.SKUID(), err)
		}
		key := r.key(d.SKUID())
		keep[key] = true
		items = append(items, db.JSONSetItem{Key: key, Path: "$", Data: data})
	}
	for _, id := range retain {
		keep[r.key(id)] = true
	}

	existing, err := r.siblingKeys(ctx, spuID)
	if err != nil {
		return err
	}

	if len(items) > 0 {
		err = r.withRetry(ctx, func() error { return r.store.JSONSetMulti(ctx, items) })
		if err != nil {
			return fmt.Errorf("write skus of %s: %w", spuID, err)
		}
	}

	var stale []string
	for _, key := range existing {
		if !keep[key] {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := r.withRetry(ctx, func() error { return r.store.Del(ctx, stale...) }); err != nil {
		return fmt.Errorf("delete stale skus of %s: %w", spuID, err)
	}
	return nil
}

// Get reads one SKU document.
func (r *Repo) Get(ctx context.Context, skuID string) (document.SKU, error) {
	data, err := r.store.JSONGet(ctx, r.key(skuID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return document.SKU{}, domain.ErrNotFound
		}
		return document.SKU{}, fmt.Errorf("get sku %s: %w", skuID, err)
	}
	var d skuDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return document.SKU{}, fmt.Errorf("decode sku %s: %w", skuID, err)
	}
	return fromDoc(&d), nil
}

// Query runs q against the SKU index and decodes each hit from its JSON source.
// q.IndexName and q.ReturnFields are set by the repository.
func (r *Repo) Query(ctx context.Context, q *db.Query) ([]result.Hit, error) {
	req := *q
	req.IndexName = r.IndexName()
	req.ReturnFields = []string{"$"}

	sr, err := r.store.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search skus: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		var d skuDoc
		if err := json.Unmarshal([]byte(e.Fields["$"]), &d); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", e.Key, err)
		}
		hits = append(hits, result.New(fromDoc(&d), e.Score))
	}
	return hits, nil
}

// siblingKeys lists every stored key of spuID, paging in skuId order.
func (r *Repo) siblingKeys(ctx context.Context, spuID string) ([]string, error) {
	cond, err := filter.NewMatch(schema.FieldSPUID, spuID)
	if err != nil {
		return nil, err
	}
	expr, err := filter.NewExpression([]filter.Condition{cond})
	if err != nil {
		return nil, err
	}

	var keys []string
	for offset := 0; ; offset += siblingPage {
		sr, err := r.store.Search(ctx, &db.Query{
			IndexName:    r.IndexName(),
			Filters:      expr,
			Sort:         []db.SortKey{{Field: schema.FieldSKUID}},
			Offset:       offset,
			Limit:        siblingPage,
			ReturnFields: []string{schema.FieldSKUID},
		})
		if err != nil {
			return nil, fmt.Errorf("list skus of %s: %w", spuID, err)
		}
		if sr == nil {
			return keys, nil
		}
		for _, e := range sr.Entries {
			keys = append(keys, e.Key)
		}
		if len(sr.Entries) < siblingPage {
			return keys, nil
		}
	}
}

// withRetry retries op with exponential backoff. Routing errors are permanent.
func (r *Repo) withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if errors.Is(err, db.ErrNoIndexForKey) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.retry.MaxTries))
	return err
}

func (r *Repo) key(skuID string) string {
	return schema.SKUKeyPrefix(r.prefix) + skuID
}
