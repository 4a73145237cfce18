// Package aggregate stores and queries legacy per-product documents.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
)

// store is the consumer interface for legacy documents (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	Del(ctx context.Context, keys ...string) error
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
}

// Repo stores legacy aggregates.
type Repo struct {
	store  store
	prefix string
}

// New creates a legacy aggregate repository for keys under keyPrefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Put fully replaces the aggregate stored for a.SPUID.
func (r *Repo) Put(ctx context.Context, a *legacy.Aggregate) error {
	data, err := json.Marshal(toDoc(a))
	if err != nil {
		return fmt.Errorf("marshal aggregate %s: %w", a.SPUID, err)
	}
	if err := r.store.JSONSet(ctx, r.key(a.SPUID), "$", data); err != nil {
		return fmt.Errorf("put aggregate %s: %w", a.SPUID, err)
	}
	return nil
}

// Delete removes the aggregate of spuID.
func (r *Repo) Delete(ctx context.Context, spuID string) error {
	if err := r.store.Del(ctx, r.key(spuID)); err != nil {
		return fmt.Errorf("delete aggregate %s: %w", spuID, err)
	}
	return nil
}

// Query runs q against the legacy index.
func (r *Repo) Query(ctx context.Context, q *db.Query) ([]legacy.Aggregate, error) {
	req := *q
	req.IndexName = schema.LegacyIndex(r.prefix)
	req.ReturnFields = []string{"$"}

	sr, err := r.store.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search aggregates: %w", err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]legacy.Aggregate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		var d aggregateDoc
		if err := json.Unmarshal([]byte(e.Fields["$"]), &d); err != nil {
			return nil, fmt.Errorf("decode aggregate %s: %w", e.Key, err)
		}
		out = append(out, fromDoc(&d))
	}
	return out, nil
}

func (r *Repo) key(spuID string) string {
	return schema.LegacyKeyPrefix(r.prefix) + spuID
}
