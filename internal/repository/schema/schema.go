// Package schema declares the search index layouts and creates them idempotently.
package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/skuindex/internal/db"
)

// ID names a declared index layout.
type ID string

const (
	// SKU is the per-variant index used by search.
	SKU ID = "sku"
	// Legacy is the per-product union index, kept for contrast.
	Legacy ID = "legacy"
)

// Field aliases queried by the repositories.
const (
	FieldSKUID     = "skuId"
	FieldSPUID     = "spuId"
	FieldTitle     = "title"
	FieldAttrKey   = "attr_key"
	FieldName      = "name"
	FieldOptName   = "opt_name"
	FieldOptValue  = "opt_value"
	FieldUpdatedAt = "updated_at"

	FieldPrice      = "price"
	FieldHasStock   = "hasStock"
	FieldPopularity = "popularityScore"
)

// store is the consumer interface for schema management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Manager owns index creation for both layouts.
type Manager struct {
	store  store
	prefix string
}

// New creates a schema manager for keys under keyPrefix.
func New(s store, keyPrefix string) *Manager {
	return &Manager{store: s, prefix: keyPrefix}
}

// IDs lists every declared layout.
func IDs() []ID { return []ID{SKU, Legacy} }

// Definition returns the declared layout for id.
func (m *Manager) Definition(id ID) (*db.IndexDefinition, error) {
	switch id {
	case SKU:
		return SKUDefinition(m.prefix), nil
	case Legacy:
		return LegacyDefinition(m.prefix), nil
	default:
		return nil, fmt.Errorf("unknown schema %q", id)
	}
}

// EnsureSchema creates the index if it is missing. An index created
// concurrently by another caller counts as success.
func (m *Manager) EnsureSchema(ctx context.Context, id ID) error {
	def, err := m.Definition(id)
	if err != nil {
		return err
	}

	exists, err := m.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", def.Name, err)
	}
	if exists {
		return nil
	}

	if err := m.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// EnsureAll ensures every declared layout.
func (m *Manager) EnsureAll(ctx context.Context) error {
	for _, id := range IDs() {
		if err := m.EnsureSchema(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild drops every declared index, missing ones included, and creates
// them again from the current layouts. Whether documents survive depends on
// the driver, so callers reindex afterwards.
func (m *Manager) Rebuild(ctx context.Context) error {
	for _, id := range IDs() {
		def, err := m.Definition(id)
		if err != nil {
			return err
		}
		if err := m.store.DropIndex(ctx, def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", def.Name, err)
		}
	}
	return m.EnsureAll(ctx)
}

// SKUIndex is the SKU index name.
func SKUIndex(prefix string) string { return prefix + "sku:idx" }

// SKUKeyPrefix is the key prefix of SKU documents.
func SKUKeyPrefix(prefix string) string { return prefix + "sku:" }

// LegacyIndex is the legacy index name.
func LegacyIndex(prefix string) string { return prefix + "spu:idx" }

// LegacyKeyPrefix is the key prefix of legacy documents.
func LegacyKeyPrefix(prefix string) string { return prefix + "spu:" }

// SKUDefinition declares the per-variant layout. attr_key indexes the
// "name=value" composite of each attrs element, so one term only matches
// a name and value from the same element. Display names match case-insensitively.
func SKUDefinition(prefix string) *db.IndexDefinition {
	return db.NewIndex(SKUIndex(prefix)).
		OnJSON().
		Prefix(SKUKeyPrefix(prefix)).
		Tag("$.skuId", FieldSKUID).
		Tag("$.spuId", FieldSPUID).
		Text("$.title", FieldTitle).
		Tag("$.title", "title_exact").
		Numeric("$.price", FieldPrice).
		Stored("$.image", "image").
		Bool("$.hasStock", FieldHasStock).
		Numeric("$.popularityScore", FieldPopularity).
		Numeric("$.saleCount", "saleCount").
		Tag("$.brandId", "brandId").
		TagWithOpts("$.brandName", "brandName", "", false).
		Tag("$.categoryId", "categoryId").
		TagWithOpts("$.categoryName", "categoryName", "", false).
		Tag("$.attrs[*].attrId", "attr_id").
		Tag("$.attrs[*].attrName", "attr_name").
		Tag("$.attrs[*].attrValue", "attr_value").
		Tag("$.attrs[*].attrKey", FieldAttrKey).
		MustBuild()
}

// LegacyDefinition declares the per-product union layout. opt_name and
// opt_value are independent tag sets.
func LegacyDefinition(prefix string) *db.IndexDefinition {
	return db.NewIndex(LegacyIndex(prefix)).
		OnJSON().
		Prefix(LegacyKeyPrefix(prefix)).
		Tag("$.spuId", FieldSPUID).
		Tag("$.slug", "slug").
		Text("$.name", FieldName).
		Tag("$.name", "name_exact").
		Text("$.description", "description").
		TagWithOpts("$.brand", "brand", "", false).
		Tag("$.categories[*]", "categories").
		Numeric("$.price_range.min", "price_min").
		Numeric("$.price_range.max", "price_max").
		Numeric("$.total_stock", "total_stock").
		Bool("$.is_in_stock", "is_in_stock").
		Tag("$.available_options[*].name", FieldOptName).
		Tag("$.available_options[*].value", FieldOptValue).
		Numeric("$.updated_at", FieldUpdatedAt).
		MustBuild()
}
