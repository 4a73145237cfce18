package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
)

// Created identifies a newly written product.
type Created struct {
	ID   string
	Slug string
}

// CreateProduct writes the product, its variants and selections, and the
// outbox intent in one transaction. Options and option values are found by
// name or created.
func (r *Repo) CreateProduct(ctx context.Context, d *catalog.Draft) (Created, error) {
	if err := d.Validate(); err != nil {
		return Created{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	db, err := r.handle()
	if err != nil {
		return Created{}, err
	}

	now := r.now().UTC()
	out := Created{ID: uuid.NewString(), Slug: catalog.Slug(d.Name, now)}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Created{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, slug, description, brand_id, brand_name,
			category_id, category_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, strings.TrimSpace(d.Name), out.Slug, d.Description, d.BrandID, d.BrandName,
		d.CategoryID, d.CategoryName, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Created{}, fmt.Errorf("insert product: %w", err)
	}

	values := newValueCache(tx)
	for i, v := range d.Variants {
		variantID := uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO variants (id, product_id, sku, price, stock_quantity, image, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			variantID, out.ID, v.SKU, v.Price, v.StockQuantity, v.Image, i)
		if err != nil {
			return Created{}, fmt.Errorf("insert variant %s: %w", v.SKU, err)
		}

		for j, o := range v.Options {
			valueID, err := values.resolve(ctx, o.OptionName, o.OptionValue)
			if err != nil {
				return Created{}, err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO variant_selections (variant_id, option_value_id, position)
				VALUES (?, ?, ?)`, variantID, valueID, j)
			if err != nil {
				return Created{}, fmt.Errorf("insert selection: %w", err)
			}
		}
	}

	if err := upsertIntent(ctx, tx, out.ID, now); err != nil {
		return Created{}, err
	}

	if err := tx.Commit(); err != nil {
		return Created{}, fmt.Errorf("commit product: %w", err)
	}
	return out, nil
}

// valueCache finds or creates option and option value rows within one
// transaction.
type valueCache struct {
	tx      *sql.Tx
	options map[string]string
	values  map[[2]string]string
}

func newValueCache(tx *sql.Tx) *valueCache {
	return &valueCache{tx: tx, options: map[string]string{}, values: map[[2]string]string{}}
}

func (c *valueCache) resolve(ctx context.Context, optionName, value string) (string, error) {
	optionName = strings.TrimSpace(optionName)
	value = strings.TrimSpace(value)

	optionID, ok := c.options[optionName]
	if !ok {
		id, err := findOrCreate(ctx, c.tx,
			`SELECT id FROM options WHERE name = ?`,
			`INSERT INTO options (id, name) VALUES (?, ?)`,
			optionName)
		if err != nil {
			return "", fmt.Errorf("option %s: %w", optionName, err)
		}
		optionID = id
		c.options[optionName] = id
	}

	k := [2]string{optionID, value}
	if id, ok := c.values[k]; ok {
		return id, nil
	}
	id, err := findOrCreate(ctx, c.tx,
		`SELECT id FROM option_values WHERE option_id = ? AND value = ?`,
		`INSERT INTO option_values (id, option_id, value) VALUES (?, ?, ?)`,
		optionID, value)
	if err != nil {
		return "", fmt.Errorf("option %s value %s: %w", optionName, value, err)
	}
	c.values[k] = id
	return id, nil
}

// findOrCreate returns the id selected by lookup, or inserts a row with a
// fresh id followed by args.
func findOrCreate(ctx context.Context, tx *sql.Tx, lookup, insert string, args ...any) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, lookup, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, insert, append([]any{id}, args...)...); err != nil {
		return "", err
	}
	return id, nil
}

// FetchAggregate loads a product with its variants and their selections,
// ordered by variant position and selection position. Variants sharing a
// position are kept apart by id. A selection whose
// option value or option row is missing comes back with empty names.
func (r *Repo) FetchAggregate(ctx context.Context, productID string) (catalog.Product, error) {
	db, err := r.handle()
	if err != nil {
		return catalog.Product{}, err
	}

	var (
		p         catalog.Product
		updatedAt int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, brand_id, brand_name, category_id,
			category_name, popularity_score, sale_count, updated_at
		FROM products WHERE id = ?`, productID).
		Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.BrandID, &p.BrandName,
			&p.CategoryID, &p.CategoryName, &p.PopularityScore, &p.SaleCount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	rows, err := db.QueryContext(ctx, `
		SELECT v.id, v.sku, v.price, v.stock_quantity, v.image,
			s.option_value_id, ov.value, o.id, o.name
		FROM variants v
		LEFT JOIN variant_selections s ON s.variant_id = v.id
		LEFT JOIN option_values ov ON ov.id = s.option_value_id
		LEFT JOIN options o ON o.id = ov.option_id
		WHERE v.product_id = ?
		ORDER BY v.position, v.id, s.position`, productID)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("fetch variants %s: %w", productID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v                                    catalog.Variant
			valueID, value, optionID, optionName sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.SKU, &v.Price, &v.StockQuantity, &v.Image,
			&valueID, &value, &optionID, &optionName); err != nil {
			return catalog.Product{}, fmt.Errorf("scan variant: %w", err)
		}

		n := len(p.Variants)
		if n == 0 || p.Variants[n-1].ID != v.ID {
			v.ProductID = p.ID
			p.Variants = append(p.Variants, v)
			n++
		}
		if !valueID.Valid {
			continue
		}
		p.Variants[n-1].Selections = append(p.Variants[n-1].Selections, catalog.Selection{
			OptionID:   optionID.String,
			OptionName: optionName.String,
			ValueID:    valueID.String,
			Value:      value.String,
		})
	}
	if err := rows.Err(); err != nil {
		return catalog.Product{}, fmt.Errorf("iterate variants: %w", err)
	}
	return p, nil
}

// ProductIDs lists every product id, oldest first.
func (r *Repo) ProductIDs(ctx context.Context) ([]string, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
