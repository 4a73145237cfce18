// Package transform maps a catalog product aggregate onto search documents.
// Both outputs are pure functions of the aggregate.
package transform

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
)

// Result carries the SKU documents of one product and the variants that
// could not be transformed.
type Result struct {
	Docs    []document.SKU
	Skipped []*domain.TransformError
}

// SkippedIDs returns the variant ids in Skipped.
func (r Result) SkippedIDs() []string {
	ids := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		ids[i] = s.VariantID
	}
	return ids
}

// Transformer builds search documents from catalog aggregates.
type Transformer struct{}

// New creates a transformer.
func New() *Transformer { return &Transformer{} }

// SKUDocuments returns one document per variant. Each document's attrs are
// exactly that variant's own selections, in order. A variant with an
// unresolved selection is skipped and recorded; the rest still transform.
func (t *Transformer) SKUDocuments(p *catalog.Product) (Result, error) {
	if len(p.Variants) == 0 {
		return Result{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrEmptyVariantSet)
	}

	res := Result{Docs: make([]document.SKU, 0, len(p.Variants))}
	for i := range p.Variants {
		doc, err := t.skuDocument(p, &p.Variants[i])
		if err != nil {
			var te *domain.TransformError
			if errors.As(err, &te) {
				res.Skipped = append(res.Skipped, te)
				continue
			}
			return Result{}, err
		}
		res.Docs = append(res.Docs, doc)
	}
	return res, nil
}

func (t *Transformer) skuDocument(p *catalog.Product, v *catalog.Variant) (document.SKU, error) {
	attrs := make([]document.Attr, 0, len(v.Selections))
	for i, s := range v.Selections {
		if !s.Resolved() {
			return document.SKU{}, domain.NewTransformError(v.ID,
				fmt.Sprintf("selection %d (value %q) has no resolved option", i, s.ValueID))
		}
		attrs = append(attrs, document.Attr{ID: s.OptionID, Name: s.OptionName, Value: s.Value})
	}

	doc, err := document.New(document.Fields{
		SKUID:           v.ID,
		SPUID:           p.ID,
		Title:           p.Name,
		Price:           v.Price,
		Image:           orDefault(v.Image, catalog.DefaultImage),
		HasStock:        v.StockQuantity > 0,
		PopularityScore: p.PopularityScore,
		SaleCount:       p.SaleCount,
		BrandID:         orDefault(p.BrandID, catalog.DefaultBrandID),
		BrandName:       orDefault(p.BrandName, catalog.DefaultBrandName),
		CategoryID:      orDefault(p.CategoryID, catalog.DefaultCategoryID),
		CategoryName:    orDefault(p.CategoryName, catalog.DefaultCategoryName),
		Attrs:           attrs,
	})
	if err != nil {
		return document.SKU{}, domain.NewTransformError(v.ID, err.Error())
	}
	return doc, nil
}

// LegacyAggregate folds every variant into one product document. The
// options union is grouped by name in first-appearance order; it does not
// record which values share a variant. Unresolved selections are ignored.
func (t *Transformer) LegacyAggregate(p *catalog.Product) (legacy.Aggregate, error) {
	if len(p.Variants) == 0 {
		return legacy.Aggregate{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrEmptyVariantSet)
	}

	agg := legacy.Aggregate{
		SPUID:       p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Brand:       orDefault(p.BrandName, catalog.DefaultBrandName),
		Categories:  []string{orDefault(p.CategoryName, catalog.DefaultCategoryName)},
		PriceRange:  legacy.PriceRange{Min: p.Variants[0].Price, Max: p.Variants[0].Price},
		UpdatedAt:   p.UpdatedAt,
	}

	var names []string
	values := make(map[string][]string)
	for _, v := range p.Variants {
		agg.PriceRange.Min = min(agg.PriceRange.Min, v.Price)
		agg.PriceRange.Max = max(agg.PriceRange.Max, v.Price)
		agg.TotalStock += v.StockQuantity

		for _, s := range v.Selections {
			if !s.Resolved() {
				continue
			}
			vs, seen := values[s.OptionName]
			if !seen {
				names = append(names, s.OptionName)
			}
			if !contains(vs, s.Value) {
				values[s.OptionName] = append(vs, s.Value)
			}
		}
	}
	agg.IsInStock = agg.TotalStock > 0

	agg.AvailableOptions = make([]legacy.Option, 0, len(names))
	for _, name := range names {
		for _, value := range values[name] {
			agg.AvailableOptions = append(agg.AvailableOptions, legacy.Option{Name: name, Value: value})
		}
	}
	return agg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func contains(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
