package aggregate

import (
	"time"

	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
)

// aggregateDoc is the stored JSON shape of a legacy document.
type aggregateDoc struct {
	SPUID            string      `json:"spuId"`
	Slug             string      `json:"slug"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Brand            string      `json:"brand"`
	Categories       []string    `json:"categories"`
	PriceRange       priceRange  `json:"price_range"`
	TotalStock       int         `json:"total_stock"`
	IsInStock        bool        `json:"is_in_stock"`
	AvailableOptions []optionDoc `json:"available_options"`
	UpdatedAt        int64       `json:"updated_at"` // unix ms
}

type priceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type optionDoc struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func toDoc(a *legacy.Aggregate) aggregateDoc {
	opts := make([]optionDoc, len(a.AvailableOptions))
	for i, o := range a.AvailableOptions {
		opts[i] = optionDoc{Name: o.Name, Value: o.Value}
	}
	categories := a.Categories
	if categories == nil {
		categories = []string{}
	}
	return aggregateDoc{
		SPUID:            a.SPUID,
		Slug:             a.Slug,
		Name:             a.Name,
		Description:      a.Description,
		Brand:            a.Brand,
		Categories:       categories,
		PriceRange:       priceRange{Min: a.PriceRange.Min, Max: a.PriceRange.Max},
		TotalStock:       a.TotalStock,
		IsInStock:        a.IsInStock,
		AvailableOptions: opts,
		UpdatedAt:        a.UpdatedAt.UnixMilli(),
	}
}

func fromDoc(d *aggregateDoc) legacy.Aggregate {
	opts := make([]legacy.Option, len(d.AvailableOptions))
	for i, o := range d.AvailableOptions {
		opts[i] = legacy.Option{Name: o.Name, Value: o.Value}
	}
	return legacy.Aggregate{
		SPUID:            d.SPUID,
		Slug:             d.Slug,
		Name:             d.Name,
		Description:      d.Description,
		Brand:            d.Brand,
		Categories:       d.Categories,
		PriceRange:       legacy.PriceRange{Min: d.PriceRange.Min, Max: d.PriceRange.Max},
		TotalStock:       d.TotalStock,
		IsInStock:        d.IsInStock,
		AvailableOptions: opts,
		UpdatedAt:        time.UnixMilli(d.UpdatedAt).UTC(),
	}
}
