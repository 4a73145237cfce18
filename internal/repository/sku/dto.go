package sku

import (
	"github.com/kailas-cloud/skuindex/internal/domain/document"
)

// skuDoc is the stored JSON shape of a SKU document.
type skuDoc struct {
	SKUID           string    `json:"skuId"`
	SPUID           string    `json:"spuId"`
	Title           string    `json:"title"`
	Price           float64   `json:"price"`
	Image           string    `json:"image"`
	HasStock        bool      `json:"hasStock"`
	PopularityScore float64   `json:"popularityScore"`
	SaleCount       int64     `json:"saleCount"`
	BrandID         string    `json:"brandId"`
	BrandName       string    `json:"brandName"`
	CategoryID      string    `json:"categoryId"`
	CategoryName    string    `json:"categoryName"`
	Attrs           []attrDoc `json:"attrs"`
}

// attrDoc is one attrs element. AttrKey is derived on write and never read back.
type attrDoc struct {
	AttrID    string `json:"attrId"`
	AttrName  string `json:"attrName"`
	AttrValue string `json:"attrValue"`
	AttrKey   string `json:"attrKey"`
}

func toDoc(s *document.SKU) skuDoc {
	f := s.Fields()
	attrs := make([]attrDoc, len(f.Attrs))
	for i, a := range f.Attrs {
		attrs[i] = attrDoc{AttrID: a.ID, AttrName: a.Name, AttrValue: a.Value, AttrKey: a.Key()}
	}
	return skuDoc{
		SKUID:           f.SKUID,
		SPUID:           f.SPUID,
		Title:           f.Title,
		Price:           f.Price,
		Image:           f.Image,
		HasStock:        f.HasStock,
		PopularityScore: f.PopularityScore,
		SaleCount:       f.SaleCount,
		BrandID:         f.BrandID,
		BrandName:       f.BrandName,
		CategoryID:      f.CategoryID,
		CategoryName:    f.CategoryName,
		Attrs:           attrs,
	}
}

func fromDoc(d *skuDoc) document.SKU {
	attrs := make([]document.Attr, len(d.Attrs))
	for i, a := range d.Attrs {
		attrs[i] = document.Attr{ID: a.AttrID, Name: a.AttrName, Value: a.AttrValue}
	}
	return document.Reconstruct(document.Fields{
		SKUID:           d.SKUID,
		SPUID:           d.SPUID,
		Title:           d.Title,
		Price:           d.Price,
		Image:           d.Image,
		HasStock:        d.HasStock,
		PopularityScore: d.PopularityScore,
		SaleCount:       d.SaleCount,
		BrandID:         d.BrandID,
		BrandName:       d.BrandName,
		CategoryID:      d.CategoryID,
		CategoryName:    d.CategoryName,
		Attrs:           attrs,
	})
}
