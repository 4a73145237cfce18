// Package document holds the per-SKU search document.
package document

import (
	"fmt"
	"strings"
)

// Attr is one attribute pair of a single SKU.
type Attr struct {
	ID    string
	Name  string
	Value string
}

var keyNameEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`)

// Key is the composite "name=value" term the index filters on. Backslash and
// "=" in the name are escaped, so the first bare "=" always ends the name.
func (a Attr) Key() string { return keyNameEscaper.Replace(a.Name) + "=" + a.Value }

// SKU is the search document of one variant (immutable value object).
// Attrs holds exactly that variant's selections; it is never merged with siblings.
type SKU struct {
	skuID           string
	spuID           string
	title           string
	price           float64
	image           string
	hasStock        bool
	popularityScore float64
	saleCount       int64
	brandID         string
	brandName       string
	categoryID      string
	categoryName    string
	attrs           []Attr
}

// Fields carries every SKU field for construction.
type Fields struct {
	SKUID           string
	SPUID           string
	Title           string
	Price           float64
	Image           string
	HasStock        bool
	PopularityScore float64
	SaleCount       int64
	BrandID         string
	BrandName       string
	CategoryID      string
	CategoryName    string
	Attrs           []Attr
}

// New validates and creates a SKU document. Attrs are copied.
func New(f Fields) (SKU, error) {
	if f.SKUID == "" {
		return SKU{}, fmt.Errorf("sku ID is required")
	}
	if f.SPUID == "" {
		return SKU{}, fmt.Errorf("spu ID is required")
	}
	if f.Price < 0 {
		return SKU{}, fmt.Errorf("price must be non-negative")
	}
	return Reconstruct(f), nil
}

// Reconstruct creates a SKU without validation (storage hydration).
func Reconstruct(f Fields) SKU {
	return SKU{
		skuID:           f.SKUID,
		spuID:           f.SPUID,
		title:           f.Title,
		price:           f.Price,
		image:           f.Image,
		hasStock:        f.HasStock,
		popularityScore: f.PopularityScore,
		saleCount:       f.SaleCount,
		brandID:         f.BrandID,
		brandName:       f.BrandName,
		categoryID:      f.CategoryID,
		categoryName:    f.CategoryName,
		attrs:           cloneAttrs(f.Attrs),
	}
}

// SKUID returns the document identifier.
func (s *SKU) SKUID() string { return s.skuID }

// SPUID returns the parent product id, used only for grouping.
func (s *SKU) SPUID() string { return s.spuID }

// Title returns the searchable product title.
func (s *SKU) Title() string { return s.title }

// Price returns the variant price.
func (s *SKU) Price() float64 { return s.price }

// Image returns the image reference.
func (s *SKU) Image() string { return s.image }

// HasStock reports whether the variant is in stock.
func (s *SKU) HasStock() bool { return s.hasStock }

// PopularityScore returns the secondary sort key.
func (s *SKU) PopularityScore() float64 { return s.popularityScore }

// SaleCount returns the number of units sold.
func (s *SKU) SaleCount() int64 { return s.saleCount }

// BrandID returns the brand id.
func (s *SKU) BrandID() string { return s.brandID }

// BrandName returns the brand name.
func (s *SKU) BrandName() string { return s.brandName }

// CategoryID returns the category id.
func (s *SKU) CategoryID() string { return s.categoryID }

// CategoryName returns the category name.
func (s *SKU) CategoryName() string { return s.categoryName }

// Attrs returns a copy of the variant's own attributes, in order.
func (s *SKU) Attrs() []Attr { return cloneAttrs(s.attrs) }

// HasAttr reports whether one element of Attrs carries exactly name and value.
func (s *SKU) HasAttr(name, value string) bool {
	for _, a := range s.attrs {
		if a.Name == name && a.Value == value {
			return true
		}
	}
	return false
}

// Fields returns every field, for mapping into storage or transport DTOs.
func (s *SKU) Fields() Fields {
	return Fields{
		SKUID:           s.skuID,
		SPUID:           s.spuID,
		Title:           s.title,
		Price:           s.price,
		Image:           s.image,
		HasStock:        s.hasStock,
		PopularityScore: s.popularityScore,
		SaleCount:       s.saleCount,
		BrandID:         s.brandID,
		BrandName:       s.brandName,
		CategoryID:      s.categoryID,
		CategoryName:    s.categoryName,
		Attrs:           cloneAttrs(s.attrs),
	}
}

func cloneAttrs(in []Attr) []Attr {
	out := make([]Attr, len(in))
	copy(out, in)
	return out
}
