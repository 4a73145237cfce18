// Package catalog holds the relational product aggregate as read by the sync path,
// the create-product input, and the outbox sync intent.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Placeholders used when the catalog carries no value.
const (
	DefaultImage        = "default_image.jpg"
	DefaultBrandID      = "brand_id_placeholder"
	DefaultBrandName    = "Brand Placeholder"
	DefaultCategoryID   = "catalog_id_placeholder"
	DefaultCategoryName = "Catalog Placeholder"
)

// Product is a fully-resolved SPU with its variants.
type Product struct {
	ID              string
	Name            string
	Slug            string
	Description     string
	BrandID         string
	BrandName       string
	CategoryID      string
	CategoryName    string
	PopularityScore float64
	SaleCount       int64
	UpdatedAt       time.Time
	Variants        []Variant
}

// Variant is one SKU with its own option selections, in catalog order.
type Variant struct {
	ID            string
	ProductID     string
	SKU           string
	Price         float64
	StockQuantity int
	Image         string
	Selections    []Selection
}

// Selection is one resolved (option, value) pair of a variant.
// An empty OptionName means the option row could not be resolved.
type Selection struct {
	OptionID   string
	OptionName string
	ValueID    string
	Value      string
}

// Resolved reports whether both the option name and the value are present.
func (s Selection) Resolved() bool {
	return s.OptionName != "" && s.Value != ""
}

// Draft is the create-product input.
type Draft struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	BrandID      string         `json:"brandId,omitempty"`
	BrandName    string         `json:"brandName,omitempty"`
	CategoryID   string         `json:"categoryId,omitempty"`
	CategoryName string         `json:"categoryName,omitempty"`
	Variants     []VariantDraft `json:"variants"`
}

// VariantDraft is one variant of a Draft.
type VariantDraft struct {
	SKU           string        `json:"sku"`
	Price         float64       `json:"price"`
	StockQuantity int           `json:"stockQuantity"`
	Image         string        `json:"image,omitempty"`
	Options       []OptionDraft `json:"options"`
}

// OptionDraft names an option value by its literal strings; the store
// finds or creates the rows.
type OptionDraft struct {
	OptionName  string `json:"optionName"`
	OptionValue string `json:"optionValue"`
}

// Validate checks a draft before it reaches the store.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	for i, v := range d.Variants {
		if strings.TrimSpace(v.SKU) == "" {
			return fmt.Errorf("variants[%d]: sku is required", i)
		}
		if v.Price < 0 {
			return fmt.Errorf("variants[%d]: price must be non-negative", i)
		}
		if v.StockQuantity < 0 {
			return fmt.Errorf("variants[%d]: stockQuantity must be non-negative", i)
		}
		for j, o := range v.Options {
			if strings.TrimSpace(o.OptionName) == "" || strings.TrimSpace(o.OptionValue) == "" {
				return fmt.Errorf("variants[%d].options[%d]: optionName and optionValue are required", i, j)
			}
		}
	}
	return nil
}

// Slug derives the product slug: lowercased name, whitespace runs
// collapsed to "-", suffixed with the creation time in unix milliseconds.
func Slug(name string, now time.Time) string {
	base := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return fmt.Sprintf("%s-%d", base, now.UnixMilli())
}

// SyncIntent is a pending outbox row: product ProductID must be
// re-indexed. Version grows with every write so a sync that raced a
// newer write does not clear it.
type SyncIntent struct {
	ProductID     string
	Version       int64
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
