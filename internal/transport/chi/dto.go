package chi

import (
	"time"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest        = "bad_request"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeValidationFailed  = "validation_failed"
	CodeRateLimited       = "rate_limited"
	CodeSearchUnavailable = "search_unavailable"
	CodeInternalError     = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AttrResponse is one attrs element of a SKU.
type AttrResponse struct {
	AttrID    string `json:"attrId"`
	AttrName  string `json:"attrName"`
	AttrValue string `json:"attrValue"`
}

// SKUResponse is the JSON shape of a SKU document.
type SKUResponse struct {
	SKUID           string         `json:"skuId"`
	SPUID           string         `json:"spuId"`
	Title           string         `json:"title"`
	Price           float64        `json:"price"`
	Image           string         `json:"image"`
	HasStock        bool           `json:"hasStock"`
	PopularityScore float64        `json:"popularityScore"`
	SaleCount       int64          `json:"saleCount"`
	BrandID         string         `json:"brandId"`
	BrandName       string         `json:"brandName"`
	CategoryID      string         `json:"categoryId"`
	CategoryName    string         `json:"categoryName"`
	Attrs           []AttrResponse `json:"attrs"`
}

// SearchResponse lists search results.
type SearchResponse struct {
	Items []SKUResponse `json:"items"`
	Total int           `json:"total"`
}

// OptionResponse is one element of the legacy option union.
type OptionResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PriceRangeResponse spans variant prices.
type PriceRangeResponse struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LegacyResponse is the JSON shape of a legacy aggregate.
type LegacyResponse struct {
	SPUID            string             `json:"spuId"`
	Slug             string             `json:"slug"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Brand            string             `json:"brand"`
	Categories       []string           `json:"categories"`
	PriceRange       PriceRangeResponse `json:"price_range"`
	TotalStock       int                `json:"total_stock"`
	IsInStock        bool               `json:"is_in_stock"`
	AvailableOptions []OptionResponse   `json:"available_options"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// LegacySearchResponse lists legacy results.
type LegacySearchResponse struct {
	Items []LegacyResponse `json:"items"`
	Total int              `json:"total"`
}

// VariantResponse is one catalog variant with its option selections.
type VariantResponse struct {
	ID            string           `json:"id"`
	SKU           string           `json:"sku"`
	Price         float64          `json:"price"`
	StockQuantity int              `json:"stockQuantity"`
	Image         string           `json:"image"`
	Options       []OptionResponse `json:"options"`
}

// CatalogProductResponse is a product read from the relational catalog.
type CatalogProductResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	BrandName       string            `json:"brandName"`
	CategoryName    string            `json:"categoryName"`
	PopularityScore float64           `json:"popularityScore"`
	Variants        []VariantResponse `json:"variants"`
}

// CatalogSearchResponse lists relational search results.
type CatalogSearchResponse struct {
	Items []CatalogProductResponse `json:"items"`
	Total int                      `json:"total"`
}

// CreatedResponse is returned by POST /products.
type CreatedResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// AcceptedResponse is returned by POST /products/{id}/sync.
type AcceptedResponse struct {
	ProductID string `json:"productId"`
	Status    string `json:"status"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func skuToResponse(s *document.SKU) SKUResponse {
	f := s.Fields()
	attrs := make([]AttrResponse, len(f.Attrs))
	for i, a := range f.Attrs {
		attrs[i] = AttrResponse{AttrID: a.ID, AttrName: a.Name, AttrValue: a.Value}
	}
	return SKUResponse{
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

func legacyToResponse(a *legacy.Aggregate) LegacyResponse {
	opts := make([]OptionResponse, len(a.AvailableOptions))
	for i, o := range a.AvailableOptions {
		opts[i] = OptionResponse{Name: o.Name, Value: o.Value}
	}
	categories := a.Categories
	if categories == nil {
		categories = []string{}
	}
	return LegacyResponse{
		SPUID:            a.SPUID,
		Slug:             a.Slug,
		Name:             a.Name,
		Description:      a.Description,
		Brand:            a.Brand,
		Categories:       categories,
		PriceRange:       PriceRangeResponse{Min: a.PriceRange.Min, Max: a.PriceRange.Max},
		TotalStock:       a.TotalStock,
		IsInStock:        a.IsInStock,
		AvailableOptions: opts,
		UpdatedAt:        a.UpdatedAt,
	}
}

func productToResponse(p *catalog.Product) CatalogProductResponse {
	variants := make([]VariantResponse, len(p.Variants))
	for i, v := range p.Variants {
		opts := make([]OptionResponse, 0, len(v.Selections))
		for _, sel := range v.Selections {
			if !sel.Resolved() {
				continue
			}
			opts = append(opts, OptionResponse{Name: sel.OptionName, Value: sel.Value})
		}
		variants[i] = VariantResponse{
			ID:            v.ID,
			SKU:           v.SKU,
			Price:         v.Price,
			StockQuantity: v.StockQuantity,
			Image:         v.Image,
			Options:       opts,
		}
	}
	return CatalogProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		BrandName:       p.BrandName,
		CategoryName:    p.CategoryName,
		PopularityScore: p.PopularityScore,
		Variants:        variants,
	}
}
