package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/db/bleve"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/dictionary"
	"github.com/kailas-cloud/skuindex/internal/repository/aggregate"
	catalogrepo "github.com/kailas-cloud/skuindex/internal/repository/catalog"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
	"github.com/kailas-cloud/skuindex/internal/repository/sku"
	healthuc "github.com/kailas-cloud/skuindex/internal/usecase/health"
	legacyuc "github.com/kailas-cloud/skuindex/internal/usecase/legacy"
	"github.com/kailas-cloud/skuindex/internal/usecase/outbox"
	"github.com/kailas-cloud/skuindex/internal/usecase/parser"
	searchuc "github.com/kailas-cloud/skuindex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/skuindex/internal/usecase/sync"
)

// syncKicker drains the outbox synchronously on every kick.
type syncKicker struct {
	t     *testing.T
	relay *outbox.Relay
}

func (k *syncKicker) Kick() {
	if _, err := k.relay.RunOnce(context.Background()); err != nil {
		k.t.Errorf("relay: %v", err)
	}
}

func newFlowFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := bleve.NewStore(bleve.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	if err := schema.New(store, "t:").EnsureAll(ctx); err != nil {
		t.Fatal(err)
	}

	cat, err := catalogrepo.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	skus := sku.New(store, "t:")
	aggs := aggregate.New(store, "t:")
	p := parser.New(dictionary.Default())
	syncer := syncuc.New(cat, skus, aggs, syncuc.Config{}, zap.NewNop())
	relay := outbox.NewRelay(cat, syncer, outbox.Config{Lease: time.Minute}, zap.NewNop())

	f := &fixture{}
	f.server = NewServer(
		p,
		searchuc.New(skus, p, searchuc.Config{}, zap.NewNop()),
		legacyuc.New(aggs, p, 0, zap.NewNop()),
		cat,
		skus,
		&syncKicker{t: t, relay: relay},
		healthuc.New(store, cat),
		zap.NewNop(),
	)
	return f
}

func iphoneDraft() catalog.Draft {
	return catalog.Draft{
		Name: "iPhone 17 Pro Max",
		Variants: []catalog.VariantDraft{
			{SKU: "IP17-BLK-256", Price: 1199, StockQuantity: 5, Options: []catalog.OptionDraft{
				{OptionName: "Color", OptionValue: "Cosmic Black"},
				{OptionName: "Storage", OptionValue: "256GB"},
			}},
			{SKU: "IP17-BLU-1TB", Price: 1599, StockQuantity: 2, Options: []catalog.OptionDraft{
				{OptionName: "Color", OptionValue: "Galactic Blue"},
				{OptionName: "Storage", OptionValue: "1TB"},
			}},
		},
	}
}

func search(t *testing.T, f *fixture, path, q string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodGet, path+"?q="+url.QueryEscape(q), nil)
}

func TestFlow_CreateThenSearch(t *testing.T) {
	f := newFlowFixture(t)

	rr := f.do(t, http.MethodPost, "/products", iphoneDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body)
	}
	created := decode[CreatedResponse](t, rr)

	tests := []struct {
		q         string
		wantTotal int
		wantAttr  string
	}{
		{"iPhone black 1tb", 0, ""},
		{"iphone black 256gb", 1, "Cosmic Black"},
		{"iphone blue 1tb", 1, "Galactic Blue"},
		{"iphone black blue", 1, ""},
	}
	for _, tc := range tests {
		t.Run(tc.q, func(t *testing.T) {
			rr := search(t, f, "/products/search", tc.q)
			if rr.Code != http.StatusOK {
				t.Fatalf("search: %d %s", rr.Code, rr.Body)
			}
			resp := decode[SearchResponse](t, rr)
			if resp.Total != tc.wantTotal {
				t.Fatalf("total = %d, want %d (%+v)", resp.Total, tc.wantTotal, resp.Items)
			}
			if tc.wantTotal == 0 {
				return
			}
			got := resp.Items[0]
			if got.SPUID != created.ID {
				t.Errorf("spuId = %q, want %q", got.SPUID, created.ID)
			}
			if tc.wantAttr != "" && got.Attrs[0].AttrValue != tc.wantAttr {
				t.Errorf("attrs = %+v, want first value %q", got.Attrs, tc.wantAttr)
			}
		})
	}
}

func TestFlow_LegacyReturnsPhantomMatch(t *testing.T) {
	f := newFlowFixture(t)
	if rr := f.do(t, http.MethodPost, "/products", iphoneDraft()); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	rr := search(t, f, "/products/search/legacy", "iphone black 1tb")
	if rr.Code != http.StatusOK {
		t.Fatalf("legacy: %d %s", rr.Code, rr.Body)
	}
	resp := decode[LegacySearchResponse](t, rr)
	if resp.Total != 1 {
		t.Fatalf("legacy total = %d, want the phantom product", resp.Total)
	}
	if resp.Items[0].TotalStock != 7 || resp.Items[0].PriceRange.Max != 1599 {
		t.Errorf("unexpected aggregate: %+v", resp.Items[0])
	}
}

func TestFlow_GetSKUAndResync(t *testing.T) {
	f := newFlowFixture(t)
	rr := f.do(t, http.MethodPost, "/products", iphoneDraft())
	created := decode[CreatedResponse](t, rr)

	found := decode[SearchResponse](t, search(t, f, "/products/search", "iphone blue"))
	if found.Total != 1 {
		t.Fatalf("total = %d", found.Total)
	}
	skuID := found.Items[0].SKUID

	rr = f.do(t, http.MethodGet, "/skus/"+skuID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get sku: %d", rr.Code)
	}
	if got := decode[SKUResponse](t, rr); got.Price != 1599 || !got.HasStock {
		t.Errorf("unexpected sku: %+v", got)
	}

	if rr := f.do(t, http.MethodPost, "/products/"+created.ID+"/sync", nil); rr.Code != http.StatusAccepted {
		t.Fatalf("resync: %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPost, "/products/unknown/sync", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown resync: %d", rr.Code)
	}

	if rr := f.do(t, http.MethodGet, "/health", nil); rr.Code != http.StatusOK {
		t.Errorf("health: %d %s", rr.Code, rr.Body)
	}
}

func TestFlow_CatalogSearchCorrelatesOnVariant(t *testing.T) {
	f := newFlowFixture(t)
	if rr := f.do(t, http.MethodPost, "/products", iphoneDraft()); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	resp := decode[CatalogSearchResponse](t, search(t, f, "/products/search/catalog", "iphone black 1tb"))
	if resp.Total != 0 {
		t.Errorf("catalog must not combine pairs of different variants: %+v", resp.Items)
	}

	resp = decode[CatalogSearchResponse](t, search(t, f, "/products/search/catalog", "iphone blue 1tb"))
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if got := resp.Items[0]; got.Name != "iPhone 17 Pro Max" || len(got.Variants) != 2 || len(got.Variants[1].Options) != 2 {
		t.Errorf("unexpected product: %+v", got)
	}
}

func TestFlow_PriceAndStockRefinements(t *testing.T) {
	f := newFlowFixture(t)
	if rr := f.do(t, http.MethodPost, "/products", iphoneDraft()); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	tests := []struct {
		params    string
		wantTotal int
		wantPrice float64
	}{
		{"&max_price=1300", 1, 1199},
		{"&min_price=1300&in_stock=true", 1, 1599},
		{"&min_price=2000", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.params, func(t *testing.T) {
			rr := f.do(t, http.MethodGet, "/products/search?q=iphone"+tc.params, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("search: %d %s", rr.Code, rr.Body)
			}
			resp := decode[SearchResponse](t, rr)
			if resp.Total != tc.wantTotal {
				t.Fatalf("total = %d, want %d", resp.Total, tc.wantTotal)
			}
			if tc.wantTotal > 0 && resp.Items[0].Price != tc.wantPrice {
				t.Errorf("price = %v, want %v", resp.Items[0].Price, tc.wantPrice)
			}
		})
	}
}
