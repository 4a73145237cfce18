package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
)

// --- Mocks ---

type mockCatalog struct {
	product catalog.Product
	err     error
}

func (m *mockCatalog) FetchAggregate(_ context.Context, _ string) (catalog.Product, error) {
	return m.product, m.err
}

type mockSKUs struct {
	mu     stdsync.Mutex
	calls  int
	spuID  string
	docs   []document.SKU
	retain []string
	err    error
}

func (m *mockSKUs) Replace(_ context.Context, spuID string, docs []document.SKU, retain ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.spuID, m.docs, m.retain = spuID, docs, retain
	return m.err
}

type mockLegacy struct {
	mu    stdsync.Mutex
	calls int
	agg   legacy.Aggregate
	err   error
}

func (m *mockLegacy) Put(_ context.Context, a *legacy.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.agg = *a
	return m.err
}

func product() catalog.Product {
	return catalog.Product{
		ID:   "p",
		Name: "iPhone 17 Pro Max",
		Variants: []catalog.Variant{
			{ID: "a", ProductID: "p", Price: 1199, StockQuantity: 1, Selections: []catalog.Selection{
				{OptionID: "o1", OptionName: "Color", ValueID: "v1", Value: "Cosmic Black"},
			}},
			{ID: "b", ProductID: "p", Price: 1599, Selections: []catalog.Selection{
				{OptionID: "o2", OptionName: "Storage", ValueID: "v2", Value: "1TB"},
			}},
		},
	}
}

func newTestService(c *mockCatalog) (*Service, *mockSKUs, *mockLegacy) {
	skus := &mockSKUs{}
	leg := &mockLegacy{}
	return New(c, skus, leg, Config{}, zap.NewNop()), skus, leg
}

// --- Tests ---

func TestSyncProduct_WritesBothIndexes(t *testing.T) {
	svc, skus, leg := newTestService(&mockCatalog{product: product()})

	if err := svc.SyncProduct(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if skus.calls != 1 || skus.spuID != "p" || len(skus.docs) != 2 {
		t.Errorf("sku writer: calls=%d spu=%s docs=%d", skus.calls, skus.spuID, len(skus.docs))
	}
	if len(skus.retain) != 0 {
		t.Errorf("nothing should be retained, got %v", skus.retain)
	}
	if leg.calls != 1 || len(leg.agg.AvailableOptions) != 2 {
		t.Errorf("legacy writer: calls=%d agg=%+v", leg.calls, leg.agg)
	}
}

func TestSyncProduct_NotFoundIsSkipped(t *testing.T) {
	svc, skus, leg := newTestService(&mockCatalog{err: domain.ErrNotFound})

	if err := svc.SyncProduct(context.Background(), "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if skus.calls != 0 || leg.calls != 0 {
		t.Error("nothing should be written or removed")
	}
}

func TestSyncProduct_EmptyVariantSetIsSkipped(t *testing.T) {
	p := product()
	p.Variants = nil
	svc, skus, leg := newTestService(&mockCatalog{product: p})

	if err := svc.SyncProduct(context.Background(), "p"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if skus.calls != 0 || leg.calls != 0 {
		t.Error("nothing should be written or removed")
	}
}

func TestSyncProduct_SkippedVariantIsRetained(t *testing.T) {
	p := product()
	p.Variants[1].Selections[0].OptionName = ""
	svc, skus, _ := newTestService(&mockCatalog{product: p})

	if err := svc.SyncProduct(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if len(skus.docs) != 1 || skus.docs[0].SKUID() != "a" {
		t.Errorf("expected only a, got %d docs", len(skus.docs))
	}
	if len(skus.retain) != 1 || skus.retain[0] != "b" {
		t.Errorf("skipped variant should be retained, got %v", skus.retain)
	}
}

func TestSyncProduct_IndexFailure(t *testing.T) {
	tests := []struct {
		name      string
		skuErr    error
		legacyErr error
	}{
		{"sku index down", errors.New("sku down"), nil},
		{"legacy index down", nil, errors.New("legacy down")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, skus, leg := newTestService(&mockCatalog{product: product()})
			skus.err = tc.skuErr
			leg.err = tc.legacyErr

			err := svc.SyncProduct(context.Background(), "p")
			if !errors.Is(err, domain.ErrIndexUnavailable) {
				t.Fatalf("expected ErrIndexUnavailable, got %v", err)
			}
		})
	}
}

func TestSyncProduct_FetchFailure(t *testing.T) {
	boom := errors.New("catalog down")
	svc, skus, _ := newTestService(&mockCatalog{err: boom})

	err := svc.SyncProduct(context.Background(), "p")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped catalog error, got %v", err)
	}
	if errors.Is(err, domain.ErrIndexUnavailable) {
		t.Error("a catalog failure is not an index failure")
	}
	if skus.calls != 0 {
		t.Error("nothing should be written")
	}
}

func TestSyncProduct_WithoutLegacyWriter(t *testing.T) {
	skus := &mockSKUs{}
	svc := New(&mockCatalog{product: product()}, skus, nil, Config{}, zap.NewNop())
	if err := svc.SyncProduct(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if skus.calls != 1 {
		t.Errorf("expected one sku write, got %d", skus.calls)
	}
}

func TestSyncAsync_LogsOnly(t *testing.T) {
	svc, skus, _ := newTestService(&mockCatalog{product: product()})
	skus.err = errors.New("down")

	svc.SyncAsync("p")
	svc.Wait()

	if skus.calls != 1 {
		t.Errorf("expected one write attempt, got %d", skus.calls)
	}
}
