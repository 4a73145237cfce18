package catalog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
)

func seedSearch(t *testing.T, r *Repo) {
	t.Helper()
	ctx := context.Background()
	if _, err := r.CreateProduct(ctx, iphoneDraft()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateProduct(ctx, &catalog.Draft{
		Name: "iPhone Air",
		Variants: []catalog.VariantDraft{
			{SKU: "AIR-BLK-1TB", Price: 999, Options: []catalog.OptionDraft{
				{OptionName: "Color", OptionValue: "Cosmic Black"},
				{OptionName: "Storage", OptionValue: "1TB"},
			}},
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateProduct(ctx, &catalog.Draft{
		Name:     "Galaxy 100% Ultra",
		Variants: []catalog.VariantDraft{{SKU: "GX-1", Price: 899}},
	}); err != nil {
		t.Fatal(err)
	}
}

func names(ps []catalog.Product) []string {
	out := make([]string, len(ps))
	for i := range ps {
		out[i] = ps[i].Name
	}
	return out
}

func TestSearchProducts(t *testing.T) {
	r, _ := newTestRepo(t)
	seedSearch(t, r)

	black := query.Option{Name: "Color", Value: "Cosmic Black"}
	tests := []struct {
		name   string
		parsed query.Parsed
		want   []string
	}{
		{"text only", query.Parsed{Text: "iphone"}, []string{"iPhone 17  Pro Max", "iPhone Air"}},
		{"every term", query.Parsed{Text: "iphone max"}, []string{"iPhone 17  Pro Max"}},
		{
			"pairs on one variant",
			query.Parsed{Text: "iphone", Options: []query.Option{black, {Name: "Storage", Value: "1TB"}}},
			[]string{"iPhone Air"},
		},
		{
			"alternatives of one option",
			query.Parsed{Options: []query.Option{{Name: "storage", Value: "256gb"}, {Name: "Storage", Value: "1TB"}}},
			[]string{"iPhone 17  Pro Max", "iPhone Air"},
		},
		{"like wildcards are literal", query.Parsed{Text: "100%"}, []string{"Galaxy 100% Ultra"}},
		{"underscore is literal", query.Parsed{Text: "_"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.SearchProducts(context.Background(), tc.parsed, 10)
			if err != nil {
				t.Fatal(err)
			}
			gotNames := names(got)
			if len(gotNames) != len(tc.want) {
				t.Fatalf("got %v, want %v", gotNames, tc.want)
			}
			seen := map[string]bool{}
			for _, n := range gotNames {
				seen[n] = true
			}
			for _, n := range tc.want {
				if !seen[n] {
					t.Errorf("missing %q in %v", n, gotNames)
				}
			}
		})
	}
}

func TestSearchProducts_ReturnsWholeProduct(t *testing.T) {
	r, _ := newTestRepo(t)
	seedSearch(t, r)

	got, err := r.SearchProducts(context.Background(), query.Parsed{
		Options: []query.Option{{Name: "Color", Value: "Galactic Blue"}},
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Variants) != 2 {
		t.Fatalf("expected the 17 Pro Max with both variants, got %+v", got)
	}
}

func TestSearchProducts_Limit(t *testing.T) {
	r, _ := newTestRepo(t)
	seedSearch(t, r)

	got, err := r.SearchProducts(context.Background(), query.Parsed{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 products, got %d", len(got))
	}
	if _, err := r.SearchProducts(context.Background(), query.Parsed{}, 0); err == nil {
		t.Error("expected error for zero limit")
	}
}
