package sku

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/db/bleve"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/search/filter"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
)

var (
	black = document.Attr{ID: "v-black", Name: "Color", Value: "Cosmic Black"}
	blue  = document.Attr{ID: "v-blue", Name: "Color", Value: "Galactic Blue"}
	s256  = document.Attr{ID: "v-256", Name: "Storage", Value: "256GB"}
	s1tb  = document.Attr{ID: "v-1tb", Name: "Storage", Value: "1TB"}
)

// --- Replace ---

func TestReplace_WritesComposedAttrKeys(t *testing.T) {
	repo, ms := newTestRepo(t)

	var written []db.JSONSetItem
	ms.jsonSetMultiFn = func(_ context.Context, items []db.JSONSetItem) error {
		written = items
		return nil
	}

	docs := []document.SKU{testSKU(t, "a", "p", black, s256)}
	if err := repo.Replace(context.Background(), "p", docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(written) != 1 || written[0].Key != "app:sku:a" || written[0].Path != "$" {
		t.Fatalf("unexpected items: %+v", written)
	}
	var got skuDoc
	if err := json.Unmarshal(written[0].Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Attrs) != 2 || got.Attrs[0].AttrKey != "Color=Cosmic Black" || got.Attrs[1].AttrKey != "Storage=256GB" {
		t.Errorf("unexpected attrs: %+v", got.Attrs)
	}
}

func TestReplace_DeletesStaleSiblings(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchFn = func(_ context.Context, q *db.Query) (*db.SearchResult, error) {
		if q.IndexName != "app:sku:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		must := q.Filters.Must()
		if len(must) != 1 || must[0].Key() != "spuId" || must[0].Match() != "p" {
			t.Errorf("unexpected sibling filter: %+v", must)
		}
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "app:sku:a"}, {Key: "app:sku:old"}, {Key: "app:sku:skipped"},
		}}, nil
	}
	var deleted []string
	ms.delFn = func(_ context.Context, keys ...string) error {
		deleted = keys
		return nil
	}

	docs := []document.SKU{testSKU(t, "a", "p")}
	if err := repo.Replace(context.Background(), "p", docs, "skipped"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(deleted, []string{"app:sku:old"}) {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestReplace_PagesSiblingScan(t *testing.T) {
	repo, ms := newTestRepo(t)

	var offsets []int
	ms.searchFn = func(_ context.Context, q *db.Query) (*db.SearchResult, error) {
		offsets = append(offsets, q.Offset)
		if len(q.Sort) != 1 || q.Sort[0].Field != schema.FieldSKUID {
			t.Errorf("sibling scan must page in skuId order, got %+v", q.Sort)
		}
		n := q.Limit
		if q.Offset >= q.Limit {
			n = 1
		}
		res := &db.SearchResult{}
		for i := range n {
			res.Entries = append(res.Entries, db.SearchEntry{Key: fmt.Sprintf("app:sku:s%05d", q.Offset+i)})
		}
		return res, nil
	}
	var deleted []string
	ms.delFn = func(_ context.Context, keys ...string) error {
		deleted = keys
		return nil
	}

	if err := repo.Replace(context.Background(), "p", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(offsets, []int{0, siblingPage}) {
		t.Errorf("offsets = %v", offsets)
	}
	if len(deleted) != siblingPage+1 {
		t.Errorf("expected every sibling past the first page deleted, got %d", len(deleted))
	}
}

func TestReplace_RetriesTransientFailure(t *testing.T) {
	repo, ms := newTestRepo(t)

	calls := 0
	ms.jsonSetMultiFn = func(_ context.Context, _ []db.JSONSetItem) error {
		calls++
		if calls < 3 {
			return &db.Error{Op: db.OpJSONSet, Err: errors.New("LOADING")}
		}
		return nil
	}

	if err := repo.Replace(context.Background(), "p", []document.SKU{testSKU(t, "a", "p")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestReplace_GivesUpAfterMaxTries(t *testing.T) {
	repo, ms := newTestRepo(t)

	calls := 0
	boom := errors.New("connection refused")
	ms.jsonSetMultiFn = func(_ context.Context, _ []db.JSONSetItem) error {
		calls++
		return boom
	}

	err := repo.Replace(context.Background(), "p", []document.SKU{testSKU(t, "a", "p")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestReplace_PermanentRoutingError(t *testing.T) {
	repo, ms := newTestRepo(t)

	calls := 0
	ms.jsonSetMultiFn = func(_ context.Context, _ []db.JSONSetItem) error {
		calls++
		return &db.Error{Op: db.OpJSONSet, Err: db.ErrNoIndexForKey}
	}

	err := repo.Replace(context.Background(), "p", []document.SKU{testSKU(t, "a", "p")})
	if !errors.Is(err, db.ErrNoIndexForKey) {
		t.Fatalf("expected ErrNoIndexForKey, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReplace_RejectsForeignSKU(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Replace(context.Background(), "p", []document.SKU{testSKU(t, "a", "other")})
	if err == nil {
		t.Fatal("expected error for sku of another product")
	}
}

func TestReplace_SiblingScanError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return nil, errors.New("timeout")
	}
	ms.jsonSetMultiFn = func(_ context.Context, _ []db.JSONSetItem) error {
		t.Error("nothing must be written when the scan fails")
		return nil
	}
	if err := repo.Replace(context.Background(), "p", []document.SKU{testSKU(t, "a", "p")}); err == nil {
		t.Fatal("expected error")
	}
}

// --- Get ---

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Decodes(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonGetFn = func(_ context.Context, key string, _ ...string) ([]byte, error) {
		if key != "app:sku:a" {
			t.Errorf("unexpected key: %s", key)
		}
		return []byte(`{"skuId":"a","spuId":"p","title":"t","price":10,"attrs":[{"attrId":"1","attrName":"Color","attrValue":"Red","attrKey":"Color=Red"}]}`), nil
	}

	s, err := repo.Get(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if s.SKUID() != "a" || s.Price() != 10 || !s.HasAttr("Color", "Red") {
		t.Errorf("unexpected sku: %+v", s.Fields())
	}
}

// --- Query ---

func TestQuery_SetsIndexAndDecodes(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFn = func(_ context.Context, q *db.Query) (*db.SearchResult, error) {
		if q.IndexName != "app:sku:idx" || !slices.Equal(q.ReturnFields, []string{"$"}) {
			t.Errorf("unexpected query: %+v", q)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: "app:sku:a", Score: 2.5, Fields: map[string]string{"$": `{"skuId":"a","spuId":"p"}`}},
		}}, nil
	}

	hits, err := repo.Query(context.Background(), &db.Query{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Score() != 2.5 || hits[0].SPUID() != "p" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestQuery_Errors(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return nil, errors.New("down")
	}
	if _, err := repo.Query(context.Background(), &db.Query{Limit: 1}); err == nil {
		t.Error("expected search error")
	}

	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{Key: "k", Fields: map[string]string{"$": "{"}}}}, nil
	}
	if _, err := repo.Query(context.Background(), &db.Query{Limit: 1}); err == nil {
		t.Error("expected decode error")
	}
}

// --- against the embedded index ---

func newBleveRepo(t *testing.T) *Repo {
	t.Helper()
	s, err := bleve.NewStore(bleve.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	if err := schema.New(s, "app:").EnsureSchema(context.Background(), schema.SKU); err != nil {
		t.Fatal(err)
	}
	return New(s, "app:")
}

func attrQuery(t *testing.T, pairs ...document.Attr) *db.Query {
	t.Helper()
	conds := make([]filter.Condition, 0, len(pairs))
	for _, p := range pairs {
		c, err := filter.NewMatch(schema.FieldAttrKey, p.Key())
		if err != nil {
			t.Fatal(err)
		}
		conds = append(conds, c)
	}
	expr, err := filter.NewExpression(conds)
	if err != nil {
		t.Fatal(err)
	}
	return &db.Query{Filters: expr, Limit: 10}
}

func TestBleve_CorrelationAcrossVariants(t *testing.T) {
	repo := newBleveRepo(t)
	ctx := context.Background()

	docs := []document.SKU{
		testSKU(t, "a", "p", black, s256),
		testSKU(t, "b", "p", blue, s1tb),
	}
	if err := repo.Replace(ctx, "p", docs); err != nil {
		t.Fatal(err)
	}

	hits, err := repo.Query(ctx, attrQuery(t, black, s1tb))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("pairs from different variants must not match, got %d hits", len(hits))
	}

	hits, err = repo.Query(ctx, attrQuery(t, black, s256))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected variant a, got %d hits", len(hits))
	}
	doc := hits[0].Doc()
	if doc.SKUID() != "a" {
		t.Errorf("got %s", doc.SKUID())
	}
}

func TestBleve_ReplaceRemovesStaleBeyondOnePage(t *testing.T) {
	repo := newBleveRepo(t)
	ctx := context.Background()

	docs := make([]document.SKU, 0, siblingPage+5)
	for i := range siblingPage + 5 {
		docs = append(docs, testSKU(t, fmt.Sprintf("v%05d", i), "p", black))
	}
	if err := repo.Replace(ctx, "p", docs); err != nil {
		t.Fatal(err)
	}

	if err := repo.Replace(ctx, "p", docs[:1]); err != nil {
		t.Fatal(err)
	}
	last := docs[len(docs)-1].SKUID()
	if _, err := repo.Get(ctx, last); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale sibling %s past the first page survived: %v", last, err)
	}
	if _, err := repo.Get(ctx, docs[0].SKUID()); err != nil {
		t.Errorf("kept variant missing: %v", err)
	}
}

func TestBleve_EqualsInOptionName(t *testing.T) {
	repo := newBleveRepo(t)
	ctx := context.Background()

	odd := document.Attr{ID: "v-odd", Name: "a=b", Value: "c"}
	if err := repo.Replace(ctx, "p", []document.SKU{testSKU(t, "a", "p", odd)}); err != nil {
		t.Fatal(err)
	}

	if hits, _ := repo.Query(ctx, attrQuery(t, document.Attr{Name: "a", Value: "b=c"})); len(hits) != 0 {
		t.Errorf("a different split of the same pair matched: %d hits", len(hits))
	}
	hits, err := repo.Query(ctx, attrQuery(t, odd))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("exact pair should match, got %d hits", len(hits))
	}
}

func TestBleve_ReplaceSemantics(t *testing.T) {
	repo := newBleveRepo(t)
	ctx := context.Background()

	if err := repo.Replace(ctx, "p", []document.SKU{
		testSKU(t, "a", "p", black, s256),
		testSKU(t, "b", "p", blue),
	}); err != nil {
		t.Fatal(err)
	}

	// variant a loses its storage selection; variant b is removed upstream
	if err := repo.Replace(ctx, "p", []document.SKU{testSKU(t, "a", "p", black)}); err != nil {
		t.Fatal(err)
	}

	a, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Attrs(); len(got) != 1 || got[0] != black {
		t.Errorf("stale attrs survived: %+v", got)
	}
	if hits, _ := repo.Query(ctx, attrQuery(t, s256)); len(hits) != 0 {
		t.Errorf("old attr term still matches: %d hits", len(hits))
	}
	if _, err := repo.Get(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale sibling b should be deleted, got %v", err)
	}
}
