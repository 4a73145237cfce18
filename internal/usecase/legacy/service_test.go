package legacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/db/bleve"
	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/dictionary"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
	"github.com/kailas-cloud/skuindex/internal/repository/aggregate"
	"github.com/kailas-cloud/skuindex/internal/repository/schema"
	"github.com/kailas-cloud/skuindex/internal/usecase/parser"
)

type mockRepo struct {
	out  []legacy.Aggregate
	err  error
	last *db.Query
}

func (m *mockRepo) Query(_ context.Context, q *db.Query) ([]legacy.Aggregate, error) {
	m.last = q
	return m.out, m.err
}

func TestSearch_IndependentFilters(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, parser.New(dictionary.Default()), 0, zap.NewNop())

	out, err := svc.Search(context.Background(), query.Parsed{
		Text:    "iphone",
		Options: []query.Option{{Name: "Color", Value: "Cosmic Black"}, {Name: "Storage", Value: "1TB"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Error("expected empty non-nil result")
	}

	must := repo.last.Filters.Must()
	if len(must) != 4 {
		t.Fatalf("expected 4 independent filters, got %d", len(must))
	}
	wantKeys := []string{schema.FieldOptName, schema.FieldOptValue, schema.FieldOptName, schema.FieldOptValue}
	for i, c := range must {
		if c.Key() != wantKeys[i] {
			t.Errorf("filter %d key = %s, want %s", i, c.Key(), wantKeys[i])
		}
	}
	if repo.last.Text == nil || repo.last.Text.Field != schema.FieldName {
		t.Errorf("unexpected text clause: %+v", repo.last.Text)
	}
}

func TestSearch_Unavailable(t *testing.T) {
	repo := &mockRepo{err: errors.New("down")}
	_, err := New(repo, nil, 0, zap.NewNop()).Search(context.Background(), query.Parsed{})
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestBleve_PhantomMatch(t *testing.T) {
	ctx := context.Background()
	s, err := bleve.NewStore(bleve.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	if err := schema.New(s, "t:").EnsureSchema(ctx, schema.Legacy); err != nil {
		t.Fatal(err)
	}
	repo := aggregate.New(s, "t:")
	if err := repo.Put(ctx, &legacy.Aggregate{
		SPUID: "p",
		Name:  "iPhone 17 Pro Max",
		AvailableOptions: []legacy.Option{
			{Name: "Color", Value: "Cosmic Black"},
			{Name: "Color", Value: "Galactic Blue"},
			{Name: "Storage", Value: "256GB"},
			{Name: "Storage", Value: "1TB"},
		},
		UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	svc := New(repo, parser.New(dictionary.Default()), time.Second, zap.NewNop())
	out, err := svc.SearchRaw(ctx, "iPhone black 1tb")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].SPUID != "p" {
		t.Errorf("legacy index should report the product, got %+v", out)
	}
}
