package bleve

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/skuindex/internal/db"
	"github.com/kailas-cloud/skuindex/internal/domain/search/filter"
)

// Search runs a structured query. Hits follow q.Sort (score when empty)
// and start at q.Offset; Fields["$"] carries the JSON source when requested.
func (s *Store) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &db.Error{Op: db.OpSearch, Err: errClosed}
	}
	ix, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	bq, err := buildQuery(ix.def, q)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	sortBy, err := buildSort(ix.def, q.Sort)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	req := bleve.NewSearchRequestOptions(bq, q.Limit, q.Offset, false)
	if len(sortBy) > 0 {
		req.SortBy(sortBy)
	}
	wantSource := wantsSource(q.ReturnFields)
	if wantSource {
		req.Fields = []string{sourceField}
	}

	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		e := db.SearchEntry{Key: hit.ID, Score: hit.Score, Fields: map[string]string{}}
		if wantSource {
			if src, ok := hit.Fields[sourceField].(string); ok {
				e.Fields["$"] = src
			}
		}
		entries = append(entries, e)
	}
	return &db.SearchResult{Total: int(res.Total), Entries: entries}, nil
}

func wantsSource(fields []string) bool {
	for _, f := range fields {
		if f == "$" {
			return true
		}
	}
	return false
}

// buildQuery scores the text clause (match-all when absent) and applies the
// conjunction of filters as a non-scoring filter clause.
func buildQuery(def *db.IndexDefinition, q *db.Query) (query.Query, error) {
	text, err := buildTextQuery(def, q.Text)
	if err != nil {
		return nil, err
	}

	bq := bleve.NewBooleanQuery()
	bq.AddMust(text)

	must := q.Filters.Must()
	if len(must) == 0 {
		return bq, nil
	}
	filters := make([]query.Query, 0, len(must))
	for _, cond := range must {
		cq, err := buildCondition(def, cond)
		if err != nil {
			return nil, err
		}
		filters = append(filters, cq)
	}
	bq.AddFilter(bleve.NewConjunctionQuery(filters...))
	return bq, nil
}

// buildSort maps sort keys onto bleve sort strings, "-" marking descending.
func buildSort(def *db.IndexDefinition, keys []db.SortKey) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		name := k.Field
		if name != db.SortScore {
			f, err := lookupField(def, k.Field)
			if err != nil {
				return nil, err
			}
			name = fieldName(f)
		}
		if k.Desc {
			name = "-" + name
		}
		out = append(out, name)
	}
	return out, nil
}

// buildTextQuery requires every term; each term tolerates FuzzyDistance edits when fuzzy.
func buildTextQuery(def *db.IndexDefinition, t *db.TextMatch) (query.Query, error) {
	if t == nil {
		return bleve.NewMatchAllQuery(), nil
	}
	terms := make([]query.Query, 0, len(t.Terms))
	for _, term := range t.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		f, err := lookupField(def, t.Field)
		if err != nil {
			return nil, err
		}
		mq := bleve.NewMatchQuery(term)
		mq.SetField(fieldName(f))
		mq.SetOperator(query.MatchQueryOperatorAnd)
		if t.Fuzzy {
			mq.SetFuzziness(db.FuzzyDistance(term))
		}
		terms = append(terms, mq)
	}
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	return bleve.NewConjunctionQuery(terms...), nil
}

func buildCondition(def *db.IndexDefinition, cond filter.Condition) (query.Query, error) {
	f, err := lookupField(def, cond.Key())
	if err != nil {
		return nil, err
	}
	name := fieldName(f)

	switch {
	case cond.IsMatch():
		values := cond.Values()
		qs := make([]query.Query, 0, len(values))
		for _, v := range values {
			vq, err := valueQuery(f, name, v)
			if err != nil {
				return nil, err
			}
			qs = append(qs, vq)
		}
		if len(qs) == 1 {
			return qs[0], nil
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case cond.IsRange():
		return rangeQuery(name, *cond.Range()), nil
	default:
		return nil, fmt.Errorf("condition on %q has no match or range", cond.Key())
	}
}

// valueQuery matches one exact value: a term for tags, a boolean for bools.
func valueQuery(f *db.IndexField, name, value string) (query.Query, error) {
	switch f.Type {
	case db.IndexFieldBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid bool %q", f.Key(), value)
		}
		bq := bleve.NewBoolFieldQuery(b)
		bq.SetField(name)
		return bq, nil
	case db.IndexFieldTag:
		if !f.TagCaseSensitive {
			value = strings.ToLower(value)
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(name)
		return tq, nil
	case db.IndexFieldText:
		mq := bleve.NewMatchQuery(value)
		mq.SetField(name)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		return mq, nil
	case db.IndexFieldNumeric:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid number %q", f.Key(), value)
		}
		incl := true
		nq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &incl, &incl)
		nq.SetField(name)
		return nq, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported type %d", f.Key(), f.Type)
	}
}

func rangeQuery(name string, r filter.Range) query.Query {
	var (
		lo, hi         *float64
		loIncl, hiIncl *bool
	)
	incl, excl := true, false

	if r.GT() != nil {
		lo, loIncl = r.GT(), &excl
	} else if r.GTE() != nil {
		lo, loIncl = r.GTE(), &incl
	}
	if r.LT() != nil {
		hi, hiIncl = r.LT(), &excl
	} else if r.LTE() != nil {
		hi, hiIncl = r.LTE(), &incl
	}

	nq := bleve.NewNumericRangeInclusiveQuery(lo, hi, loIncl, hiIncl)
	nq.SetField(name)
	return nq
}

func lookupField(def *db.IndexDefinition, key string) (*db.IndexField, error) {
	f, ok := def.Field(key)
	if !ok {
		return nil, fmt.Errorf("index %s: unknown field %q", def.Name, key)
	}
	if f.NoIndex {
		return nil, fmt.Errorf("index %s: field %q is not indexed", def.Name, key)
	}
	return f, nil
}
