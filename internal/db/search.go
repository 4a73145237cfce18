package db

import "github.com/kailas-cloud/skuindex/internal/domain/search/filter"

// Query is a structured request: optional text clause, filters and a result
// window. A nil Text matches every document of the index. Filters never
// contribute to the score.
type Query struct {
	IndexName    string
	Text         *TextMatch
	Filters      filter.Expression
	Sort         []SortKey
	Offset       int
	Limit        int
	ReturnFields []string
}

// SortScore names the relevance score in a SortKey.
const SortScore = "_score"

// SortKey orders hits by one field. An empty Sort means score descending.
type SortKey struct {
	Field string
	Desc  bool
}

// TextMatch requires every term to match Field.
// With Fuzzy set each term tolerates FuzzyDistance(term) edits.
type TextMatch struct {
	Field string
	Terms []string
	Fuzzy bool
}

// FuzzyDistance returns the edit distance allowed for a term:
// 0 up to two runes, 1 up to five, 2 beyond.
func FuzzyDistance(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Fields["$"] holds the JSON source when requested via ReturnFields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
