package parser

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
)

// DefaultCacheSize bounds the number of memoised inputs.
const DefaultCacheSize = 4096

// Cached memoises Parse by raw input. Valid only while the dictionary is static.
type Cached struct {
	parser *Parser
	cache  *lru.Cache[string, query.Parsed]
}

// NewCached wraps p with an LRU of size entries (DefaultCacheSize when size <= 0).
func NewCached(p *Parser, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, query.Parsed](size)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}
	return &Cached{parser: p, cache: cache}, nil
}

// Parse returns the memoised result for raw, parsing on a miss.
// The returned options slice is a copy.
func (c *Cached) Parse(raw string) query.Parsed {
	if hit, ok := c.cache.Get(raw); ok {
		return clone(hit)
	}
	parsed := c.parser.Parse(raw)
	c.cache.Add(raw, clone(parsed))
	return parsed
}

// Len returns the number of memoised inputs.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func clone(p query.Parsed) query.Parsed {
	opts := make([]query.Option, len(p.Options))
	copy(opts, p.Options)
	return query.Parsed{Text: p.Text, Options: opts}
}
