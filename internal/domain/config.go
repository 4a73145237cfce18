package domain

// DefaultKeyPrefix namespaces every key and index name in the search store.
const DefaultKeyPrefix = "skuindex:"

// SearchConfig holds read-path sizing, not exposed to clients.
type SearchConfig struct {
	// DefaultLimit caps the result page when the caller gives no limit.
	DefaultLimit int
	// MaxLimit bounds caller-supplied limits.
	MaxLimit int
	// Overfetch multiplies the limit before grouping by product.
	Overfetch int
	// MaxFetch bounds limit*Overfetch, which is also the page size.
	MaxFetch int
	// MaxScan bounds the raw hits read for one search.
	MaxScan int
}

// DefaultSearchConfig returns the default page cap of 20 with a 5x overfetch.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
		Overfetch:    5,
		MaxFetch:     500,
		MaxScan:      10000,
	}
}

// FetchSize is the number of raw hits requested for a page of limit products.
func (c SearchConfig) FetchSize(limit int) int {
	n := limit * c.Overfetch
	if n < limit {
		n = limit
	}
	if c.MaxFetch > 0 && n > c.MaxFetch {
		n = c.MaxFetch
	}
	return n
}
