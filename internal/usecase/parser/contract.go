package parser

import "github.com/kailas-cloud/skuindex/internal/domain/dictionary"

// Dictionary resolves single tokens to canonical option values.
type Dictionary interface {
	Lookup(token string) (dictionary.Match, bool)
}
