// Package parser turns free-text search input into residual text plus
// recognized option constraints.
package parser

import (
	"strings"

	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
)

// Parser is a stateless tokenizer over a static dictionary.
type Parser struct {
	dict Dictionary
}

// New creates a parser over dict.
func New(dict Dictionary) *Parser {
	return &Parser{dict: dict}
}

// Parse lowercases raw, splits it on whitespace and resolves each token.
// Hits become options in token order; misses become free text. A hit token
// that repeats is skipped. Parse never fails.
func (p *Parser) Parse(raw string) query.Parsed {
	tokens := strings.Fields(strings.ToLower(raw))

	out := query.Parsed{Options: []query.Option{}}
	consumed := make(map[string]struct{})
	text := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if _, seen := consumed[tok]; seen {
			continue
		}
		if m, ok := p.dict.Lookup(tok); ok {
			out.Options = append(out.Options, query.Option{Name: m.OptionName, Value: m.Value})
			consumed[tok] = struct{}{}
			continue
		}
		text = append(text, tok)
	}

	out.Text = strings.Join(text, " ")
	return out
}
