package bleve

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/skuindex/internal/db"
)

const (
	// foldingAnalyzer lowercases and strips diacritics: "Điện" and "dien" share a term.
	foldingAnalyzer = "sku_folding"

	// lowerKeywordAnalyzer keeps the whole value as one lowercased term.
	lowerKeywordAnalyzer = "sku_lower_keyword"

	// sourceField holds the raw JSON document. Stored, never indexed.
	sourceField = "__source"

	// definitionKey stores the serialized db.IndexDefinition inside the index.
	definitionKey = "skuindex:definition"
)

// buildMapping derives a static bleve mapping from an index definition.
// Every field is registered under its JSONPath; queries address it by
// parent path plus alias ("attrs.attr_key"), which is how bleve names
// aliased fields inside sub-documents.
func buildMapping(def *db.IndexDefinition) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(foldingAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("add folding analyzer: %w", err)
	}

	err = im.AddCustomAnalyzer(lowerKeywordAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("add keyword analyzer: %w", err)
	}

	im.DefaultAnalyzer = foldingAnalyzer
	im.IndexDynamic = false
	im.StoreDynamic = false

	root := bleve.NewDocumentStaticMapping()
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.NoIndex {
			continue
		}
		segs := f.PathSegments()
		if len(segs) == 0 {
			return nil, fmt.Errorf("field %q: empty path", f.Name)
		}

		dm := root
		for _, seg := range segs[:len(segs)-1] {
			sub, ok := dm.Properties[seg]
			if !ok {
				sub = bleve.NewDocumentStaticMapping()
				dm.AddSubDocumentMapping(seg, sub)
			}
			dm = sub
		}

		fm, err := fieldMapping(f)
		if err != nil {
			return nil, err
		}
		dm.AddFieldMappingsAt(segs[len(segs)-1], fm)
	}

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.IncludeTermVectors = false
	src.DocValues = false
	root.AddFieldMappingsAt(sourceField, src)

	im.DefaultMapping = root
	return im, nil
}

// fieldMapping maps one index field type to a bleve field mapping.
// TagSeparator has no equivalent: tag lists are indexed from JSON arrays.
func fieldMapping(f *db.IndexField) (*mapping.FieldMapping, error) {
	var fm *mapping.FieldMapping
	switch f.Type {
	case db.IndexFieldText:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = foldingAnalyzer
	case db.IndexFieldTag:
		fm = bleve.NewKeywordFieldMapping()
		if !f.TagCaseSensitive {
			fm.Analyzer = lowerKeywordAnalyzer
		}
	case db.IndexFieldNumeric:
		fm = bleve.NewNumericFieldMapping()
	case db.IndexFieldBool:
		fm = bleve.NewBooleanFieldMapping()
	default:
		return nil, fmt.Errorf("field %q: unsupported type %d", f.Name, f.Type)
	}
	fm.Name = leafName(f)
	fm.Store = false
	fm.IncludeInAll = false
	return fm, nil
}

func leafName(f *db.IndexField) string {
	if f.Alias != "" {
		return f.Alias
	}
	segs := f.PathSegments()
	return segs[len(segs)-1]
}

// fieldName is the name bleve indexes f under.
func fieldName(f *db.IndexField) string {
	segs := f.PathSegments()
	parts := make([]string, 0, len(segs))
	parts = append(parts, segs[:len(segs)-1]...)
	parts = append(parts, leafName(f))
	return strings.Join(parts, ".")
}
