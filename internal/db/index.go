package db

import (
	"errors"
	"strconv"
	"strings"
)

// StorageType defines the document storage backend for indexes (HASH or JSON).
type StorageType string

const (
	// StorageHash stores documents as Redis hashes.
	StorageHash StorageType = "HASH"
	// StorageJSON stores documents as JSON.
	StorageJSON StorageType = "JSON"
)

// IndexFieldType enumerates supported index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is an exact-match keyword field.
	IndexFieldTag
	// IndexFieldText is an analyzed full-text field.
	IndexFieldText
	// IndexFieldBool is a boolean field.
	IndexFieldBool
)

// IndexField describes a single field in an index schema.
// Name is a JSONPath for JSON storage ("$.attrs[*].attrKey").
type IndexField struct {
	Name  string
	Alias string // AS alias in FT.CREATE SCHEMA
	Type  IndexFieldType

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool

	// NoIndex keeps the field in the schema but out of the inverted index.
	NoIndex bool
}

// Key returns the name queries use for the field: the alias when set.
func (f *IndexField) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// PathSegments splits a JSONPath field name into property names:
// "$.attrs[*].attrKey" -> ["attrs", "attrKey"].
func (f *IndexField) PathSegments() []string {
	p := strings.TrimPrefix(f.Name, "$")
	p = strings.TrimPrefix(p, ".")
	p = strings.ReplaceAll(p, "[*]", "")
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

// IndexDefinition is a complete index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Key()
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true
	}

	return nil
}

// Field returns the field queried under key, if any.
func (idx *IndexDefinition) Field(key string) (*IndexField, bool) {
	for i := range idx.Fields {
		if idx.Fields[i].Key() == key {
			return &idx.Fields[i], true
		}
	}
	return nil, false
}

// Covers reports whether key falls under one of the index prefixes.
func (idx *IndexDefinition) Covers(key string) bool {
	for _, p := range idx.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
