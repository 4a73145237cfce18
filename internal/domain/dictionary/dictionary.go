// Package dictionary maps free-text tokens to canonical option values.
package dictionary

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry lists the normalized values of one option, in configuration order.
type Entry struct {
	OptionName string  `yaml:"option"`
	Values     []Value `yaml:"values"`
}

// Value is one normalized option value with the tokens that denote it.
type Value struct {
	Normalized string   `yaml:"normalized"`
	Synonyms   []string `yaml:"synonyms"`
}

// Match is a dictionary hit.
type Match struct {
	OptionName string
	Value      string
}

// Dictionary is an immutable token table with a precomputed reverse index.
type Dictionary struct {
	entries []Entry
	reverse map[string]Match
}

// New builds a dictionary. Synonyms are lowercased; the first occurrence
// of a synonym in entry order wins. Synonyms containing whitespace cannot
// match a single token and are kept in Entries only.
func New(entries []Entry) (*Dictionary, error) {
	d := &Dictionary{
		entries: cloneEntries(entries),
		reverse: make(map[string]Match),
	}
	for _, e := range d.entries {
		if strings.TrimSpace(e.OptionName) == "" {
			return nil, errors.New("dictionary: option name is required")
		}
		for _, v := range e.Values {
			if strings.TrimSpace(v.Normalized) == "" {
				return nil, fmt.Errorf("dictionary: option %s: normalized value is required", e.OptionName)
			}
			for _, syn := range v.Synonyms {
				token := strings.ToLower(strings.TrimSpace(syn))
				if token == "" || strings.ContainsAny(token, " \t\n") {
					continue
				}
				if _, taken := d.reverse[token]; taken {
					continue
				}
				d.reverse[token] = Match{OptionName: e.OptionName, Value: v.Normalized}
			}
		}
	}
	return d, nil
}

// Entries returns a copy of the configured entries, in order.
func (d *Dictionary) Entries() []Entry {
	return cloneEntries(d.entries)
}

// Lookup resolves a single token, case-insensitively.
func (d *Dictionary) Lookup(token string) (Match, bool) {
	m, ok := d.reverse[strings.ToLower(token)]
	return m, ok
}

// Len returns the number of indexed tokens.
func (d *Dictionary) Len() int {
	return len(d.reverse)
}

type file struct {
	Entries []Entry `yaml:"entries"`
}

// Load reads a dictionary from a YAML file of the form
//
//	entries:
//	  - option: Storage
//	    values:
//	      - normalized: 1TB
//	        synonyms: [1tb, 1024gb]
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	if len(f.Entries) == 0 {
		return nil, errors.New("dictionary: no entries")
	}
	return New(f.Entries)
}

// Default returns the built-in demo table.
func Default() *Dictionary {
	d, err := New([]Entry{
		{OptionName: "Storage", Values: []Value{
			{Normalized: "256GB", Synonyms: []string{"256gb", "256"}},
			{Normalized: "512GB", Synonyms: []string{"512gb", "512"}},
			{Normalized: "1TB", Synonyms: []string{"1tb", "1024gb", "1 terabyte"}},
		}},
		{OptionName: "Color", Values: []Value{
			{Normalized: "Galactic Blue", Synonyms: []string{"blue", "galactic blue"}},
			{Normalized: "Cosmic Black", Synonyms: []string{"black", "cosmic"}},
			{Normalized: "Crimson Red", Synonyms: []string{"red", "crimson"}},
			{Normalized: "Starlight Silver", Synonyms: []string{"silver", "starlight"}},
		}},
	})
	if err != nil {
		panic(err)
	}
	return d
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		values := make([]Value, len(e.Values))
		for j, v := range e.Values {
			values[j] = Value{Normalized: v.Normalized, Synonyms: append([]string(nil), v.Synonyms...)}
		}
		out[i] = Entry{OptionName: e.OptionName, Values: values}
	}
	return out
}
