// Package query holds the parsed form of a free-text product search.
package query

// Option is one recognized attribute constraint, e.g. {Color, Cosmic Black}.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parsed is the parser output: residual free text plus recognized options
// in the order their tokens appeared.
type Parsed struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// IsEmpty reports whether the query carries neither text nor options.
func (p Parsed) IsEmpty() bool {
	return p.Text == "" && len(p.Options) == 0
}

// Grouped folds options by name, preserving first-appearance order of names
// and values, dropping repeated pairs.
func (p Parsed) Grouped() []Group {
	var groups []Group
	index := make(map[string]int)
	for _, o := range p.Options {
		i, ok := index[o.Name]
		if !ok {
			index[o.Name] = len(groups)
			groups = append(groups, Group{Name: o.Name, Values: []string{o.Value}})
			continue
		}
		if !contains(groups[i].Values, o.Value) {
			groups[i].Values = append(groups[i].Values, o.Value)
		}
	}
	return groups
}

// Group is every requested value of one option name.
type Group struct {
	Name   string
	Values []string
}

func contains(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
