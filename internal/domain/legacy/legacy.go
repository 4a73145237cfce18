// Package legacy holds the per-product aggregate document with the union
// of every variant's options. The union loses which values co-occur on one
// variant, so filters over it return phantom matches. Nothing on the SKU
// search path imports this package.
package legacy

import "time"

// Option is one (name, value) pair from the union.
type Option struct {
	Name  string
	Value string
}

// PriceRange spans the variant prices.
type PriceRange struct {
	Min float64
	Max float64
}

// Aggregate is the legacy SPU document.
type Aggregate struct {
	SPUID            string
	Slug             string
	Name             string
	Description      string
	Brand            string
	Categories       []string
	PriceRange       PriceRange
	TotalStock       int
	IsInStock        bool
	AvailableOptions []Option
	UpdatedAt        time.Time
}

// Offers reports whether the union contains the pair. A true result for two
// pairs does not mean one variant carries both.
func (a *Aggregate) Offers(name, value string) bool {
	for _, o := range a.AvailableOptions {
		if o.Name == name && o.Value == value {
			return true
		}
	}
	return false
}
