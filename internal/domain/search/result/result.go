// Package result holds scored search hits.
package result

import "github.com/kailas-cloud/skuindex/internal/domain/document"

// Hit is a single SKU search hit.
type Hit struct {
	doc   document.SKU
	score float64
}

// New creates a search hit.
func New(doc document.SKU, score float64) Hit {
	return Hit{doc: doc, score: score}
}

// Doc returns the matched SKU document.
func (h *Hit) Doc() document.SKU { return h.doc }

// Score returns the relevance score.
func (h *Hit) Score() float64 { return h.score }

// SPUID returns the parent product id of the hit.
func (h *Hit) SPUID() string { return h.doc.SPUID() }

// Less orders hits best first: score desc, popularity desc, skuId asc.
func Less(a, b *Hit) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	pa, pb := a.doc.PopularityScore(), b.doc.PopularityScore()
	if pa != pb {
		return pa > pb
	}
	return a.doc.SKUID() < b.doc.SKUID()
}
