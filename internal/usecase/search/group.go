package search

import (
	"slices"

	"github.com/kailas-cloud/skuindex/internal/domain/search/result"
)

// groupBySPU keeps the best hit of every product, orders the survivors
// best first and truncates to limit.
func groupBySPU(hits []result.Hit, limit int) []result.Hit {
	best := make(map[string]int, len(hits))
	grouped := make([]result.Hit, 0, len(hits))

	for i := range hits {
		spu := hits[i].SPUID()
		j, ok := best[spu]
		if !ok {
			best[spu] = len(grouped)
			grouped = append(grouped, hits[i])
			continue
		}
		if result.Less(&hits[i], &grouped[j]) {
			grouped[j] = hits[i]
		}
	}

	slices.SortFunc(grouped, func(a, b result.Hit) int {
		switch {
		case result.Less(&a, &b):
			return -1
		case result.Less(&b, &a):
			return 1
		default:
			return 0
		}
	})

	if len(grouped) > limit {
		grouped = grouped[:limit]
	}
	return grouped
}
