package index

import "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"

// Posting is everything the index keeps about one item: the item itself,
// its term frequencies and token length, and the sequence number of its
// first insertion, which orders equal-score results.
type Posting struct {
	Item   item.Item
	Terms  map[string]int
	Length int
	Seq    uint64
}

// Stats summarises the index for diagnostics and metrics.
type Stats struct {
	Documents int     `json:"documents"`
	Terms     int     `json:"terms"`
	AvgLength float64 `json:"avg_length"`
}

// diff reports the terms present only in prev and only in next.
func diff(prev, next map[string]int) (removed, added []string) {
	for term := range prev {
		if _, ok := next[term]; !ok {
			removed = append(removed, term)
		}
	}
	for term := range next {
		if _, ok := prev[term]; !ok {
			added = append(added, term)
		}
	}
	return removed, added
}
