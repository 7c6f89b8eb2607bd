// Package fusion merges ranked lists from independent sources into one
// ranking, either by reciprocal rank (RRF) or by weighted scores.
//
// Results are deduplicated by item ID. The first occurrence of an ID wins
// as the representative item, and equal fused scores keep first-seen order.
package fusion

import (
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

// DefaultK is the RRF rank constant.
const DefaultK = 60

// List is one source's ranking. A Weight <= 0 counts as 1.0.
type List[T item.Identifiable] struct {
	Name    string
	Weight  float64
	Results []item.Ranked[T]
}

func (l List[T]) weight() float64 {
	if l.Weight <= 0 {
		return 1.0
	}
	return l.Weight
}

// Options configures RRF. K <= 0 selects DefaultK, Limit <= 0 keeps every
// result.
type Options struct {
	K     float64
	Limit int
}

// Appearance records one list that contained a fused item and the 1-based
// rank it held there.
type Appearance struct {
	List string `json:"list"`
	Rank int    `json:"rank"`
}

// Entry is the per-item accumulator. Count is the number of lists that
// contributed to Score.
type Entry[T item.Identifiable] struct {
	Item        T            `json:"item"`
	Score       float64      `json:"score"`
	Count       int          `json:"count"`
	Appearances []Appearance `json:"appearances,omitempty"`
	order       int
}

// RRF fuses lists by reciprocal rank: the item at 1-based rank r of a list
// contributes weight/(K + r).
func RRF[T item.Identifiable](lists []List[T], opts Options) []item.Ranked[T] {
	return toRanked(RRFWithMetadata(lists, opts))
}

// RRFWithMetadata is RRF that also reports, per item, which lists contained
// it and at what rank.
func RRFWithMetadata[T item.Identifiable](lists []List[T], opts Options) []Entry[T] {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	acc := newAccumulator[T]()
	for li, list := range lists {
		w := list.weight()
		for i, r := range list.Results {
			rank := i + 1
			e, fresh := acc.entry(li, r.Item)
			if !fresh {
				continue
			}
			e.Score += w / (k + float64(rank))
			e.Appearances = append(e.Appearances, Appearance{List: list.Name, Rank: rank})
		}
	}
	return topK(acc.entries, opts.Limit)
}

// accumulator tracks entries by ID in first-seen order. An item that
// repeats within one list only counts at its best rank.
type accumulator[T item.Identifiable] struct {
	byID     map[string]*Entry[T]
	lastList map[string]int
	entries  []*Entry[T]
}

func newAccumulator[T item.Identifiable]() *accumulator[T] {
	return &accumulator[T]{
		byID:     make(map[string]*Entry[T]),
		lastList: make(map[string]int),
	}
}

// entry returns the accumulator for it and whether list li has not yet
// contributed to it.
func (a *accumulator[T]) entry(li int, it T) (*Entry[T], bool) {
	id := it.ID()
	e, ok := a.byID[id]
	if !ok {
		e = &Entry[T]{Item: it, order: len(a.entries)}
		a.byID[id] = e
		a.entries = append(a.entries, e)
	} else if a.lastList[id] == li {
		return e, false
	}
	a.lastList[id] = li
	e.Count++
	return e, true
}

func toRanked[T item.Identifiable](entries []Entry[T]) []item.Ranked[T] {
	out := make([]item.Ranked[T], len(entries))
	for i, e := range entries {
		out[i] = item.Ranked[T]{Item: e.Item, Score: e.Score}
	}
	return out
}
