package fusion

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

// topK returns the best entries, highest score first with ties in
// first-seen order. When limit is positive only the limit best survive,
// selected with a bounded min-heap.
func topK[T item.Identifiable](entries []*Entry[T], limit int) []Entry[T] {
	if limit <= 0 || limit >= len(entries) {
		sorted := make([]*Entry[T], len(entries))
		copy(sorted, entries)
		sort.Slice(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })
		return deref(sorted)
	}

	h := &entryHeap[T]{}
	heap.Init(h)
	for _, e := range entries {
		heap.Push(h, e)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]*Entry[T], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(*Entry[T])
	}
	return deref(result)
}

func better[T item.Identifiable](a, b *Entry[T]) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.order < b.order
}

func deref[T item.Identifiable](entries []*Entry[T]) []Entry[T] {
	out := make([]Entry[T], len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// entryHeap keeps the worst entry at the root.
type entryHeap[T item.Identifiable] []*Entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool { return better(h[j], h[i]) }

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) {
	*h = append(*h, x.(*Entry[T]))
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
