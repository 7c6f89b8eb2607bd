package index

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

func benchDocument(i int) *item.Document {
	return &item.Document{
		DocID: fmt.Sprintf("doc-%d", i),
		Title: "hybrid retrieval",
		Body:  "graph traversal with vector similarity and keyword ranking fused into one result list",
	}
}

func populated(n int) *Index {
	idx := New(DefaultConfig())
	for i := 0; i < n; i++ {
		_, _ = idx.Add(benchDocument(i))
	}
	return idx
}

// BenchmarkIndexAdd measures per-item insert throughput.
func BenchmarkIndexAdd(b *testing.B) {
	idx := New(DefaultConfig())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Add(benchDocument(i))
	}
}

// BenchmarkIndexSearch measures a two-term query over 10 000 items.
func BenchmarkIndexSearch(b *testing.B) {
	idx := populated(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Search("vector ranking", 10, 0)
	}
}

// BenchmarkGuardedSearchParallel measures concurrent read throughput
// through the lock.
func BenchmarkGuardedSearchParallel(b *testing.B) {
	g := NewGuarded(populated(10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = g.Search("graph traversal", 10, 0)
		}
	})
}
