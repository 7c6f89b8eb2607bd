package index

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

// Guarded serialises writers against readers of an Index. Searches run
// under a shared lock so they may proceed in parallel.
type Guarded struct {
	mu  sync.RWMutex
	idx *Index
}

// NewGuarded takes ownership of idx; callers must not use it directly
// afterwards.
func NewGuarded(idx *Index) *Guarded {
	return &Guarded{idx: idx}
}

// Add indexes it under the write lock.
func (g *Guarded) Add(it item.Item) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx.Add(it)
}

// AddAll indexes items under a single write lock and returns the number
// added. It stops at the first error.
func (g *Guarded) AddAll(items []item.Item) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, it := range items {
		if _, err := g.idx.Add(it); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// Remove deletes id under the write lock.
func (g *Guarded) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx.Remove(id)
}

// Search runs Index.Search under the read lock.
func (g *Guarded) Search(query string, limit int, minScore float64) []item.Ranked[item.Item] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idx.Search(query, limit, minScore)
}

func (g *Guarded) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx.Clear()
}

func (g *Guarded) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idx.Contains(id)
}

func (g *Guarded) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idx.Stats()
}
