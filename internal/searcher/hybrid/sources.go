package hybrid

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

// Source names used for fusion lists, diagnostics, breakers and metrics.
const (
	SourceVector = "vector"
	SourceGraph  = "graph"
	SourceBM25   = "bm25"
)

// VectorQuery asks for the Limit items most similar to Text.
type VectorQuery struct {
	Text        string
	ItemTypes   []string
	Limit       int
	TenantScope string
}

// TraversalQuery asks for items within Depth hops of any seed, excluding
// the seeds themselves.
type TraversalQuery struct {
	SeedIDs     []string
	Depth       int
	Limit       int
	TenantScope string
}

// Neighbor is an item reached by traversal and its hop distance from the
// nearest seed.
type Neighbor struct {
	Item     item.Item
	Distance int
}

// VectorSearcher is embedding-similarity retrieval.
type VectorSearcher interface {
	Search(ctx context.Context, q VectorQuery) ([]item.Ranked[item.Item], error)
}

// GraphTraverser is bounded-depth relationship retrieval.
type GraphTraverser interface {
	Traverse(ctx context.Context, q TraversalQuery) ([]Neighbor, error)
}

// ExactMatcher is keyword retrieval, satisfied by the exact-match index.
type ExactMatcher interface {
	Search(query string, limit int, minScore float64) []item.Ranked[item.Item]
}

// VectorSearcherFunc adapts a function to VectorSearcher.
type VectorSearcherFunc func(ctx context.Context, q VectorQuery) ([]item.Ranked[item.Item], error)

func (f VectorSearcherFunc) Search(ctx context.Context, q VectorQuery) ([]item.Ranked[item.Item], error) {
	return f(ctx, q)
}

// GraphTraverserFunc adapts a function to GraphTraverser.
type GraphTraverserFunc func(ctx context.Context, q TraversalQuery) ([]Neighbor, error)

func (f GraphTraverserFunc) Traverse(ctx context.Context, q TraversalQuery) ([]Neighbor, error) {
	return f(ctx, q)
}

// DistanceScore turns a hop distance into a score in (0, 1]: 1/(d+1).
func DistanceScore(distance int) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / float64(distance+1)
}

// neighborsToRanked orders neighbors nearest first, keeping provider order
// within a distance.
func neighborsToRanked(neighbors []Neighbor) []item.Ranked[item.Item] {
	out := make([]item.Ranked[item.Item], 0, len(neighbors))
	for _, n := range neighbors {
		if n.Item == nil {
			continue
		}
		out = append(out, item.Ranked[item.Item]{Item: n.Item, Score: DistanceScore(n.Distance)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
