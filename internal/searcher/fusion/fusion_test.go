package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

type doc struct {
	id  string
	tag string
}

func (d doc) ID() string { return d.id }

func ranked(pairs ...any) []item.Ranked[doc] {
	out := make([]item.Ranked[doc], 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, item.Ranked[doc]{Item: doc{id: pairs[i].(string)}, Score: pairs[i+1].(float64)})
	}
	return out
}

func ids(results []item.Ranked[doc]) []string { return item.IDs(results) }

func TestRRFScores(t *testing.T) {
	lists := []List[doc]{
		{Name: "vector", Results: ranked("a", 0.9, "b", 0.8)},
		{Name: "bm25", Results: ranked("b", 12.0, "c", 3.0)},
	}
	got := RRF(lists, Options{})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
	assert.InDelta(t, 1.0/62+1.0/61, got[0].Score, 1e-12)
	assert.InDelta(t, 1.0/61, got[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62, got[2].Score, 1e-12)
}

func TestRRFAgreementBoosts(t *testing.T) {
	lists := []List[doc]{
		{Name: "one", Results: ranked("solo", 1.0, "shared", 0.5)},
		{Name: "two", Results: ranked("other", 1.0, "shared", 0.5)},
		{Name: "three", Results: ranked("third", 1.0, "shared", 0.5)},
	}
	got := RRF(lists, Options{})
	assert.Equal(t, "shared", got[0].Item.ID())
}

func TestRRFWeightAndK(t *testing.T) {
	lists := []List[doc]{
		{Name: "light", Weight: 1, Results: ranked("a", 1.0)},
		{Name: "heavy", Weight: 3, Results: ranked("b", 1.0)},
	}
	got := RRF(lists, Options{K: 10})
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.InDelta(t, 3.0/11, got[0].Score, 1e-12)

	// non-positive weights count as 1.0
	zero := RRF([]List[doc]{{Weight: -2, Results: ranked("x", 1.0)}}, Options{})
	assert.InDelta(t, 1.0/61, zero[0].Score, 1e-12)
}

func TestRRFTiesKeepFirstSeenOrder(t *testing.T) {
	lists := []List[doc]{
		{Name: "l1", Results: ranked("x", 1.0)},
		{Name: "l2", Results: ranked("y", 1.0)},
		{Name: "l3", Results: ranked("z", 1.0)},
	}
	assert.Equal(t, []string{"x", "y", "z"}, ids(RRF(lists, Options{})))
	assert.Equal(t, []string{"x", "y"}, ids(RRF(lists, Options{Limit: 2})))
}

func TestRRFKeepsFirstSeenItem(t *testing.T) {
	lists := []List[doc]{
		{Name: "l1", Results: []item.Ranked[doc]{{Item: doc{id: "a", tag: "first"}, Score: 1}}},
		{Name: "l2", Results: []item.Ranked[doc]{{Item: doc{id: "a", tag: "second"}, Score: 1}}},
	}
	got := RRF(lists, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Item.tag)
}

func TestRRFDuplicateWithinListCountsOnce(t *testing.T) {
	got := RRF([]List[doc]{{Name: "l", Results: ranked("a", 1.0, "a", 0.5)}}, Options{})
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0/61, got[0].Score, 1e-12)
}

func TestRRFLimitWithHeap(t *testing.T) {
	list := List[doc]{Name: "l", Results: ranked("a", 5.0, "b", 4.0, "c", 3.0, "d", 2.0, "e", 1.0)}
	other := List[doc]{Name: "m", Results: ranked("d", 1.0)}
	got := RRF([]List[doc]{list, other}, Options{Limit: 3})
	assert.Equal(t, []string{"d", "a", "b"}, ids(got))
}

func TestRRFEmpty(t *testing.T) {
	assert.Empty(t, RRF[doc](nil, Options{}))
	assert.Empty(t, RRF([]List[doc]{{Name: "empty"}}, Options{Limit: 5}))
}

func TestRRFWithMetadata(t *testing.T) {
	lists := []List[doc]{
		{Name: "vector", Results: ranked("a", 0.9, "b", 0.8)},
		{Name: "graph", Results: ranked("c", 1.0, "b", 0.5)},
	}
	entries := RRFWithMetadata(lists, Options{})
	plain := RRF(lists, Options{})
	require.Len(t, entries, len(plain))
	for i := range entries {
		assert.Equal(t, plain[i].Item.ID(), entries[i].Item.ID())
		assert.Equal(t, plain[i].Score, entries[i].Score)
	}
	assert.Equal(t, "b", entries[0].Item.ID())
	assert.Equal(t, 2, entries[0].Count)
	assert.Equal(t, []Appearance{{List: "vector", Rank: 2}, {List: "graph", Rank: 2}}, entries[0].Appearances)
}

func TestWeightedScoreEndToEnd(t *testing.T) {
	lists := []List[doc]{
		{Name: "l1", Results: ranked("a", 0.9, "b", 0.8)},
		{Name: "l2", Results: ranked("b", 0.95, "c", 0.85)},
	}
	got := RRF(lists, Options{})
	assert.Equal(t, "b", got[0].Item.ID())

	weighted := WeightedScore(lists, WeightedOptions{})
	require.Len(t, weighted, 3)
	assert.Equal(t, "a", weighted[0].Item.ID())
	assert.InDelta(t, 0.9, weighted[0].Score, 1e-12)
	assert.InDelta(t, 0.875, weighted[1].Score, 1e-12)

	summed := WeightedScore(lists, WeightedOptions{Aggregation: AggregateSum})
	assert.Equal(t, "b", summed[0].Item.ID())
	assert.InDelta(t, 1.75, summed[0].Score, 1e-12)
}

func TestWeightedScoreMeanByCount(t *testing.T) {
	lists := []List[doc]{
		{Name: "heavy", Weight: 4, Results: ranked("x", 1.0)},
		{Name: "l1", Weight: 1, Results: ranked("y", 1.0)},
		{Name: "l2", Weight: 1, Results: ranked("y", 1.0)},
	}
	got := WeightedScore(lists, WeightedOptions{})
	assert.Equal(t, []string{"x", "y"}, ids(got))
	assert.InDelta(t, 4.0, got[0].Score, 1e-12)
	assert.InDelta(t, 1.0, got[1].Score, 1e-12)
}

func TestWeightedScoreNormalize(t *testing.T) {
	lists := []List[doc]{
		{Name: "bm25", Results: ranked("a", 10.0, "b", 5.0, "c", 0.0)},
		{Name: "flat", Results: ranked("d", 0.3, "e", 0.3)},
	}
	got := WeightedScore(lists, WeightedOptions{Normalize: true})
	scores := make(map[string]float64, len(got))
	for _, r := range got {
		scores[r.Item.ID()] = r.Score
	}
	assert.InDelta(t, 1.0, scores["a"], 1e-12)
	assert.InDelta(t, 0.5, scores["b"], 1e-12)
	assert.InDelta(t, 0.0, scores["c"], 1e-12)
	assert.InDelta(t, 1.0, scores["d"], 1e-12)
	assert.InDelta(t, 1.0, scores["e"], 1e-12)
	assert.Equal(t, []string{"a", "d", "e", "b", "c"}, ids(got))
}

func TestParseAggregation(t *testing.T) {
	a, ok := ParseAggregation("sum")
	assert.True(t, ok)
	assert.Equal(t, AggregateSum, a)
	a, ok = ParseAggregation("")
	assert.True(t, ok)
	assert.Equal(t, AggregateMean, a)
	_, ok = ParseAggregation("max")
	assert.False(t, ok)
}
