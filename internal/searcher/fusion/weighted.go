package fusion

import (
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

// Aggregation decides how weighted contributions from several lists are
// combined.
type Aggregation int

const (
	// AggregateMean divides the weighted sum by the number of lists the
	// item appeared in.
	AggregateMean Aggregation = iota
	// AggregateSum keeps the weighted sum, rewarding items found by many
	// sources.
	AggregateSum
)

func (a Aggregation) String() string {
	switch a {
	case AggregateMean:
		return "mean"
	case AggregateSum:
		return "sum"
	default:
		return "unknown"
	}
}

// ParseAggregation maps "mean" and "sum" to their Aggregation. Anything
// else reports false.
func ParseAggregation(s string) (Aggregation, bool) {
	switch s {
	case "", "mean":
		return AggregateMean, true
	case "sum":
		return AggregateSum, true
	default:
		return AggregateMean, false
	}
}

type WeightedOptions struct {
	// Normalize rescales each list's scores to [0,1] by min-max before
	// weighting. A list whose scores are all equal maps to 1.0.
	Normalize   bool
	Aggregation Aggregation
	Limit       int
}

// WeightedScore fuses lists by weight * score.
func WeightedScore[T item.Identifiable](lists []List[T], opts WeightedOptions) []item.Ranked[T] {
	acc := newAccumulator[T]()
	for li, list := range lists {
		w := list.weight()
		scores := listScores(list.Results, opts.Normalize)
		for i, r := range list.Results {
			e, fresh := acc.entry(li, r.Item)
			if !fresh {
				continue
			}
			e.Score += w * scores[i]
		}
	}
	if opts.Aggregation == AggregateMean {
		for _, e := range acc.entries {
			if e.Count > 0 {
				e.Score /= float64(e.Count)
			}
		}
	}
	return toRanked(topK(acc.entries, opts.Limit))
}

func listScores[T item.Identifiable](results []item.Ranked[T], normalize bool) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	if !normalize || len(scores) == 0 {
		return scores
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	span := hi - lo
	for i, s := range scores {
		if span == 0 {
			scores[i] = 1.0
			continue
		}
		scores[i] = (s - lo) / span
	}
	return scores
}
