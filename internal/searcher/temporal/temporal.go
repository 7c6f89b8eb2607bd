// Package temporal rescales ranked results by recency with exponential
// decay.
package temporal

import (
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

const (
	DefaultDecayDays  = 30.0
	DefaultFloor      = 0.1
	DefaultMaxAgeDays = 365.0
)

// Booster multiplies each score by exp(-age/DecayDays), never going below
// Floor. Items at least MaxAgeDays old get exactly Floor; MaxAgeDays <= 0
// disables the cutoff. A nil Now means time.Now.
type Booster struct {
	DecayDays  float64
	Floor      float64
	MaxAgeDays float64
	Now        func() time.Time
}

func DefaultBooster() Booster {
	return Booster{
		DecayDays:  DefaultDecayDays,
		Floor:      DefaultFloor,
		MaxAgeDays: DefaultMaxAgeDays,
	}
}

// Boost returns the multiplier for an item ageDays old. Negative ages,
// from timestamps in the future, count as zero.
func (b Booster) Boost(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	floor := b.Floor
	if floor < 0 {
		floor = 0
	}
	if b.MaxAgeDays > 0 && ageDays >= b.MaxAgeDays {
		return floor
	}
	decay := b.DecayDays
	if decay <= 0 {
		decay = DefaultDecayDays
	}
	return math.Max(math.Exp(-ageDays/decay), floor)
}

// AgeDays reports how many days old it is, and false when it carries no
// usable timestamp.
func (b Booster) AgeDays(it item.Identifiable) (float64, bool) {
	ts, ok := item.Timestamp(it)
	if !ok {
		return 0, false
	}
	return b.now().Sub(ts).Hours() / 24, true
}

func (b Booster) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Apply returns a rescored copy of results, re-sorted by the new score.
// Items without a timestamp keep their score exactly. The input is not
// modified and no item is added or dropped.
func Apply[T item.Identifiable](b Booster, results []item.Ranked[T]) []item.Ranked[T] {
	out := make([]item.Ranked[T], len(results))
	for i, r := range results {
		out[i] = r
		if age, ok := b.AgeDays(r.Item); ok {
			out[i].Score = r.Score * b.Boost(age)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
