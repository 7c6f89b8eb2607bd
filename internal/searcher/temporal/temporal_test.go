package temporal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func booster() Booster {
	b := DefaultBooster()
	b.Now = func() time.Time { return now }
	return b
}

func daysAgo(d float64) time.Time {
	return now.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func TestBoostValues(t *testing.T) {
	b := booster()

	assert.Equal(t, 1.0, b.Boost(0))
	assert.InDelta(t, 1/math.E, b.Boost(b.DecayDays), 0.01/math.E)
	assert.Equal(t, b.Floor, b.Boost(b.MaxAgeDays))
	assert.Equal(t, b.Floor, b.Boost(b.MaxAgeDays+100))
	// decayed below the floor before the cutoff
	assert.Equal(t, b.Floor, b.Boost(200))
	assert.Equal(t, 1.0, b.Boost(-5))
}

func TestBoostWithoutCutoff(t *testing.T) {
	b := Booster{DecayDays: 10, Floor: 0.2}
	assert.InDelta(t, math.Exp(-1), b.Boost(10), 1e-12)
	assert.Equal(t, 0.2, b.Boost(10000))
}

func TestApplyRescoresAndResorts(t *testing.T) {
	oldValid := daysAgo(90)
	results := []item.Ranked[item.Item]{
		{Item: &item.Entity{UUID: "old", ValidAt: &oldValid, CreatedAt: daysAgo(1)}, Score: 1.0},
		{Item: &item.Entity{UUID: "fresh", CreatedAt: daysAgo(0)}, Score: 0.8},
		{Item: &item.Entity{UUID: "timeless"}, Score: 0.5},
	}

	got := Apply(booster(), results)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"fresh", "timeless", "old"}, item.IDs(got))
	assert.InDelta(t, 0.8, got[0].Score, 1e-12)
	assert.Equal(t, 0.5, got[1].Score)
	assert.InDelta(t, math.Max(math.Exp(-3), DefaultFloor), got[2].Score, 1e-9)

	// input untouched
	assert.Equal(t, "old", results[0].Item.ID())
	assert.Equal(t, 1.0, results[0].Score)
}

func TestApplyFutureTimestampCountsAsNow(t *testing.T) {
	future := now.Add(48 * time.Hour)
	got := Apply(booster(), []item.Ranked[item.Item]{
		{Item: &item.Document{DocID: "d", CreatedAt: future}, Score: 0.7},
	})
	assert.Equal(t, 0.7, got[0].Score)
}

func TestApplyStableForEqualScores(t *testing.T) {
	results := []item.Ranked[item.Item]{
		{Item: &item.Document{DocID: "a"}, Score: 0.5},
		{Item: &item.Document{DocID: "b"}, Score: 0.5},
		{Item: &item.Document{DocID: "c"}, Score: 0.5},
	}
	assert.Equal(t, []string{"a", "b", "c"}, item.IDs(Apply(booster(), results)))
}

func TestApplyEmpty(t *testing.T) {
	assert.Empty(t, Apply[item.Item](booster(), nil))
}
