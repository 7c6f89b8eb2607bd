package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type bare struct{ id string }

func (b bare) ID() string     { return b.id }
func (b bare) String() string { return "bare:" + b.id }

func TestTextPriority(t *testing.T) {
	tests := []struct {
		name string
		item Identifiable
		want string
	}{
		{"content wins", &Entity{UUID: "1", Name: "n", Summary: "s", Content: "c"}, "c"},
		{"description before summary", &Entity{UUID: "1", Summary: "s", Description: "d"}, "d"},
		{"summary before name", &Entity{UUID: "1", Name: "n", Summary: "s"}, "s"},
		{"name fallback", &Entity{UUID: "1", Name: "n"}, "n"},
		{"document text before title", &Document{DocID: "d", Title: "t", Text: "x"}, "x"},
		{"document title fallback", &Document{DocID: "d", Title: "t"}, "t"},
		{"string form fallback", bare{id: "7"}, "bare:7"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Text(tc.item))
		})
	}
}

func TestAllTextJoinsFieldsInOrder(t *testing.T) {
	e := &Entity{UUID: "1", Name: "Alice", Summary: "engineer", Content: "writes go"}
	assert.Equal(t, "writes go engineer Alice", AllText(e))
}

func TestExcerptIsRuneSafe(t *testing.T) {
	d := &Document{DocID: "d", Body: "héllo wörld"}
	assert.Equal(t, "héllo", Excerpt(d, 5))
	assert.Equal(t, "héllo wörld", Excerpt(d, 0))
}

func TestTimestampPrefersEffectiveTime(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ts, ok := Timestamp(&Entity{UUID: "1", CreatedAt: created, ValidAt: &valid})
	assert.True(t, ok)
	assert.Equal(t, valid, ts)

	ts, ok = Timestamp(&Entity{UUID: "1", CreatedAt: created})
	assert.True(t, ok)
	assert.Equal(t, created, ts)

	_, ok = Timestamp(&Entity{UUID: "1"})
	assert.False(t, ok)

	_, ok = Timestamp(bare{id: "x"})
	assert.False(t, ok)
}
