// Package item defines the capability contract the retrieval engine reads
// items through. The engine never owns an item's lifecycle; it only needs a
// stable identifier, text fields in a fixed priority order and, optionally,
// timestamps.
package item

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field names a text-bearing attribute of an item.
type Field string

const (
	FieldContent     Field = "content"
	FieldDescription Field = "description"
	FieldText        Field = "text"
	FieldSummary     Field = "summary"
	FieldName        Field = "name"
	FieldTitle       Field = "title"
)

// TextPriority is the order text is extracted in: body-like fields first,
// then labels.
var TextPriority = []Field{
	FieldContent,
	FieldDescription,
	FieldText,
	FieldSummary,
	FieldName,
	FieldTitle,
}

// Identifiable is anything with a stable identifier.
type Identifiable interface {
	ID() string
}

// TextExtractable exposes named text fields. ok is false when the concrete
// type has no such field or it is empty.
type TextExtractable interface {
	TextField(f Field) (value string, ok bool)
}

// Timestamped exposes the timestamps recency scoring uses. Either may be
// absent.
type Timestamped interface {
	EffectiveTime() (time.Time, bool)
	CreationTime() (time.Time, bool)
}

// Grouped is implemented by items that belong to a tenant group. An empty
// group means the item is shared.
type Grouped interface {
	Group() string
}

// Item is the full contract retrieval stages operate on.
type Item interface {
	Identifiable
	TextExtractable
}

// Ranked pairs an item with a score. Scores from different sources are not
// comparable until they have been fused.
type Ranked[T Identifiable] struct {
	Item  T       `json:"item"`
	Score float64 `json:"score"`
}

// IDs returns the identifiers of results in order.
func IDs[T Identifiable](results []Ranked[T]) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Item.ID()
	}
	return ids
}

// Text returns the first non-empty field in TextPriority order, falling back
// to the item's string form.
func Text(it Identifiable) string {
	if te, ok := it.(TextExtractable); ok {
		for _, f := range TextPriority {
			if v, ok := te.TextField(f); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return fmt.Sprint(it)
}

// AllText joins every non-empty text field in TextPriority order. It is what
// the exact-match index tokenizes.
func AllText(it Identifiable) string {
	te, ok := it.(TextExtractable)
	if !ok {
		return fmt.Sprint(it)
	}
	parts := make([]string, 0, len(TextPriority))
	for _, f := range TextPriority {
		if v, ok := te.TextField(f); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprint(it)
	}
	return strings.Join(parts, " ")
}

// Excerpt returns Text(it) truncated to at most maxChars runes.
func Excerpt(it Identifiable, maxChars int) string {
	text := Text(it)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}

// Timestamp returns the effective time when present, else the creation
// time.
func Timestamp(it Identifiable) (time.Time, bool) {
	ts, ok := it.(Timestamped)
	if !ok {
		return time.Time{}, false
	}
	if t, ok := ts.EffectiveTime(); ok && !t.IsZero() {
		return t, true
	}
	if t, ok := ts.CreationTime(); ok && !t.IsZero() {
		return t, true
	}
	return time.Time{}, false
}
