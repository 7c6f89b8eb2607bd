package item

import (
	"fmt"
	"time"
)

// Entity is a knowledge-graph node as returned by the graph store.
type Entity struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Labels      []string       `json:"labels,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	GroupID     string         `json:"group_id,omitempty"`
	ValidAt     *time.Time     `json:"valid_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// ID returns the node uuid.
func (e *Entity) ID() string { return e.UUID }

// Group returns the tenant group the node was written under.
func (e *Entity) Group() string { return e.GroupID }

// TextField exposes content, description, summary and name.
func (e *Entity) TextField(f Field) (string, bool) {
	var v string
	switch f {
	case FieldContent:
		v = e.Content
	case FieldDescription:
		v = e.Description
	case FieldSummary:
		v = e.Summary
	case FieldName:
		v = e.Name
	default:
		return "", false
	}
	return v, v != ""
}

// EffectiveTime is valid_at, when the fact has one.
func (e *Entity) EffectiveTime() (time.Time, bool) {
	if e.ValidAt == nil {
		return time.Time{}, false
	}
	return *e.ValidAt, true
}

// CreationTime is created_at.
func (e *Entity) CreationTime() (time.Time, bool) {
	return e.CreatedAt, !e.CreatedAt.IsZero()
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(%s %q)", e.UUID, e.Name)
}

// Document is a flat text record (an episode, a chunk, a page).
type Document struct {
	DocID     string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	Text      string    `json:"text,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ID returns the document id.
func (d *Document) ID() string { return d.DocID }

// TextField exposes body as content, plus text and title.
func (d *Document) TextField(f Field) (string, bool) {
	var v string
	switch f {
	case FieldContent:
		v = d.Body
	case FieldText:
		v = d.Text
	case FieldTitle:
		v = d.Title
	default:
		return "", false
	}
	return v, v != ""
}

// EffectiveTime is never set; documents age from creation.
func (d *Document) EffectiveTime() (time.Time, bool) { return time.Time{}, false }

// CreationTime is created_at.
func (d *Document) CreationTime() (time.Time, bool) {
	return d.CreatedAt, !d.CreatedAt.IsZero()
}

func (d *Document) String() string {
	return fmt.Sprintf("Document(%s)", d.DocID)
}
