package item

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// Kinds of concrete item a Record can carry.
const (
	KindEntity   = "entity"
	KindDocument = "document"
)

// Record is the serialised form of an item shared by the item stream, the
// items table and cached responses.
type Record struct {
	Kind     string    `json:"kind"`
	Entity   *Entity   `json:"entity,omitempty"`
	Document *Document `json:"document,omitempty"`
}

// NewRecord wraps a concrete item. Only *Entity and *Document are
// serialisable.
func NewRecord(it Item) (Record, error) {
	switch v := it.(type) {
	case *Entity:
		return Record{Kind: KindEntity, Entity: v}, nil
	case *Document:
		return Record{Kind: KindDocument, Document: v}, nil
	default:
		return Record{}, fmt.Errorf("unsupported item type %T", it)
	}
}

// Item returns the wrapped item, checking that it carries an identifier.
func (r Record) Item() (Item, error) {
	var it Item
	switch r.Kind {
	case KindEntity:
		if r.Entity == nil {
			return nil, fmt.Errorf("%w: entity record without entity", apperrors.ErrMissingIdentifier)
		}
		it = r.Entity
	case KindDocument:
		if r.Document == nil {
			return nil, fmt.Errorf("%w: document record without document", apperrors.ErrMissingIdentifier)
		}
		it = r.Document
	default:
		return nil, fmt.Errorf("unknown item kind %q", r.Kind)
	}
	if it.ID() == "" {
		return nil, apperrors.ErrMissingIdentifier
	}
	return it, nil
}
