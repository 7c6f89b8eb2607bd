package graphstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
)

var coreProps = map[string]bool{
	"uuid":        true,
	"name":        true,
	"summary":     true,
	"description": true,
	"content":     true,
	"group_id":    true,
	"valid_at":    true,
	"created_at":  true,
}

// entityFromNode maps a graph node onto an item.Entity. Nodes without a
// uuid property fall back to the element id. Embedding properties are
// dropped; every other unknown property lands in Attributes.
func entityFromNode(node dbtype.Node) (*item.Entity, error) {
	props := node.Props
	e := &item.Entity{Labels: node.Labels}

	if id, ok := props["uuid"].(string); ok && id != "" {
		e.UUID = id
	} else {
		e.UUID = node.ElementId
	}
	if e.UUID == "" {
		return nil, fmt.Errorf("node has neither uuid nor element id")
	}
	e.Name, _ = props["name"].(string)
	e.Summary, _ = props["summary"].(string)
	e.Description, _ = props["description"].(string)
	e.Content, _ = props["content"].(string)
	e.GroupID, _ = props["group_id"].(string)

	if t, ok := toTime(props["valid_at"]); ok {
		e.ValidAt = &t
	}
	if t, ok := toTime(props["created_at"]); ok {
		e.CreatedAt = t
	}

	for k, v := range props {
		if coreProps[k] || isEmbeddingProp(k) {
			continue
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]any)
		}
		e.Attributes[k] = v
	}
	return e, nil
}

func isEmbeddingProp(key string) bool {
	return key == "embedding" || strings.HasSuffix(key, "_embedding")
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case dbtype.LocalDateTime:
		return t.Time().UTC(), true
	case dbtype.Date:
		return t.Time().UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
