package graphstore

import (
	"fmt"
	"strings"
)

const (
	minDepth = 1
	maxDepth = 5

	// vectorOversample widens the index probe when post-filters may discard
	// candidates.
	vectorOversample = 4
)

const vectorCypher = `
CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
WHERE ($group = '' OR node.group_id = $group)
  AND (size($labels) = 0 OR any(l IN labels(node) WHERE l IN $labels))
RETURN node, score
ORDER BY score DESC
LIMIT $limit`

// traversalCypher returns the neighbourhood query for depth. Variable-length
// bounds cannot be parameters, so depth is validated before it is
// formatted in.
func traversalCypher(depth int) (string, error) {
	if depth < minDepth || depth > maxDepth {
		return "", fmt.Errorf("traversal depth %d outside [%d, %d]", depth, minDepth, maxDepth)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH path = (seed)-[*1..%d]-(node)\n", depth)
	b.WriteString("WHERE seed.uuid IN $seeds AND NOT node.uuid IN $seeds\n")
	b.WriteString("  AND ($group = '' OR node.group_id = $group)\n")
	b.WriteString("WITH node, min(length(path)) AS distance\n")
	b.WriteString("RETURN node, distance\n")
	b.WriteString("ORDER BY distance ASC, node.uuid ASC\n")
	b.WriteString("LIMIT $limit")
	return b.String(), nil
}

func vectorParams(index string, embedding []float32, limit int, group string, labels []string) map[string]any {
	k := limit
	if group != "" || len(labels) > 0 {
		k = limit * vectorOversample
	}
	if labels == nil {
		labels = []string{}
	}
	return map[string]any{
		"index":     index,
		"k":         int64(k),
		"embedding": toFloat64s(embedding),
		"group":     group,
		"labels":    labels,
		"limit":     int64(limit),
	}
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
