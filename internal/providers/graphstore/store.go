// Package graphstore serves vector-similarity and graph-traversal retrieval
// from Neo4j.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/hybrid"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
)

// Embedder turns query text into a vector in the same space as the
// node embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store implements hybrid.VectorSearcher and hybrid.GraphTraverser.
type Store struct {
	driver      neo4j.DriverWithContext
	database    string
	vectorIndex string
	embedder    Embedder
	logger      *slog.Logger
}

var (
	_ hybrid.VectorSearcher = (*Store)(nil)
	_ hybrid.GraphTraverser = (*Store)(nil)
)

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg config.Neo4jConfig, embedder Embedder) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity check failed: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	s := &Store{
		driver:      driver,
		database:    database,
		vectorIndex: cfg.VectorIndex,
		embedder:    embedder,
		logger:      logger.WithComponent("graphstore"),
	}
	s.logger.Info("connected to neo4j", "uri", cfg.URI, "database", database)
	return s, nil
}

// Search embeds the query text and probes the vector index.
func (s *Store) Search(ctx context.Context, q hybrid.VectorQuery) ([]item.Ranked[item.Item], error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("vector search: no embedder configured")
	}
	embedding, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	params := vectorParams(s.vectorIndex, embedding, q.Limit, q.TenantScope, q.ItemTypes)
	records, err := s.read(ctx, vectorCypher, params)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]item.Ranked[item.Item], 0, len(records))
	for _, rec := range records {
		e, ok := s.nodeFrom(rec, "node")
		if !ok {
			continue
		}
		score, _ := rec.Get("score")
		out = append(out, item.Ranked[item.Item]{Item: e, Score: toFloat(score)})
	}
	return out, nil
}

// Traverse returns nodes within q.Depth hops of any seed.
func (s *Store) Traverse(ctx context.Context, q hybrid.TraversalQuery) ([]hybrid.Neighbor, error) {
	if len(q.SeedIDs) == 0 || q.Limit <= 0 {
		return nil, nil
	}
	cypher, err := traversalCypher(q.Depth)
	if err != nil {
		return nil, err
	}
	records, err := s.read(ctx, cypher, map[string]any{
		"seeds": q.SeedIDs,
		"group": q.TenantScope,
		"limit": int64(q.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graph traversal: %w", err)
	}

	out := make([]hybrid.Neighbor, 0, len(records))
	for _, rec := range records {
		e, ok := s.nodeFrom(rec, "node")
		if !ok {
			continue
		}
		distance, _ := rec.Get("distance")
		out = append(out, hybrid.Neighbor{Item: e, Distance: toInt(distance)})
	}
	return out, nil
}

// Ping verifies the driver can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*neo4j.Record)
	return records, nil
}

func (s *Store) nodeFrom(rec *neo4j.Record, key string) (*item.Entity, bool) {
	value, found := rec.Get(key)
	if !found {
		return nil, false
	}
	node, ok := value.(dbtype.Node)
	if !ok {
		s.logger.Warn("unexpected value type for node", "type", fmt.Sprintf("%T", value))
		return nil, false
	}
	e, err := entityFromNode(node)
	if err != nil {
		s.logger.Warn("skipping node", "element_id", node.ElementId, "error", err)
		return nil, false
	}
	return e, true
}
