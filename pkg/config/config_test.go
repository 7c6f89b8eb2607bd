package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60.0, cfg.Retrieval.RRFK)
	assert.Equal(t, 20, cfg.Rerank.TopK)
	assert.Equal(t, 30.0, cfg.Retrieval.TemporalDecayDays)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
retrieval:
  graphWeight: 0
  fusionMethod: weighted
  aggregation: sum
  providerTimeout: 750ms
rerank:
  applyReranking: true
  topK: 10
  scoreFloor: 0.2
index:
  stopWords: []
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Retrieval.GraphWeight)
	assert.Equal(t, "weighted", cfg.Retrieval.FusionMethod)
	assert.Equal(t, 750*time.Millisecond, cfg.Retrieval.ProviderTimeout)
	assert.Equal(t, 1.0, cfg.Retrieval.VectorWeight)
	assert.True(t, cfg.Rerank.ApplyReranking)
	require.NotNil(t, cfg.Rerank.ScoreFloor)
	assert.Equal(t, 0.2, *cfg.Rerank.ScoreFloor)
	assert.NotNil(t, cfg.Index.StopWords)
	assert.Empty(t, cfg.Index.StopWords)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HRE_SERVER_PORT", "7001")
	t.Setenv("HRE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HRE_RETRIEVAL_GRAPH_DEPTH", "3")
	t.Setenv("HRE_RERANK_APPLY", "true")
	t.Setenv("HRE_RETRIEVAL_BM25_WEIGHT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Retrieval.GraphDepth)
	assert.True(t, cfg.Rerank.ApplyReranking)
	assert.Equal(t, 1.0, cfg.Retrieval.BM25Weight)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"graph depth too deep", "retrieval:\n  graphDepth: 9\n"},
		{"unknown fusion", "retrieval:\n  fusionMethod: borda\n"},
		{"negative weight", "retrieval:\n  bm25Weight: -1\n"},
		{"default above max", "retrieval:\n  defaultLimit: 500\n"},
		{"remote without url", "rerank:\n  provider: remote\n"},
		{"redis without addr", "redis:\n  enabled: true\n  addr: \"\"\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	p := Default().Postgres
	assert.Equal(t, "host=localhost port=5432 user=retrieval password=localdev dbname=retrieval sslmode=disable", p.DSN())
}
