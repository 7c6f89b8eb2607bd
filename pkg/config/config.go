// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Neo4j, Embedding, Index,
// Retrieval, Rerank, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit   int      `yaml:"rateLimit" validate:"min=0"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters. The items table
// seeds the exact-match index at startup.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	ItemsTable      string        `yaml:"itemsTable"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers" validate:"required_if=Enabled true"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ItemEvents      string `yaml:"itemEvents"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Neo4jConfig holds the graph store connection. VectorIndex names the
// vector index queried for embedding similarity.
type Neo4jConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URI         string `yaml:"uri" validate:"required_if=Enabled true"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	VectorIndex string `yaml:"vectorIndex"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint used
// to embed queries.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	APIKey     string        `yaml:"apiKey"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions" validate:"min=0"`
	CacheSize  int           `yaml:"cacheSize" validate:"min=0"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries" validate:"min=0,max=10"`
}

// IndexConfig tunes the exact-match index.
type IndexConfig struct {
	K1             float64  `yaml:"k1" validate:"gte=0"`
	B              float64  `yaml:"b" validate:"gte=0,lte=1"`
	MinTokenLength int      `yaml:"minTokenLength" validate:"min=1"`
	StopWords      []string `yaml:"stopWords"`
	Stem           bool     `yaml:"stem"`
}

// RetrievalConfig tunes fusion, traversal and recency boosting.
type RetrievalConfig struct {
	VectorWeight       float64       `yaml:"vectorWeight" validate:"gte=0"`
	GraphWeight        float64       `yaml:"graphWeight" validate:"gte=0"`
	BM25Weight         float64       `yaml:"bm25Weight" validate:"gte=0"`
	RRFK               float64       `yaml:"rrfK" validate:"gt=0"`
	FusionMethod       string        `yaml:"fusionMethod" validate:"oneof=rrf weighted"`
	Normalize          bool          `yaml:"normalize"`
	Aggregation        string        `yaml:"aggregation" validate:"oneof=mean sum"`
	GraphDepth         int           `yaml:"graphDepth" validate:"min=1,max=5"`
	UseExactMatch      bool          `yaml:"useExactMatch"`
	BM25MinScore       float64       `yaml:"bm25MinScore" validate:"gte=0"`
	ApplyTemporal      bool          `yaml:"applyTemporal"`
	TemporalDecayDays  float64       `yaml:"temporalDecayDays" validate:"gt=0"`
	TemporalFloor      float64       `yaml:"temporalFloor" validate:"gte=0,lte=1"`
	TemporalMaxAgeDays float64       `yaml:"temporalMaxAgeDays" validate:"gte=0"`
	ProviderTimeout    time.Duration `yaml:"providerTimeout"`
	DefaultLimit       int           `yaml:"defaultLimit" validate:"min=1,ltefield=MaxLimit"`
	MaxLimit           int           `yaml:"maxLimit" validate:"min=1"`
	IncludeProvenance  bool          `yaml:"includeProvenance"`
}

// RerankConfig configures the pairwise reranking stage.
type RerankConfig struct {
	ApplyReranking  bool          `yaml:"applyReranking"`
	Provider        string        `yaml:"provider" validate:"omitempty,oneof=lexical embedeverything remote"`
	Model           string        `yaml:"model"`
	UseGPU          bool          `yaml:"useGPU"`
	FallbackOnError bool          `yaml:"fallbackOnError"`
	TopK            int           `yaml:"topK" validate:"min=1"`
	BatchSize       int           `yaml:"batchSize" validate:"min=1"`
	MaxExcerptChars int           `yaml:"maxExcerptChars" validate:"min=1"`
	ScoreFloor      *float64      `yaml:"scoreFloor"`
	Workers         int           `yaml:"workers" validate:"min=1"`
	QueueSize       int           `yaml:"queueSize" validate:"min=0"`
	RemoteURL       string        `yaml:"remoteUrl" validate:"required_if=Provider remote"`
	RemoteAPIKey    string        `yaml:"remoteApiKey"`
	RemoteTimeout   time.Duration `yaml:"remoteTimeout"`
}

// BreakerConfig tunes the per-source circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold" validate:"min=1"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// AnalyticsConfig controls retrieval event publishing.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"bufferSize" validate:"min=1"`
	FlushSize     int           `yaml:"flushSize" validate:"min=1"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"min=1,max=65535"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags. A failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	return nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "retrieval",
			User:            "retrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			ItemsTable:      "items",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "hybrid-retrieval",
			Topics: KafkaTopics{
				ItemEvents:      "item-events",
				AnalyticsEvents: "retrieval-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:         "neo4j://localhost:7687",
			Username:    "neo4j",
			Database:    "neo4j",
			VectorIndex: "entity_embeddings",
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			CacheSize:  1024,
			Timeout:    5 * time.Second,
			MaxRetries: 2,
		},
		Index: IndexConfig{
			K1:             1.2,
			B:              0.75,
			MinTokenLength: 2,
		},
		Retrieval: RetrievalConfig{
			VectorWeight:       1.0,
			GraphWeight:        0.5,
			BM25Weight:         1.0,
			RRFK:               60,
			FusionMethod:       "rrf",
			Aggregation:        "mean",
			GraphDepth:         2,
			UseExactMatch:      true,
			TemporalDecayDays:  30,
			TemporalFloor:      0.1,
			TemporalMaxAgeDays: 365,
			ProviderTimeout:    2 * time.Second,
			DefaultLimit:       10,
			MaxLimit:           100,
		},
		Rerank: RerankConfig{
			Provider:        "lexical",
			FallbackOnError: true,
			TopK:            20,
			BatchSize:       32,
			MaxExcerptChars: 512,
			Workers:         2,
			QueueSize:       64,
			RemoteTimeout:   5 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			BufferSize:    1024,
			FlushSize:     100,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads HRE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("HRE_SERVER_PORT", &cfg.Server.Port)
	setInt("HRE_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)

	setBool("HRE_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("HRE_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("HRE_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("HRE_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("HRE_POSTGRES_USER", &cfg.Postgres.User)
	setString("HRE_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("HRE_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setBool("HRE_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("HRE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	setBool("HRE_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("HRE_REDIS_ADDR", &cfg.Redis.Addr)
	setString("HRE_REDIS_PASSWORD", &cfg.Redis.Password)

	setBool("HRE_NEO4J_ENABLED", &cfg.Neo4j.Enabled)
	setString("HRE_NEO4J_URI", &cfg.Neo4j.URI)
	setString("HRE_NEO4J_USERNAME", &cfg.Neo4j.Username)
	setString("HRE_NEO4J_PASSWORD", &cfg.Neo4j.Password)
	setString("HRE_NEO4J_DATABASE", &cfg.Neo4j.Database)

	setString("HRE_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("HRE_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	setString("HRE_EMBEDDING_MODEL", &cfg.Embedding.Model)

	setFloat("HRE_RETRIEVAL_VECTOR_WEIGHT", &cfg.Retrieval.VectorWeight)
	setFloat("HRE_RETRIEVAL_GRAPH_WEIGHT", &cfg.Retrieval.GraphWeight)
	setFloat("HRE_RETRIEVAL_BM25_WEIGHT", &cfg.Retrieval.BM25Weight)
	setFloat("HRE_RETRIEVAL_RRF_K", &cfg.Retrieval.RRFK)
	setString("HRE_RETRIEVAL_FUSION_METHOD", &cfg.Retrieval.FusionMethod)
	setInt("HRE_RETRIEVAL_GRAPH_DEPTH", &cfg.Retrieval.GraphDepth)
	setBool("HRE_RETRIEVAL_APPLY_TEMPORAL", &cfg.Retrieval.ApplyTemporal)
	setFloat("HRE_RETRIEVAL_TEMPORAL_DECAY_DAYS", &cfg.Retrieval.TemporalDecayDays)

	setBool("HRE_RERANK_APPLY", &cfg.Rerank.ApplyReranking)
	setString("HRE_RERANK_PROVIDER", &cfg.Rerank.Provider)
	setString("HRE_RERANK_MODEL", &cfg.Rerank.Model)
	setBool("HRE_RERANK_USE_GPU", &cfg.Rerank.UseGPU)
	setInt("HRE_RERANK_TOP_K", &cfg.Rerank.TopK)
	setString("HRE_RERANK_REMOTE_URL", &cfg.Rerank.RemoteURL)
	setString("HRE_RERANK_REMOTE_API_KEY", &cfg.Rerank.RemoteAPIKey)

	setBool("HRE_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)

	setString("HRE_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("HRE_LOGGING_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
