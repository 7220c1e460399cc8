// Package config provides configuration management for softreason.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for softreason.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`

	// Store selects and configures the vector store backend.
	Store StoreConfig `mapstructure:"store"`

	// Embedding selects and configures the embedding provider.
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Recall controls query ranking.
	Recall RecallConfig `mapstructure:"recall"`

	// Writeback controls write admission and eviction.
	Writeback WritebackConfig `mapstructure:"writeback"`

	// Engine holds runtime settings of the reasoning engine.
	Engine EngineConfig `mapstructure:"engine"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP/gRPC server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"omitempty,host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// GRPC is the gRPC server configuration.
	GRPC GRPCConfig `mapstructure:"grpc"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// RateLimit throttles API clients.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// GRPCConfig holds gRPC-specific settings.
type GRPCConfig struct {
	// Enabled enables the gRPC server.
	Enabled bool `mapstructure:"enabled"`

	// Port is the gRPC server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// MaxConcurrentStreams caps streams per connection.
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`

	// MaxRecvMsgSize is the maximum message size the server can receive (bytes).
	MaxRecvMsgSize int `mapstructure:"max_recv_msg_size" validate:"min=0"`

	// MaxSendMsgSize is the maximum message size the server can send (bytes).
	MaxSendMsgSize int `mapstructure:"max_send_msg_size" validate:"min=0"`

	// EnableReflection enables gRPC server reflection for debugging.
	EnableReflection bool `mapstructure:"enable_reflection"`

	// EnableHealthCheck enables the gRPC health check service.
	EnableHealthCheck bool `mapstructure:"enable_health_check"`

	// HealthInterval is how often the engine is probed to update the
	// gRPC serving status.
	HealthInterval time.Duration `mapstructure:"health_interval"`

	// TLS is the TLS/mTLS configuration.
	TLS GRPCTLSConfig `mapstructure:"tls"`

	// Keepalive is the keepalive configuration.
	Keepalive GRPCKeepaliveConfig `mapstructure:"keepalive"`
}

// GRPCTLSConfig holds gRPC TLS/mTLS settings.
type GRPCTLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	ClientAuth bool   `mapstructure:"client_auth"`
}

// GRPCKeepaliveConfig holds gRPC keepalive settings.
type GRPCKeepaliveConfig struct {
	MaxIdle             time.Duration `mapstructure:"max_idle" validate:"min=0"`
	MaxAge              time.Duration `mapstructure:"max_age" validate:"min=0"`
	MaxAgeGrace         time.Duration `mapstructure:"max_age_grace" validate:"min=0"`
	Ping                time.Duration `mapstructure:"ping" validate:"min=0"`
	PingTimeout         time.Duration `mapstructure:"ping_timeout" validate:"min=0"`
	MinClientPing       time.Duration `mapstructure:"min_client_ping" validate:"min=0"`
	PermitWithoutStream bool          `mapstructure:"permit_without_stream"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout bounds each API request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter (otlp).
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlp"`

	// Endpoint is the OTLP collector endpoint (host:port or URL).
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds each export call.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler is always_on, always_off or ratio.
	Sampler string `mapstructure:"sampler" validate:"omitempty,oneof=always_on always_off ratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Type is the backend (memory, badger, chromem, pgvector).
	Type string `mapstructure:"type" validate:"oneof=memory badger chromem pgvector"`

	// Dimension is the expected vector length. 0 accepts the first vector's
	// length.
	Dimension int `mapstructure:"dimension" validate:"min=0"`

	Memory   MemoryStoreConfig   `mapstructure:"memory"`
	Badger   BadgerConfig        `mapstructure:"badger"`
	Chromem  ChromemConfig       `mapstructure:"chromem"`
	PGVector PGVectorStoreConfig `mapstructure:"pgvector"`
}

// MemoryStoreConfig holds in-process store settings.
type MemoryStoreConfig struct {
	// SnapshotPath is loaded at startup and written at shutdown when set.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// InMemory runs badger without touching disk.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size" validate:"min=0"`
}

// ChromemConfig holds chromem-go settings.
type ChromemConfig struct {
	Collection  string `mapstructure:"collection"`
	PersistPath string `mapstructure:"persist_path"`
	Compress    bool   `mapstructure:"compress"`
	Concurrency int    `mapstructure:"concurrency" validate:"min=0"`
}

// PGVectorStoreConfig holds Postgres/pgvector settings.
type PGVectorStoreConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Type is the provider (hash, openai).
	Type string `mapstructure:"type" validate:"oneof=hash openai"`

	// Dimension is the embedding length.
	Dimension int `mapstructure:"dimension" validate:"min=1"`

	// Bigrams adds word bigram features to the hash embedder.
	Bigrams bool `mapstructure:"bigrams"`

	OpenAI OpenAIConfig         `mapstructure:"openai"`
	Cache  EmbeddingCacheConfig `mapstructure:"cache"`
}

// OpenAIConfig holds settings for an OpenAI compatible embeddings API.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	// FastModel serves the prefilter stage.
	FastModel string `mapstructure:"fast_model"`

	// PreciseModel serves the rerank stage and writes. Empty reuses FastModel.
	PreciseModel string `mapstructure:"precise_model"`
}

// EmbeddingCacheConfig holds the embedding cache settings.
type EmbeddingCacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxEntries int64         `mapstructure:"max_entries" validate:"min=0"`
	TTL        time.Duration `mapstructure:"ttl"`

	// Redis enables a shared second level when Address is set.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Prefix   string `mapstructure:"prefix"`
}

// RecallConfig mirrors reasoning.RecallConfig.
type RecallConfig struct {
	FastTopK           int     `mapstructure:"fast_top_k" validate:"min=1"`
	FinalTopK          int     `mapstructure:"final_top_k" validate:"min=1"`
	RecencyAlpha       float64 `mapstructure:"recency_alpha" validate:"min=0,max=1"`
	MinScore           float64 `mapstructure:"min_score"`
	UseDualEmbedding   bool    `mapstructure:"use_dual_embedding"`
	RecencyHorizonSec  float64 `mapstructure:"recency_horizon_sec" validate:"gt=0"`
	EnableHybridRerank bool    `mapstructure:"enable_hybrid_rerank"`
}

// WritebackConfig mirrors reasoning.WritebackConfig.
type WritebackConfig struct {
	NoveltyGate       float64 `mapstructure:"novelty_gate" validate:"min=0,max=1"`
	DefaultTTLSeconds float64 `mapstructure:"default_ttl_seconds" validate:"gt=0"`
	LongTTLSeconds    float64 `mapstructure:"long_ttl_seconds" validate:"min=0"`
	MaxLenChars       int     `mapstructure:"max_len_chars" validate:"min=1"`
}

// EngineConfig holds runtime settings of the reasoning engine.
type EngineConfig struct {
	// AsyncWorkers is the worker count of the async query pool.
	AsyncWorkers int `mapstructure:"async_workers" validate:"min=1"`

	// AsyncQueueSize is the capacity of the async query queue.
	AsyncQueueSize int `mapstructure:"async_queue_size" validate:"min=0"`

	// PruneInterval is the TTL janitor period. 0 disables the janitor.
	PruneInterval time.Duration `mapstructure:"prune_interval"`

	// NoveltyPolicy is fail_open or fail_closed.
	NoveltyPolicy string `mapstructure:"novelty_policy" validate:"oneof=fail_open fail_closed"`
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Store: %s, Embedding: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Store.Type, c.Embedding.Type)
}
