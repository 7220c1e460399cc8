package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "softreason",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			GRPC: GRPCConfig{
				Enabled:              false,
				Port:                 9090,
				MaxConcurrentStreams: 1000,
				MaxRecvMsgSize:       4 << 20,
				MaxSendMsgSize:       4 << 20,
				EnableHealthCheck:    true,
				HealthInterval:       10 * time.Second,
				Keepalive: GRPCKeepaliveConfig{
					MaxIdle:       5 * time.Minute,
					MaxAge:        time.Hour,
					MaxAgeGrace:   time.Minute,
					Ping:          time.Minute,
					PingTimeout:   20 * time.Second,
					MinClientPing: 30 * time.Second,
				},
			},
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				RequestTimeout:  30 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			},
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
		Store: StoreConfig{
			Type:      "memory",
			Dimension: 0,
			Badger: BadgerConfig{
				Path:             "./data/badger",
				SyncWrites:       true,
				ValueLogFileSize: 1 << 28, // 256MB
			},
			Chromem: ChromemConfig{
				Collection:  "softreason",
				Concurrency: 4,
			},
			PGVector: PGVectorStoreConfig{
				DSN:         "postgres://localhost:5432/softreason?sslmode=disable",
				Table:       "sr_memories",
				AutoMigrate: true,
			},
		},
		Embedding: EmbeddingConfig{
			Type:      "hash",
			Dimension: 384,
			OpenAI: OpenAIConfig{
				BaseURL:   "https://api.openai.com/v1",
				FastModel: "text-embedding-3-small",
			},
			Cache: EmbeddingCacheConfig{
				Enabled:    true,
				MaxEntries: 10000,
				TTL:        24 * time.Hour,
				Redis: RedisConfig{
					Prefix: "softreason:emb:",
				},
			},
		},
		Recall: RecallConfig{
			FastTopK:          24,
			FinalTopK:         5,
			RecencyAlpha:      0.65,
			MinScore:          0,
			UseDualEmbedding:  true,
			RecencyHorizonSec: 86400,
		},
		Writeback: WritebackConfig{
			NoveltyGate:       0.18,
			DefaultTTLSeconds: 7 * 86400,
			LongTTLSeconds:    90 * 86400,
			MaxLenChars:       5000,
		},
		Engine: EngineConfig{
			AsyncWorkers:   4,
			AsyncQueueSize: 64,
			PruneInterval:  10 * time.Minute,
			NoveltyPolicy:  "fail_open",
		},
	}
}
