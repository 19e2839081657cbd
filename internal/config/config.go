// Package config loads the processing pipeline's runtime configuration from
// the environment, following the env-var-driven pattern used throughout the
// rest of the stack rather than a dedicated config service.
package config

import "time"

// S3Config configures the blob store client (C1).
type S3Config struct {
	Endpoint              string
	Region                string
	Bucket                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
}

// PostgresConfig configures the relational row store.
type PostgresConfig struct {
	DSN string
}

// QdrantConfig configures the vector index (C5).
type QdrantConfig struct {
	DSN               string
	ChunksCollection   string
	DocumentsCollection string
}

// EmbeddingConfig configures the embedding provider (C4).
type EmbeddingConfig struct {
	// Provider selects "local" (dense-transformer encoder) or "remote"
	// (hosted-API encoder).
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	BatchSize int
}

// ChunkingConfig configures the chunker (C3).
type ChunkingConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// OCRConfig configures the OCR fallback used by the text extractor (C2).
type OCRConfig struct {
	Enabled bool
	Binary  string // path to the tesseract CLI binary
}

// RelationshipConfig configures the Extract-Relationships job (C6.2).
type RelationshipConfig struct {
	Threshold     float64
	LimitPerChunk int
}

// JobConfig configures worker scheduling (§5).
type JobConfig struct {
	HardTimeout time.Duration
	SoftTimeout time.Duration
	WorkerCount int
	TempDir     string

	// MaxJobsPerWorker bounds how many jobs a single worker goroutine
	// processes before it exits and is replaced, bounding long-run memory
	// growth per the backpressure rule.
	MaxJobsPerWorker int

	// Broker selects the queue backend: "memory" (in-process channel,
	// default, used for tests and single-process deployments) or "kafka".
	Broker       string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Config is the pipeline's complete runtime configuration.
type Config struct {
	S3           S3Config
	Postgres     PostgresConfig
	Qdrant       QdrantConfig
	Embedding    EmbeddingConfig
	Chunking     ChunkingConfig
	OCR          OCRConfig
	Relationship RelationshipConfig
	Job          JobConfig
}
