package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally from a
// .env file in the working directory). Missing optional values fall back
// to the defaults documented in spec.md §6.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		S3: S3Config{
			Endpoint:              strings.TrimSpace(os.Getenv("BLOB_ENDPOINT")),
			Region:                firstNonEmpty(os.Getenv("BLOB_REGION"), "us-east-1"),
			Bucket:                strings.TrimSpace(os.Getenv("BLOB_BUCKET")),
			AccessKey:             strings.TrimSpace(os.Getenv("BLOB_ACCESS_KEY")),
			SecretKey:             strings.TrimSpace(os.Getenv("BLOB_SECRET_KEY")),
			UsePathStyle:          envBool("BLOB_USE_PATH_STYLE", true),
			TLSInsecureSkipVerify: envBool("BLOB_TLS_INSECURE_SKIP_VERIFY", false),
		},
		Postgres: PostgresConfig{
			DSN: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Qdrant: QdrantConfig{
			DSN:                 firstNonEmpty(os.Getenv("QDRANT_DSN"), "http://localhost:6334"),
			ChunksCollection:    firstNonEmpty(os.Getenv("QDRANT_CHUNKS_COLLECTION"), "chunks"),
			DocumentsCollection: firstNonEmpty(os.Getenv("QDRANT_DOCUMENTS_COLLECTION"), "documents"),
		},
		Embedding: EmbeddingConfig{
			Provider:  firstNonEmpty(os.Getenv("EMBEDDING_PROVIDER"), "local"),
			Model:     firstNonEmpty(os.Getenv("EMBEDDING_MODEL"), "all-MiniLM-L6-v2"),
			BaseURL:   strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")),
			APIKey:    strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
			Dimension: envInt("EMBEDDING_DIMENSION", 768),
			BatchSize: envInt("EMBEDDING_BATCH_SIZE", 32),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    envInt("CHUNK_SIZE", 512),
			ChunkOverlap: envInt("CHUNK_OVERLAP", 50),
		},
		OCR: OCRConfig{
			Enabled: envBool("OCR_ENABLED", false),
			Binary:  firstNonEmpty(os.Getenv("OCR_BINARY"), "tesseract"),
		},
		Relationship: RelationshipConfig{
			Threshold:     envFloat("RELATIONSHIP_THRESHOLD", 0.75),
			LimitPerChunk: envInt("RELATIONSHIP_LIMIT_PER_CHUNK", 5),
		},
		Job: JobConfig{
			HardTimeout:      envDuration("JOB_HARD_TIMEOUT_SECONDS", 3600*time.Second),
			SoftTimeout:      envDuration("JOB_SOFT_TIMEOUT_SECONDS", 3300*time.Second),
			WorkerCount:      envInt("JOB_WORKER_COUNT", 4),
			TempDir:          firstNonEmpty(os.Getenv("JOB_TEMP_DIR"), os.TempDir()),
			MaxJobsPerWorker: envInt("JOB_MAX_JOBS_PER_WORKER", 200),
			Broker:           firstNonEmpty(os.Getenv("JOB_BROKER"), "memory"),
			KafkaBrokers:     splitCSV(os.Getenv("JOB_KAFKA_BROKERS")),
			KafkaTopic:       firstNonEmpty(os.Getenv("JOB_KAFKA_TOPIC"), "regdocs.jobs"),
			KafkaGroupID:     firstNonEmpty(os.Getenv("JOB_KAFKA_GROUP_ID"), "regdocs-worker"),
		},
	}

	if err := applyYAMLOverrides(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// yamlOverrides is the optional file shape read by applyYAMLOverrides. Only
// the chunking and relationship-classification tuning knobs are exposed
// here — the deployment-environment settings (credentials, DSNs) stay
// env-var-only so they're never accidentally checked into a config file.
type yamlOverrides struct {
	Chunking *struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunking"`
	Relationship *struct {
		Threshold     float64 `yaml:"threshold"`
		LimitPerChunk int     `yaml:"limit_per_chunk"`
	} `yaml:"relationship"`
}

// applyYAMLOverrides layers an optional YAML file over the env-derived
// config, the same optional-file convention the rest of the stack uses for
// its own config.yaml/config.yml tuning file: REGDOCS_CONFIG names an
// explicit path, otherwise config.yaml/config.yml in the working directory
// is used if present. A missing file is not an error.
func applyYAMLOverrides(cfg *Config) error {
	var paths []string
	if p := strings.TrimSpace(os.Getenv("REGDOCS_CONFIG")); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "config.yaml", "config.yml")

	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
		if os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("config: read %s: %w", p, err)
	}
	if len(data) == 0 {
		return nil
	}

	var overrides yamlOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("config: parse yaml overrides: %w", err)
	}

	if overrides.Chunking != nil {
		if overrides.Chunking.ChunkSize > 0 {
			cfg.Chunking.ChunkSize = overrides.Chunking.ChunkSize
		}
		if overrides.Chunking.ChunkOverlap > 0 {
			cfg.Chunking.ChunkOverlap = overrides.Chunking.ChunkOverlap
		}
	}
	if overrides.Relationship != nil {
		if overrides.Relationship.Threshold > 0 {
			cfg.Relationship.Threshold = overrides.Relationship.Threshold
		}
		if overrides.Relationship.LimitPerChunk > 0 {
			cfg.Relationship.LimitPerChunk = overrides.Relationship.LimitPerChunk
		}
	}
	return nil
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// envDuration reads an integer number of seconds from key.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}
