package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	IndexPostgres = "postgres"
	IndexSQLite   = "sqlite"
	IndexMemory   = "memory"
	IndexNone     = "none"

	EmbedRemote = "remote"
	EmbedLocal  = "local"
	EmbedNone   = "none"
)

type Config struct {
	DownloadDir          string
	DownloadDisambiguate bool
	FetchTimeout         time.Duration

	IndexBackend string
	DatabaseURL  string
	SslCertPath  string
	SQLitePath   string

	EmbedBackend    string
	AIAPIKey        string
	EmbedModel      string
	EmbedBatchSize  int
	EmbedRPM        int
	EmbedTimeout    time.Duration
	OllamaURL       string
	LocalEmbedModel string
	GenModel        string

	ChunkSize     int
	ChunkOverlap  int
	IngestWorkers int

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	OpenAlexEmail string

	Port      string
	JWTSecret string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DownloadDir:          expandHome(getEnv("DOWNLOAD_DIR", "~/acm-papers")),
		DownloadDisambiguate: getEnvBool("DOWNLOAD_DISAMBIGUATE", false),
		FetchTimeout:         time.Duration(getEnvInt("FETCH_TIMEOUT_SECS", 60)) * time.Second,

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),
		SQLitePath:  expandHome(getEnv("SQLITE_PATH", "~/.paperdex/index.db")),

		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedRPM:        getEnvInt("EMBED_RPM", 60),
		EmbedTimeout:    time.Duration(getEnvInt("EMBED_TIMEOUT_SECS", 30)) * time.Second,
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		LocalEmbedModel: getEnv("LOCAL_EMBED_MODEL", "all-minilm"),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 3),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("ARCHIVE_BUCKET", ""),

		OpenAlexEmail: getEnv("OPENALEX_EMAIL", ""),

		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	cfg.IndexBackend = strings.ToLower(getEnv("INDEX_BACKEND", ""))
	if cfg.IndexBackend == "" {
		cfg.IndexBackend = IndexNone
		if cfg.DatabaseURL != "" {
			cfg.IndexBackend = IndexPostgres
		}
	}

	cfg.EmbedBackend = strings.ToLower(getEnv("EMBED_BACKEND", ""))
	if cfg.EmbedBackend == "" {
		cfg.EmbedBackend = EmbedLocal
		if cfg.AIAPIKey != "" {
			cfg.EmbedBackend = EmbedRemote
		}
	}

	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is empty")
	}
	switch c.IndexBackend {
	case IndexPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("INDEX_BACKEND=postgres requires DATABASE_URL")
		}
	case IndexSQLite, IndexMemory, IndexNone:
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}
	switch c.EmbedBackend {
	case EmbedRemote, EmbedLocal, EmbedNone:
	default:
		return fmt.Errorf("unknown EMBED_BACKEND %q", c.EmbedBackend)
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
