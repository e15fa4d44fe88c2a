package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Document snapshot (crawler output, build input)
	SnapshotBackend string // "file" (default) or "mongo"
	SnapshotPath    string
	MongoURI        string
	DBName          string

	// Chunking
	MaxChunkChars     int
	ChunkOverlapChars int

	// Embeddings
	EmbeddingsProvider    string // "google" (default), "openai"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g. "text-embedding-004"
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbedBatchSize        int
	EmbedMaxRetries       int
	EmbedRetryBackoff     time.Duration
	EmbedRequestsPerMin   int

	// Index
	IndexDir         string
	SimilarityMetric string // "cosine" (default) or "dot"
	DefaultTopK      int

	// Crawler
	CrawlStartURL  string
	CrawlMaxPages  int
	CrawlDelay     time.Duration
	CrawlTimeout   time.Duration
	CrawlRenderJS  bool
	AllowedDomains []string

	// Redis (embedding cache, rate limiting, task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// HTTP rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", "file"),
		SnapshotPath:    getEnv("SNAPSHOT_PATH", "./data/snapshot.json"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/site_assistant"),
		DBName:          getEnv("DB_NAME", "site_assistant"),

		MaxChunkChars:     getEnvInt("MAX_CHUNK_CHARS", 800),
		ChunkOverlapChars: getEnvInt("CHUNK_OVERLAP_CHARS", 100),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 64),
		EmbedMaxRetries:       getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedRetryBackoff:     time.Duration(getEnvInt("EMBED_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		EmbedRequestsPerMin:   getEnvInt("EMBED_REQUESTS_PER_MIN", 300),

		IndexDir:         getEnv("INDEX_DIR", "./data/index"),
		SimilarityMetric: getEnv("SIMILARITY_METRIC", "cosine"),
		DefaultTopK:      getEnvInt("DEFAULT_TOP_K", 4),

		CrawlStartURL:  getEnv("CRAWL_START_URL", ""),
		CrawlMaxPages:  getEnvInt("CRAWL_MAX_PAGES", 100),
		CrawlDelay:     time.Duration(getEnvInt("CRAWL_DELAY_MS", 2000)) * time.Millisecond,
		CrawlTimeout:   time.Duration(getEnvInt("CRAWL_TIMEOUT_SEC", 60)) * time.Second,
		CrawlRenderJS:  getEnvBool("CRAWL_RENDER_JS", false),
		AllowedDomains: splitNonEmpty(getEnv("CRAWL_ALLOWED_DOMAINS", "")),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 3600)) * time.Second,

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	switch cfg.EmbeddingsProvider {
	case "google":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required - set it in .env file")
		}
	default:
		return nil, fmt.Errorf("unknown EMBEDDINGS_PROVIDER: %s", cfg.EmbeddingsProvider)
	}

	if cfg.SimilarityMetric != "cosine" && cfg.SimilarityMetric != "dot" {
		return nil, fmt.Errorf("SIMILARITY_METRIC must be cosine or dot, got %s", cfg.SimilarityMetric)
	}
	if cfg.ChunkOverlapChars >= cfg.MaxChunkChars {
		return nil, fmt.Errorf("CHUNK_OVERLAP_CHARS must be smaller than MAX_CHUNK_CHARS")
	}
	if cfg.DefaultTopK <= 0 {
		return nil, fmt.Errorf("DEFAULT_TOP_K must be positive")
	}

	return cfg, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
