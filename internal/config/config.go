package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Chat-completion service settings.
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	// Embedding service settings.
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDim       int

	// Corpus scanning.
	CorpusFolders  []string
	IncludeGlobs   []string
	ExcludeDirs    []string
	PriorityFolder string
	MaxFileBytes   int64

	// Chunking and index limits.
	ChunkSize       int
	ChunkOverlap    int
	MaxTotalChunks  int
	EmbedBatchSize  int
	TopK            int
	MaxContextChars int

	// Answering behavior.
	MinContextChars int
	MinKeywordHits  int
	HistoryTurns    int
	StrictLocal     bool
	DebugSources    bool

	// Index cache file locations.
	VectorDBPath  string
	IndexMetaPath string

	// Server and logging.
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or project root, it is loaded
// automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	// Try current directory first, then walk up to find the project root.
	_ = godotenv.Load()
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		CorpusFolders:      getEnvList("CORPUS_FOLDERS", []string{"templates", "templates/chatbot", "static"}),
		IncludeGlobs:       getEnvList("INCLUDE_GLOBS", []string{"*.py", "*.js", "*.ts", "*.html", "*.css", "*.txt", "*.md", "*.docx", "*.xlsx", "*.pdf"}),
		ExcludeDirs:        getEnvList("EXCLUDE_DIRS", []string{".git", "__pycache__", "node_modules", "generated"}),
		PriorityFolder:     getEnv("PRIORITY_FOLDER", "templates/chatbot"),
		VectorDBPath:       getEnv("VECTOR_DB_PATH", "./data/rag_index.db"),
		IndexMetaPath:      getEnv("INDEX_META_PATH", "./data/rag_index_meta.json"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		StrictLocal:        getEnvBool("STRICT_LOCAL", false),
		DebugSources:       getEnvBool("DEBUG_SOURCES", false),
	}

	intFields := []struct {
		dest *int
		key  string
		def  int
	}{
		{&cfg.EmbeddingDim, "EMBEDDING_DIM", 1536},
		{&cfg.ChunkSize, "CHUNK_SIZE", 1200},
		{&cfg.ChunkOverlap, "CHUNK_OVERLAP", 200},
		{&cfg.MaxTotalChunks, "MAX_TOTAL_CHUNKS", 4000},
		{&cfg.EmbedBatchSize, "EMBED_BATCH_SIZE", 32},
		{&cfg.TopK, "TOP_K", 12},
		{&cfg.MaxContextChars, "MAX_CONTEXT_CHARS", 16000},
		{&cfg.MinContextChars, "MIN_CONTEXT_CHARS", 200},
		{&cfg.MinKeywordHits, "MIN_KEYWORD_HITS", 1},
		{&cfg.HistoryTurns, "HISTORY_TURNS", 8},
	}
	for _, f := range intFields {
		v, err := getEnvInt(f.key, f.def)
		if err != nil {
			return nil, err
		}
		*f.dest = v
	}

	maxFileBytes, err := getEnvInt("MAX_FILE_BYTES", 1_500_000)
	if err != nil {
		return nil, err
	}
	cfg.MaxFileBytes = int64(maxFileBytes)

	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("TOP_K must be greater than 0")
	}
	if cfg.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be greater than 0")
	}
	if len(cfg.CorpusFolders) == 0 {
		return nil, fmt.Errorf("CORPUS_FOLDERS must list at least one folder")
	}

	// Create the data directory for the index cache files if needed.
	dataDir := filepath.Dir(cfg.VectorDBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// AIEnabled reports whether an embedding/completion credential is configured.
// Without one the index stays empty and chat degrades to a fixed message.
func (c *Config) AIEnabled() bool {
	return c.LLMAPIKey != ""
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList parses a comma-separated environment variable into a slice.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(raw, "_", ""))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
