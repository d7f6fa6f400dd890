package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var configEnvVars = []string{
	"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME", "EMBEDDING_DIM",
	"CORPUS_FOLDERS", "INCLUDE_GLOBS", "EXCLUDE_DIRS", "PRIORITY_FOLDER",
	"MAX_FILE_BYTES", "CHUNK_SIZE", "CHUNK_OVERLAP", "MAX_TOTAL_CHUNKS",
	"EMBED_BATCH_SIZE", "TOP_K", "MAX_CONTEXT_CHARS",
	"MIN_CONTEXT_CHARS", "MIN_KEYWORD_HITS", "HISTORY_TURNS",
	"STRICT_LOCAL", "DEBUG_SOURCES",
	"VECTOR_DB_PATH", "INDEX_META_PATH", "API_PORT", "LOG_LEVEL", "LOG_FORMAT",
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	for _, key := range configEnvVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "defaults apply with no env set",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ChunkSize == 1200 &&
					cfg.ChunkOverlap == 200 &&
					cfg.TopK == 12 &&
					cfg.MaxContextChars == 16000 &&
					cfg.MaxTotalChunks == 4000 &&
					cfg.EmbedBatchSize == 32 &&
					cfg.EmbeddingDim == 1536 &&
					cfg.PriorityFolder == "templates/chatbot" &&
					cfg.MaxFileBytes == 1_500_000 &&
					hasGlob(cfg.IncludeGlobs, "*.docx") &&
					hasGlob(cfg.IncludeGlobs, "*.pdf") &&
					!cfg.StrictLocal &&
					!cfg.AIEnabled()
			},
		},
		{
			name: "custom corpus folders and globs",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("CORPUS_FOLDERS", "docs, notes ,extra")
				setEnv("INCLUDE_GLOBS", "*.md,*.txt")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return len(cfg.CorpusFolders) == 3 &&
					cfg.CorpusFolders[1] == "notes" &&
					len(cfg.IncludeGlobs) == 2
			},
		},
		{
			name: "api key enables AI",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("LLM_API_KEY", "sk-test")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.AIEnabled()
			},
		},
		{
			name: "overlap must be smaller than chunk size",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("CHUNK_SIZE", "100")
				setEnv("CHUNK_OVERLAP", "100")
			},
			wantErr: true,
		},
		{
			name: "invalid integer rejected",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("TOP_K", "twelve")
			},
			wantErr: true,
		},
		{
			name: "invalid log level rejected",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("LOG_LEVEL", "verbose")
			},
			wantErr: true,
		},
		{
			name: "debug log level parsed",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("LOG_LEVEL", "debug")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LogLevel == slog.LevelDebug
			},
		},
		{
			name: "strict local toggle",
			setupEnv: func(t *testing.T) {
				setEnv("VECTOR_DB_PATH", filepath.Join(t.TempDir(), "rag_index.db"))
				setEnv("STRICT_LOCAL", "true")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.StrictLocal
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range configEnvVars {
				unsetEnv(key)
			}
			tt.setupEnv(t)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func hasGlob(globs []string, want string) bool {
	for _, g := range globs {
		if g == want {
			return true
		}
	}
	return false
}
