package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Search    SearchConfig    `toml:"search"`
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LMStudio  LMStudioConfig  `toml:"lmstudio"`
	Logging   LoggingConfig   `toml:"logging"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type ChunkingConfig struct {
	ChunkSize     int `toml:"chunk_size"`
	ChunkOverlap  int `toml:"chunk_overlap"`
	MaxTextLength int `toml:"max_text_length"`
}

type SearchConfig struct {
	DefaultTopK int `toml:"default_top_k"`
}

type StorageConfig struct {
	DefaultDir string `toml:"default_dir"`
}

type EmbeddingConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type LMStudioConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// MaxUploadBytes is the raw upload size cap. Files may be up to twice the
// maximum text length to tolerate PDF container overhead.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Chunking.MaxTextLength) * 2
}

func (c *Config) validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunking.chunk_overlap must not be negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.MaxTextLength <= 0 {
		return fmt.Errorf("chunking.max_text_length must be positive, got %d", c.Chunking.MaxTextLength)
	}
	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("search.default_top_k must be positive, got %d", c.Search.DefaultTopK)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "pandaqa",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8000,
			GinMode: "debug",
		},
		Chunking: ChunkingConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			MaxTextLength: 100000,
		},
		Search: SearchConfig{
			DefaultTopK: 3,
		},
		Storage: StorageConfig{
			DefaultDir: "knowledge_base",
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://127.0.0.1:1234/v1",
			APIKey:  "lm-studio",
			Model:   "text-embedding-nomic-embed-text-v1.5",
		},
		LMStudio: LMStudioConfig{
			BaseURL:     "http://127.0.0.1:1234/v1",
			APIKey:      "lm-studio",
			Model:       "default",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Logging: LoggingConfig{
			Level: "",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Chunking.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.Chunking.ChunkSize)
	cfg.Chunking.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.Chunking.ChunkOverlap)
	cfg.Chunking.MaxTextLength = getEnvAsInt("MAX_TEXT_LENGTH", cfg.Chunking.MaxTextLength)

	cfg.Search.DefaultTopK = getEnvAsInt("DEFAULT_TOP_K", cfg.Search.DefaultTopK)
	cfg.Storage.DefaultDir = getEnv("STORAGE_DIR", cfg.Storage.DefaultDir)

	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)

	cfg.LMStudio.BaseURL = getEnv("LMSTUDIO_BASE_URL", cfg.LMStudio.BaseURL)
	cfg.LMStudio.APIKey = getEnv("LMSTUDIO_API_KEY", cfg.LMStudio.APIKey)
	cfg.LMStudio.Model = getEnv("LMSTUDIO_MODEL", cfg.LMStudio.Model)
	cfg.LMStudio.MaxTokens = getEnvAsInt("LMSTUDIO_MAX_TOKENS", cfg.LMStudio.MaxTokens)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
