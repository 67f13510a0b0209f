// Package config loads service configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the binaries read. Each field maps to an
// environment variable of the upper-cased key, e.g. qdrant_url -> QDRANT_URL.
type Config struct {
	Port       string `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`

	QdrantURL        string        `mapstructure:"qdrant_url"`
	QdrantCollection string        `mapstructure:"qdrant_collection"`
	EmbedDims        int           `mapstructure:"embed_dims"`
	ChunkStore       string        `mapstructure:"chunk_store"`
	BoltPath         string        `mapstructure:"bolt_path"`
	MatchMode        string        `mapstructure:"match_mode"`
	MatchCacheTTL    time.Duration `mapstructure:"match_cache_ttl"`

	NATSURL string `mapstructure:"nats_url"`

	AccountStore string `mapstructure:"account_store"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	Neo4jURL     string `mapstructure:"neo4j_url"`
	Neo4jUser    string `mapstructure:"neo4j_user"`
	Neo4jPass    string `mapstructure:"neo4j_pass"`

	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`

	LLMProvider       string  `mapstructure:"llm_provider"`
	LLMBaseURL        string  `mapstructure:"llm_base_url"`
	LLMAPIKey         string  `mapstructure:"llm_api_key"`
	LLMModel          string  `mapstructure:"llm_model"`
	InterviewLLMModel string  `mapstructure:"interview_llm_model"`
	LLMRatePerSecond  float64 `mapstructure:"llm_rate_per_second"`
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`

	EmbedProvider string `mapstructure:"embed_provider"`
	OllamaURL     string `mapstructure:"ollama_url"`
	EmbedModel    string `mapstructure:"embed_model"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret"`

	UploadDir string `mapstructure:"upload_dir"`
}

var stdout io.Writer = os.Stdout

var defaults = map[string]any{
	"port":        "8080",
	"cors_origin": "*",
	"log_level":   "info",
	"log_format":  "json",

	"qdrant_url":        "localhost:6334",
	"qdrant_collection": "career_chunks",
	"embed_dims":        768,
	"chunk_store":       "qdrant",
	"bolt_path":         "data/chunks.db",
	"match_mode":        "ann",
	"match_cache_ttl":   15 * time.Minute,

	"nats_url": "",

	"account_store": "sqlite",
	"sqlite_path":   "data/accounts.db",
	"neo4j_url":     "neo4j://localhost:7687",
	"neo4j_user":    "neo4j",
	"neo4j_pass":    "password",

	"jwt_secret":        "",
	"access_token_ttl":  30 * time.Minute,
	"refresh_token_ttl": 7 * 24 * time.Hour,

	"llm_provider":        "openai",
	"llm_base_url":        "https://openrouter.ai/api/v1",
	"llm_api_key":         "",
	"llm_model":           "openai/gpt-4o-mini",
	"interview_llm_model": "",
	"llm_rate_per_second": 2.0,
	"gemini_api_key":      "",

	"embed_provider": "ollama",
	"ollama_url":     "http://localhost:11434",
	"embed_model":    "nomic-embed-text",
	"openai_api_key": "",

	"google_client_id":     "",
	"github_client_id":     "",
	"github_client_secret": "",

	"upload_dir": "data/uploads",
}

// Load reads .env (when present), then path (when non-empty), then the
// environment, which wins over both.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.InterviewLLMModel == "" {
		cfg.InterviewLLMModel = cfg.LLMModel
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the binaries cannot start with.
func (c Config) Validate() error {
	switch c.ChunkStore {
	case "qdrant", "bolt":
	default:
		return fmt.Errorf("config: chunk_store must be qdrant or bolt, got %q", c.ChunkStore)
	}
	switch c.MatchMode {
	case "ann", "bruteforce":
	default:
		return fmt.Errorf("config: match_mode must be ann or bruteforce, got %q", c.MatchMode)
	}
	switch c.AccountStore {
	case "sqlite", "neo4j":
	default:
		return fmt.Errorf("config: account_store must be sqlite or neo4j, got %q", c.AccountStore)
	}
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: llm_provider must be openai or gemini, got %q", c.LLMProvider)
	}
	switch c.EmbedProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: embed_provider must be ollama or openai, got %q", c.EmbedProvider)
	}
	if c.EmbedDims <= 0 {
		return fmt.Errorf("config: embed_dims must be positive, got %d", c.EmbedDims)
	}
	return nil
}

// Logger builds the process logger: JSON unless log_format is "text".
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(stdout, opts))
}
