package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: %q", cfg.Port)
	}
	if cfg.MatchCacheTTL != 15*time.Minute {
		t.Errorf("match_cache_ttl: %v", cfg.MatchCacheTTL)
	}
	if cfg.AccessTokenTTL != 30*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("token ttls: %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.InterviewLLMModel != cfg.LLMModel {
		t.Errorf("interview model should default to llm_model, got %q", cfg.InterviewLLMModel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MATCH_MODE", "bruteforce")
	t.Setenv("MATCH_CACHE_TTL", "2m")
	t.Setenv("EMBED_DIMS", "384")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.MatchMode != "bruteforce" {
		t.Errorf("unexpected %+v", cfg)
	}
	if cfg.MatchCacheTTL != 2*time.Minute {
		t.Errorf("match_cache_ttl: %v", cfg.MatchCacheTTL)
	}
	if cfg.EmbedDims != 384 {
		t.Errorf("embed_dims: %d", cfg.EmbedDims)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "career.yaml")
	body := "port: \"7000\"\nchunk_store: bolt\nbolt_path: /tmp/x.db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkStore != "bolt" || cfg.BoltPath != "/tmp/x.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Port != "7001" {
		t.Errorf("env should win over file, got %q", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"chunk store", func(c *Config) { c.ChunkStore = "redis" }},
		{"match mode", func(c *Config) { c.MatchMode = "fuzzy" }},
		{"account store", func(c *Config) { c.AccountStore = "postgres" }},
		{"llm provider", func(c *Config) { c.LLMProvider = "anthropic" }},
		{"embed provider", func(c *Config) { c.EmbedProvider = "cohere" }},
		{"dims", func(c *Config) { c.EmbedDims = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if c.Validate() == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	Config{LogLevel: "debug", LogFormat: "json"}.Logger().Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	Config{LogLevel: "warn", LogFormat: "text"}.Logger().Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
}
