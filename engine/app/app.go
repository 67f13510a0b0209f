// Package app builds the engine's backends from configuration. Both
// binaries use it so they agree on stores, providers and bucket names.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/career-agent/engine/account"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/engine/localstore"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/engine/semantic"
	"github.com/WessleyAI/career-agent/pkg/config"
	"github.com/WessleyAI/career-agent/pkg/embed"
	"github.com/WessleyAI/career-agent/pkg/kv"
	"github.com/WessleyAI/career-agent/pkg/llm"
	"github.com/WessleyAI/career-agent/pkg/natsutil"
)

// KV bucket names.
const (
	BucketMatchCache = "match_cache"
	BucketBlacklist  = "token_blacklist"
	BucketSessions   = "interview_sessions"
)

// ChunkStore reads and writes embedded chunks.
type ChunkStore interface {
	match.ChunkSource
	ingest.Writer
	Close() error
}

// OpenChunkStore returns the bbolt store or a lazily connected Qdrant
// store. Qdrant is dialled and its collection created on first use.
func OpenChunkStore(cfg config.Config, log *slog.Logger) (ChunkStore, error) {
	if cfg.ChunkStore == "bolt" {
		if err := mkdirFor(cfg.BoltPath); err != nil {
			return nil, err
		}
		return localstore.Open(cfg.BoltPath)
	}
	return semantic.NewLazy(func() (*semantic.VectorStore, error) {
		vs, err := semantic.New(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := vs.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
			vs.Close()
			return nil, err
		}
		log.Info("qdrant connected", "addr", cfg.QdrantURL, "collection", cfg.QdrantCollection)
		return vs, nil
	}), nil
}

func NewEmbedder(cfg config.Config) embed.Embedder {
	if cfg.EmbedProvider == "openai" {
		return embed.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbedModel)
	}
	return embed.NewOllama(cfg.OllamaURL, cfg.EmbedModel)
}

// NewLLM returns the configured chat provider, throttled to
// llm_rate_per_second with transient failures retried.
func NewLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	var c llm.Client
	switch cfg.LLMProvider {
	case "gemini":
		g, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		c = g
	default:
		c = llm.NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	}
	return llm.NewThrottled(c, cfg.LLMRatePerSecond), nil
}

func OpenAccounts(ctx context.Context, cfg config.Config) (account.Store, error) {
	if cfg.AccountStore == "neo4j" {
		return account.OpenNeo4j(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
	}
	if err := mkdirFor(cfg.SQLitePath); err != nil {
		return nil, err
	}
	return account.OpenSQLite(cfg.SQLitePath)
}

// ConnectNATS returns nil without error when nats_url is empty.
func ConnectNATS(cfg config.Config, name string, log *slog.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: connect nats: %w", err)
	}
	return nc, nil
}

// OpenKV returns a JetStream bucket when nc is set and process memory
// otherwise. ttl bounds the bucket; entries still carry their own TTL.
func OpenKV(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (kv.Store, error) {
	if nc == nil {
		return kv.NewMemory(), nil
	}
	b, err := natsutil.KeyValue(ctx, nc, bucket, ttl)
	if err != nil {
		return nil, err
	}
	return kv.NewJetStream(b), nil
}

func mkdirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("app: create directory for %s: %w", path, err)
	}
	return nil
}
