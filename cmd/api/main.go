// Package main implements the career agent API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/career-agent/engine/app"
	"github.com/WessleyAI/career-agent/engine/auth"
	"github.com/WessleyAI/career-agent/engine/coach"
	"github.com/WessleyAI/career-agent/engine/extract"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/engine/interview"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/engine/rag"
	"github.com/WessleyAI/career-agent/engine/speech"
	"github.com/WessleyAI/career-agent/pkg/config"
	"github.com/WessleyAI/career-agent/pkg/llm"
	"github.com/WessleyAI/career-agent/pkg/metrics"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		return errors.New("jwt_secret must be set")
	}
	reg := metrics.New()

	// --- NATS (optional) ---
	nc, err := app.ConnectNATS(cfg, "career-api", logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
	}
	cacheKV, err := app.OpenKV(ctx, nc, app.BucketMatchCache, cfg.MatchCacheTTL)
	if err != nil {
		return err
	}
	blacklistKV, err := app.OpenKV(ctx, nc, app.BucketBlacklist, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	sessionKV, err := app.OpenKV(ctx, nc, app.BucketSessions, interview.SessionTTL)
	if err != nil {
		return err
	}

	// --- Stores ---
	chunks, err := app.OpenChunkStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("chunk store: %w", err)
	}
	defer chunks.Close()

	accounts, err := app.OpenAccounts(ctx, cfg)
	if err != nil {
		return fmt.Errorf("account store: %w", err)
	}
	defer accounts.Close()

	// --- Providers ---
	chat, err := app.NewLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	embedder := app.NewEmbedder(cfg)

	var voice *speech.Service
	if cfg.OpenAIAPIKey != "" {
		voice = speech.NewOpenAI(cfg.OpenAIAPIKey, "", logger)
	}

	// --- Services ---
	deps := ingest.Deps{Embedder: embedder, Store: chunks, Logger: logger}
	if nc != nil {
		deps.Notify = ingest.NATSNotifier(nc)
	}
	ingestSvc := ingest.New(deps)

	engine := match.New(chunks, match.Options{Mode: match.Mode(cfg.MatchMode), Metrics: reg}, logger)
	matcher := match.NewCached(engine, cacheKV, cfg.MatchCacheTTL, reg, logger)
	ragSvc := rag.New(embedder, chat, chunks, rag.DefaultOptions(), logger)
	interviewSvc := interview.New(llm.WithModel(chat, cfg.InterviewLLMModel), chunks, ragSvc,
		interview.NewSessionStore(sessionKV), logger)

	var authOpts auth.Options
	if cfg.GoogleClientID != "" {
		authOpts.Google = auth.NewGoogle(cfg.GoogleClientID)
	}
	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		authOpts.GitHub = auth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret)
	}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, blacklistKV, logger)

	s := &server{
		auth:       auth.New(accounts, tokens, authOpts, logger),
		accounts:   accounts,
		ingest:     ingestSvc,
		chunks:     chunks,
		pdf:        extract.NewPDF(),
		matcher:    matcher,
		coach:      coach.New(chat, chunks, logger),
		ask:        ragSvc,
		interview:  interviewSvc,
		speech:     voice,
		uploadDir:  cfg.UploadDir,
		corsOrigin: cfg.CORSOrigin,
		newID:      uuid.NewString,
		metrics:    reg,
		log:        logger,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "chunk_store", cfg.ChunkStore, "match_mode", cfg.MatchMode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
