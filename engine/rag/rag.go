// Package rag answers questions about a stored document. It embeds the
// question, retrieves the nearest chunks of that document, builds a prompt
// with numbered context blocks and asks the LLM for a cited answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/pkg/embed"
	"github.com/WessleyAI/career-agent/pkg/llm"
)

// Searcher finds the chunks of one document nearest to an embedding.
type Searcher interface {
	Nearest(ctx context.Context, embedding []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error)
}

// Options configures retrieval and generation.
type Options struct {
	TopK          int
	Temperature   float32
	SystemPrompt  string
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          3,
		Temperature:   0.3,
		SystemPrompt:  defaultSystemPrompt,
		SearchTimeout: 5 * time.Second,
	}
}

const defaultSystemPrompt = "You are an AI career assistant. Answer clearly and cite sources when possible."

// Service is the question answering service.
type Service struct {
	embed  embed.Embedder
	llm    llm.Client
	search Searcher
	opts   Options
	logger *slog.Logger
}

func New(e embed.Embedder, client llm.Client, search Searcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Service{embed: e, llm: client, search: search, opts: opts, logger: logger}
}

// Hit is one retrieved chunk.
type Hit struct {
	Index   int     `json:"chunk_id"`
	Text    string  `json:"text"`
	Preview string  `json:"preview"`
	Score   float64 `json:"score"`
}

// Answer is the response to Ask.
type Answer struct {
	Query     string   `json:"query"`
	Result    string   `json:"result"`
	Citations []string `json:"citations"`
}

// Search returns up to k chunks of (docID, t) nearest to query. Scores are
// similarities in (0, 1], rounded to 3 places.
func (s *Service) Search(ctx context.Context, query, docID string, t domain.DocType, k int) ([]Hit, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}
	found, err := s.search.Nearest(ctx, vec, docID, t, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	hits := make([]Hit, len(found))
	for i, n := range found {
		preview := n.Preview
		if preview == "" {
			preview = domain.Truncate(n.Text, domain.StoredPreviewLen)
		}
		sim := match.DistanceToSimilarity(n.Distance)
		hits[i] = Hit{Index: n.Index, Text: n.Text, Preview: preview, Score: math.Round(sim*1000) / 1000}
	}
	return hits, nil
}

// Ask answers question from the resume's own chunks. A resume with no
// stored chunks is a *domain.NotFoundError.
func (s *Service) Ask(ctx context.Context, resumeID, question string) (*Answer, error) {
	s.logger.Info("rag ask start", "resume_id", resumeID, "question_len", len(question))

	hits, err := s.Search(ctx, question, resumeID, domain.DocResume, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, domain.NotFound(domain.DocResume)
	}

	reply, err := s.llm.Complete(ctx, llm.Request{
		System:      s.opts.SystemPrompt,
		Prompt:      buildPrompt(hits, question),
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: complete: %w", err)
	}

	citations := make([]string, len(hits))
	for i, h := range hits {
		citations[i] = fmt.Sprintf("Chunk %d: %s", h.Index, h.Preview)
	}
	return &Answer{Query: question, Result: llm.CleanText(reply), Citations: citations}, nil
}

// ContextBlocks formats hits as "[Chunk n]" blocks separated by blank lines.
func ContextBlocks(hits []Hit) string {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "[Chunk %d]\n%s\n\n", h.Index, h.Text)
	}
	return b.String()
}

func buildPrompt(hits []Hit, question string) string {
	return fmt.Sprintf(`Answer the question using ONLY the context below.
Cite sources using chunk numbers.

Context:
%s
Question:
%s`, ContextBlocks(hits), question)
}
