// Package match scores how well a resume covers a job description. Every
// resume chunk is paired with its most similar job chunk; the match score is
// the mean of those best similarities.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/pkg/metrics"
	"github.com/WessleyAI/career-agent/pkg/resilience"
)

// TopK is how many chunk pairs a result previews.
const TopK = 3

// Mode selects how each resume chunk finds its best job chunk.
type Mode string

const (
	// ModeANN asks the chunk store for the nearest job chunk and falls back
	// to brute force per chunk when that fails or finds nothing.
	ModeANN Mode = "ann"
	// ModeBruteForce compares every pair by cosine similarity.
	ModeBruteForce Mode = "bruteforce"
)

// ChunkSource reads stored chunks. Implemented by semantic.VectorStore,
// semantic.Lazy and localstore.Store.
type ChunkSource interface {
	Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error)
	Nearest(ctx context.Context, embedding []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error)
}

// Matcher computes a match between a resume and a job.
type Matcher interface {
	Compute(ctx context.Context, resumeID, jobID string) (*Result, error)
}

// Pair is one resume chunk with its best job chunk.
type Pair struct {
	ResumeChunk string  `json:"resume_chunk"`
	JobMatch    string  `json:"job_match"`
	Score       float64 `json:"score"`
}

// Result is a computed match. It is never mutated after Compute returns.
type Result struct {
	MatchScorePercent float64   `json:"match_score_percent"`
	ResumeChunks      int       `json:"resume_chunks"`
	JobChunks         int       `json:"job_chunks"`
	TopMatches        []Pair    `json:"top_matches"`
	ChunkScores       []float64 `json:"chunk_scores"`
}

// Options configures an Engine.
type Options struct {
	Mode Mode
	// SignedCosine reports the true maximum cosine for a resume chunk even
	// when every job chunk scores below zero. When false such a chunk
	// scores 0 with an empty job match.
	SignedCosine bool
	// Breaker guards the nearest-neighbour path. Nil uses a default breaker.
	Breaker *resilience.Breaker
	Metrics *metrics.Registry
}

func DefaultOptions() Options {
	return Options{Mode: ModeANN}
}

// Engine is safe for concurrent use; it keeps no per-request state.
type Engine struct {
	store   ChunkSource
	opts    Options
	breaker *resilience.Breaker
	met     engineMetrics
	logger  *slog.Logger
}

func New(store ChunkSource, opts Options, logger *slog.Logger) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeANN
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerOpts{
			OnStateChange: func(from, to resilience.State) {
				logger.Warn("match: nearest-neighbour breaker", "from", from.String(), "to", to.String())
			},
		})
	}
	return &Engine{
		store:   store,
		opts:    opts,
		breaker: breaker,
		met:     newEngineMetrics(opts.Metrics, opts.Mode),
		logger:  logger,
	}
}

// Compute matches resumeID against jobID. A document with no stored chunks
// yields a *domain.NotFoundError; the resume is checked first. Failures of
// the nearest-neighbour path are absorbed per chunk. Cancelling ctx abandons
// the computation and discards partial scores.
func (e *Engine) Compute(ctx context.Context, resumeID, jobID string) (*Result, error) {
	e.met.requests.Inc()
	defer e.met.duration.Since(time.Now())

	resume, err := e.store.Chunks(ctx, resumeID, domain.DocResume)
	if err != nil {
		return nil, fmt.Errorf("match: load resume: %w", err)
	}
	if len(resume) == 0 {
		return nil, domain.NotFound(domain.DocResume)
	}
	job, err := e.store.Chunks(ctx, jobID, domain.DocJob)
	if err != nil {
		return nil, fmt.Errorf("match: load job: %w", err)
	}
	if len(job) == 0 {
		return nil, domain.NotFound(domain.DocJob)
	}

	best := make([]float64, len(resume))
	pairs := make([]Pair, len(resume))
	for i, rc := range resume {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, text := e.bestMatch(ctx, rc.Embedding, jobID, job)
		best[i] = score
		pairs[i] = Pair{
			ResumeChunk: domain.Truncate(rc.Text, domain.MatchPreviewLen),
			JobMatch:    domain.Truncate(text, domain.MatchPreviewLen),
			Score:       round(score, 3),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return aggregate(best, pairs, len(job)), nil
}

// aggregate averages the unrounded best scores and ranks pairs by their
// rounded score, keeping chunk order between equal scores.
func aggregate(best []float64, pairs []Pair, jobChunks int) *Result {
	var sum float64
	scores := make([]float64, len(best))
	for i, s := range best {
		sum += s
		scores[i] = pairs[i].Score
	}

	ranked := make([]Pair, len(pairs))
	copy(ranked, pairs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > TopK {
		ranked = ranked[:TopK]
	}

	return &Result{
		MatchScorePercent: round(sum/float64(len(best))*100, 2),
		ResumeChunks:      len(best),
		JobChunks:         jobChunks,
		TopMatches:        ranked,
		ChunkScores:       scores,
	}
}

func (e *Engine) bestMatch(ctx context.Context, emb []float32, jobID string, job []domain.Chunk) (float64, string) {
	if e.opts.Mode == ModeANN {
		if out := e.nearest(ctx, emb, jobID); out.ok {
			return out.score, out.text
		}
		e.met.fallbacks.Inc()
	}
	return e.bruteForce(emb, job)
}

// annOutcome is the result of the nearest-neighbour path: ok with a score,
// or unavailable.
type annOutcome struct {
	ok    bool
	score float64
	text  string
}

func (e *Engine) nearest(ctx context.Context, emb []float32, jobID string) annOutcome {
	var (
		hits    []domain.Neighbor
		callErr error
	)
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		hits, callErr = e.store.Nearest(ctx, emb, jobID, domain.DocJob, 1)
		if callErr != nil && ctx.Err() != nil {
			// the caller went away; not a backend fault
			return nil
		}
		return callErr
	})
	if err != nil || callErr != nil {
		if err == nil {
			err = callErr
		}
		e.logger.Debug("match: nearest unavailable, using brute force", "job_id", jobID, "err", err)
		return annOutcome{}
	}
	if len(hits) == 0 {
		return annOutcome{}
	}
	return annOutcome{ok: true, score: DistanceToSimilarity(hits[0].Distance), text: hits[0].Text}
}

func (e *Engine) bruteForce(emb []float32, job []domain.Chunk) (float64, string) {
	best, text := 0.0, ""
	if e.opts.SignedCosine {
		best = math.Inf(-1)
	}
	for _, jc := range job {
		if s := Cosine(emb, jc.Embedding); s > best {
			best, text = s, jc.Text
		}
	}
	if math.IsInf(best, -1) {
		best = 0
	}
	return best, text
}
