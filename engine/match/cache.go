package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/career-agent/pkg/kv"
	"github.com/WessleyAI/career-agent/pkg/metrics"
)

// DefaultCacheTTL is how long a computed match is served from cache.
const DefaultCacheTTL = 15 * time.Minute

// CachedEngine serves recent results from a kv.Store. Entries are whole
// JSON snapshots replaced on recompute; concurrent computations of the same
// pair race and the last write wins. Cache failures never fail a match.
type CachedEngine struct {
	next   Matcher
	store  kv.Store
	ttl    time.Duration
	hits   *metrics.Counter
	logger *slog.Logger
}

// NewCached wraps next. reg may be nil.
func NewCached(next Matcher, store kv.Store, ttl time.Duration, reg *metrics.Registry, logger *slog.Logger) *CachedEngine {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if reg == nil {
		reg = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEngine{
		next:   next,
		store:  store,
		ttl:    ttl,
		hits:   reg.Counter("match_cache_hits_total", "Match results served from cache."),
		logger: logger,
	}
}

// cacheKey is the key for the ordered pair (resumeID, jobID) under the
// resume's current generation.
func cacheKey(resumeID, jobID, gen string) string {
	return kv.Key("match", kv.HashKey(resumeID+"\x1f"+jobID+"\x1f"+gen))
}

func generationKey(resumeID string) string {
	return kv.Key("matchgen", kv.HashKey(resumeID))
}

// generation returns the resume's cache generation, "" before the first
// Invalidate or when the store cannot be read.
func (c *CachedEngine) generation(ctx context.Context, resumeID string) string {
	raw, err := c.store.Get(ctx, generationKey(resumeID))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.Warn("match cache: generation read failed", "resume_id", resumeID, "err", err)
		}
		return ""
	}
	return string(raw)
}

// Invalidate drops every cached match of resumeID by moving it to a new
// generation. The generation outlives the entries it hides by keeping the
// cache TTL.
func (c *CachedEngine) Invalidate(ctx context.Context, resumeID string) error {
	if err := c.store.Set(ctx, generationKey(resumeID), []byte(uuid.NewString()), c.ttl); err != nil {
		return fmt.Errorf("match cache: invalidate %s: %w", resumeID, err)
	}
	return nil
}

func (c *CachedEngine) Compute(ctx context.Context, resumeID, jobID string) (*Result, error) {
	key := cacheKey(resumeID, jobID, c.generation(ctx, resumeID))

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var res Result
		jerr := json.Unmarshal(raw, &res)
		if jerr == nil {
			c.hits.Inc()
			return &res, nil
		}
		c.logger.Warn("match cache: corrupt entry, recomputing", "resume_id", resumeID, "job_id", jobID, "err", jerr)
	case !errors.Is(err, kv.ErrNotFound):
		c.logger.Warn("match cache: read failed", "err", err)
	}

	res, err := c.next.Compute(ctx, resumeID, jobID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(res)
	if err == nil {
		err = c.store.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("match cache: write failed", "err", err)
	}
	return res, nil
}
