// Package embed turns text into vectors using a hosted or local embedding
// model.
package embed

import (
	"context"
	"errors"

	"github.com/WessleyAI/career-agent/pkg/fn"
)

// BatchSize caps how many texts go to a provider in one call.
const BatchSize = 100

// ErrDimension is returned when a provider answers with a different number
// of vectors than texts sent.
var ErrDimension = errors.New("embed: vector count mismatch")

// Embedder produces one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// batches splits texts into groups of at most BatchSize.
func batches(texts []string) [][]string { return fn.Chunk(texts, BatchSize) }
