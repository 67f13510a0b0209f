package semantic

import (
	"context"
	"errors"
	"sync"

	"github.com/WessleyAI/career-agent/engine/domain"
)

// Lazy defers connecting to Qdrant until the first call and then shares
// one VectorStore between all callers. Concurrent first callers block on a
// single initialization; a failed initialization is returned to every
// caller and not retried.
type Lazy struct {
	once  sync.Once
	open  func() (*VectorStore, error)
	store *VectorStore
	err   error
}

func NewLazy(open func() (*VectorStore, error)) *Lazy {
	return &Lazy{open: open}
}

// Get returns the shared store, opening it on first use.
func (l *Lazy) Get() (*VectorStore, error) {
	l.once.Do(func() { l.store, l.err = l.open() })
	return l.store, l.err
}

// ErrClosed is returned by Get when Close ran before the first use.
var ErrClosed = errors.New("semantic: store closed")

// Close closes the store if it was ever opened.
func (l *Lazy) Close() error {
	l.once.Do(func() { l.err = ErrClosed })
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func (l *Lazy) Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error) {
	s, err := l.Get()
	if err != nil {
		return nil, err
	}
	return s.Chunks(ctx, docID, t)
}

func (l *Lazy) Nearest(ctx context.Context, embedding []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error) {
	s, err := l.Get()
	if err != nil {
		return nil, err
	}
	return s.Nearest(ctx, embedding, docID, t, k)
}

func (l *Lazy) PutChunks(ctx context.Context, docID string, t domain.DocType, chunks []domain.Chunk) error {
	s, err := l.Get()
	if err != nil {
		return err
	}
	return s.PutChunks(ctx, docID, t, chunks)
}

func (l *Lazy) DeleteDoc(ctx context.Context, docID string, t domain.DocType) error {
	s, err := l.Get()
	if err != nil {
		return err
	}
	return s.DeleteDoc(ctx, docID, t)
}
