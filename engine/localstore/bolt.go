// Package localstore is a single-file chunk store on bbolt for deployments
// without a Qdrant backend. Nearest is an exact scan, so matching against it
// gives the same selection as brute force.
package localstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
	"go.etcd.io/bbolt"
)

var bucketDocs = []byte("docs")

const bboltTimeout = 2 * time.Second

// Store keeps each document's chunks in a nested bucket keyed
// "<type>/<doc_id>", one entry per chunk keyed by big-endian index.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: bboltTimeout})
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func docKey(docID string, t domain.DocType) []byte {
	return []byte(string(t) + "/" + docID)
}

func indexKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// PutChunks replaces the stored chunks of (docID, t).
func (s *Store) PutChunks(_ context.Context, docID string, t domain.DocType, chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		key := docKey(docID, t)
		if err := docs.DeleteBucket(key); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := docs.CreateBucket(key)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if c.Preview == "" {
				c.Preview = domain.Truncate(c.Text, domain.StoredPreviewLen)
			}
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := b.Put(indexKey(c.Index), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteDoc(_ context.Context, docID string, t domain.DocType) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketDocs).DeleteBucket(docKey(docID, t))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Chunks returns the chunks of (docID, t) in index order; none when the
// document was never stored.
func (s *Store) Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs).Bucket(docKey(docID, t))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c domain.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: chunks %s %s: %w", t, docID, err)
	}
	return out, nil
}

// Nearest scans every chunk of (docID, t) and returns the k closest by
// Euclidean distance, ties kept in index order.
func (s *Store) Nearest(ctx context.Context, embedding []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error) {
	chunks, err := s.Chunks(ctx, docID, t)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.Neighbor, 0, len(chunks))
	for _, c := range chunks {
		d, ok := euclid(embedding, c.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, domain.Neighbor{Index: c.Index, Text: c.Text, Preview: c.Preview, Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// euclid reports false for vectors of different length.
func euclid(a, b []float32) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), true
}
