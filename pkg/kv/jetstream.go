package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// bucket is the slice of jetstream.KeyValue this package uses.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// envelope stores the per-entry deadline next to the value; the bucket TTL
// only bounds the longest-lived entry.
type envelope struct {
	ExpiresAt time.Time `json:"exp"`
	Value     []byte    `json:"v"`
}

// JetStream is a Store backed by a NATS JetStream key/value bucket, shared by
// every API replica.
type JetStream struct {
	kv  bucket
	now func() time.Time
}

// NewJetStream wraps an opened bucket (see natsutil.KeyValue).
func NewJetStream(kv jetstream.KeyValue) *JetStream {
	return &JetStream{kv: kv, now: time.Now}
}

func (j *JetStream) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := j.kv.Get(ctx, HashKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, fmt.Errorf("kv: decode entry: %w", err)
	}
	if !j.now().Before(env.ExpiresAt) {
		return nil, ErrNotFound
	}
	return env.Value, nil
}

func (j *JetStream) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(envelope{ExpiresAt: j.now().Add(ttl), Value: value})
	if err != nil {
		return fmt.Errorf("kv: encode entry: %w", err)
	}
	if _, err := j.kv.Put(ctx, HashKey(key), data); err != nil {
		return fmt.Errorf("kv: put: %w", err)
	}
	return nil
}

func (j *JetStream) Delete(ctx context.Context, key string) error {
	err := j.kv.Delete(ctx, HashKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}
