package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

type fakeBucket struct {
	data   map[string][]byte
	getErr error
}

func newFakeBucket() *fakeBucket { return &fakeBucket{data: map[string][]byte{}} }

func (b *fakeBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	v, ok := b.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (b *fakeBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.data[key] = value
	return uint64(len(b.data)), nil
}

func (b *fakeBucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	delete(b.data, key)
	return nil
}

func TestJetStream_RoundTrip(t *testing.T) {
	b := newFakeBucket()
	clock := &fakeClock{t: time.Unix(5000, 0)}
	s := &JetStream{kv: b, now: clock.now}
	ctx := context.Background()

	if err := s.Set(ctx, "session:abc", []byte(`{"x":1}`), time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.data["session:abc"]; ok {
		t.Fatal("raw key should not be stored")
	}
	if _, ok := b.data[HashKey("session:abc")]; !ok {
		t.Fatal("expected hashed key in bucket")
	}
	v, err := s.Get(ctx, "session:abc")
	if err != nil || string(v) != `{"x":1}` {
		t.Fatalf("got %q %v", v, err)
	}

	clock.advance(time.Hour)
	if _, err := s.Get(ctx, "session:abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestJetStream_MissingAndDelete(t *testing.T) {
	b := newFakeBucket()
	s := &JetStream{kv: b, now: time.Now}
	ctx := context.Background()

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestJetStream_BackendError(t *testing.T) {
	b := newFakeBucket()
	b.getErr = errors.New("nats: timeout")
	s := &JetStream{kv: b, now: time.Now}
	_, err := s.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}
