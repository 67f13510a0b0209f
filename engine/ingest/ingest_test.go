package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/nats-io/nats.go"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestSplitWords_Windows(t *testing.T) {
	tests := []struct {
		name  string
		words int
		want  []int
	}{
		{"empty", 0, nil},
		{"short", 5, []int{5}},
		{"exact", 200, []int{200}},
		{"one over", 201, []int{200, 1}},
		{"many", 650, []int{200, 200, 200, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitWords(words(tt.words), WindowWords)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d windows, got %d", len(tt.want), len(got))
			}
			for i, w := range got {
				if n := len(strings.Fields(w)); n != tt.want[i] {
					t.Fatalf("window %d: expected %d words, got %d", i, tt.want[i], n)
				}
			}
		})
	}
}

func TestSplitWords_NoOverlapAndNormalizedSpace(t *testing.T) {
	got := splitWords("a  b\n\tc d   e", 2)
	want := []string{"a b", "c d", "e"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q", got)
	}
}

func TestChunkText_IndexesAndPreviews(t *testing.T) {
	chunks := chunkText(words(450), WindowWords)
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if len([]rune(c.Preview)) > domain.StoredPreviewLen || !strings.HasPrefix(c.Text, c.Preview) {
			t.Fatalf("bad preview %q", c.Preview)
		}
	}
}

type fakeEmbedder struct {
	batchCalls int
	err        error
	short      bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeWriter struct {
	ops    []string
	stored map[string][]domain.Chunk
	putErr error
}

func (f *fakeWriter) DeleteDoc(_ context.Context, docID string, t domain.DocType) error {
	f.ops = append(f.ops, "delete:"+string(t)+"/"+docID)
	delete(f.stored, string(t)+"/"+docID)
	return nil
}

func (f *fakeWriter) PutChunks(_ context.Context, docID string, t domain.DocType, chunks []domain.Chunk) error {
	f.ops = append(f.ops, "put:"+string(t)+"/"+docID)
	if f.putErr != nil {
		return f.putErr
	}
	if f.stored == nil {
		f.stored = map[string][]domain.Chunk{}
	}
	f.stored[string(t)+"/"+docID] = chunks
	return nil
}

func TestService_Ingest(t *testing.T) {
	emb := &fakeEmbedder{}
	w := &fakeWriter{}
	var events []Ingested
	svc := New(Deps{
		Embedder: emb,
		Store:    w,
		Notify: func(_ context.Context, ev Ingested) error {
			events = append(events, ev)
			return nil
		},
	})

	ev, err := svc.Ingest(context.Background(), Request{DocID: "r-1", Type: domain.DocResume, Text: words(250)})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Chunks != 2 || ev.DocID != "r-1" || ev.Type != domain.DocResume {
		t.Fatalf("unexpected event %+v", ev)
	}
	if strings.Join(w.ops, ",") != "delete:resume/r-1,put:resume/r-1" {
		t.Fatalf("store order: %v", w.ops)
	}
	stored := w.stored["resume/r-1"]
	if len(stored) != 2 || stored[1].Index != 1 || len(stored[0].Embedding) != 2 {
		t.Fatalf("stored chunks: %+v", stored)
	}
	if len(events) != 1 || events[0] != ev {
		t.Fatalf("events: %+v", events)
	}
	if emb.batchCalls != 1 {
		t.Fatalf("expected one batch call, got %d", emb.batchCalls)
	}
}

func TestService_IngestValidation(t *testing.T) {
	svc := New(Deps{Embedder: &fakeEmbedder{}, Store: &fakeWriter{}})
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"bad id", Request{DocID: "../etc", Type: domain.DocJob, Text: "x"}, domain.ErrInvalidID},
		{"bad type", Request{DocID: "a", Type: "cover", Text: "x"}, domain.ErrInvalidDocType},
		{"blank", Request{DocID: "a", Type: domain.DocJob, Text: " \n "}, domain.ErrEmptyText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_IngestFailures(t *testing.T) {
	boom := errors.New("ollama down")
	svc := New(Deps{Embedder: &fakeEmbedder{err: boom}, Store: &fakeWriter{}})
	if _, err := svc.Ingest(context.Background(), Request{DocID: "a", Type: domain.DocJob, Text: "go"}); !errors.Is(err, boom) {
		t.Fatalf("expected embed error, got %v", err)
	}

	svc = New(Deps{Embedder: &fakeEmbedder{short: true}, Store: &fakeWriter{}})
	if _, err := svc.Ingest(context.Background(), Request{DocID: "a", Type: domain.DocJob, Text: "go"}); err == nil {
		t.Fatal("expected count mismatch error")
	}

	w := &fakeWriter{putErr: errors.New("disk full")}
	notified := false
	svc = New(Deps{Embedder: &fakeEmbedder{}, Store: w, Notify: func(context.Context, Ingested) error {
		notified = true
		return nil
	}})
	if _, err := svc.Ingest(context.Background(), Request{DocID: "a", Type: domain.DocJob, Text: "go"}); err == nil {
		t.Fatal("expected store error")
	}
	if notified {
		t.Fatal("failed ingestion must not be announced")
	}
}

func TestService_NotifyErrorIsNotFatal(t *testing.T) {
	svc := New(Deps{Embedder: &fakeEmbedder{}, Store: &fakeWriter{}, Notify: func(context.Context, Ingested) error {
		return errors.New("nats down")
	}})
	if _, err := svc.Ingest(context.Background(), Request{DocID: "a", Type: domain.DocJob, Text: "go"}); err != nil {
		t.Fatalf("notify failure should be logged only, got %v", err)
	}
}

type capturePublisher struct{ msgs []*nats.Msg }

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func TestConsumer_RetriesThenDLQ(t *testing.T) {
	pub := &capturePublisher{}
	c := &consumer{
		svc: New(Deps{Embedder: &fakeEmbedder{err: errors.New("down")}, Store: &fakeWriter{}}),
		pub: pub,
		log: slog.Default(),
	}
	req := Request{DocID: "j1", Type: domain.DocJob, Text: "go"}

	c.handle(context.Background(), req, nats.NewMsg(RequestSubject))
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != RequestSubject || pub.msgs[0].Header.Get(retryHeader) != "1" {
		t.Fatalf("expected a retry with count 1, got %+v", pub.msgs)
	}

	last := nats.NewMsg(RequestSubject)
	last.Header.Set(retryHeader, "2")
	c.handle(context.Background(), req, last)
	if len(pub.msgs) != 2 || pub.msgs[1].Subject != DLQSubject {
		t.Fatalf("expected DLQ after %d attempts, got %+v", MaxRetries, pub.msgs[1])
	}
	var dlq dlqMessage
	if err := json.Unmarshal(pub.msgs[1].Data, &dlq); err != nil {
		t.Fatal(err)
	}
	if dlq.Retries != MaxRetries || dlq.Request.DocID != "j1" || dlq.Error == "" {
		t.Fatalf("dlq payload %+v", dlq)
	}
}

func TestConsumer_SuccessPublishesNothing(t *testing.T) {
	pub := &capturePublisher{}
	c := &consumer{
		svc: New(Deps{Embedder: &fakeEmbedder{}, Store: &fakeWriter{}}),
		pub: pub,
		log: slog.Default(),
	}
	c.handle(context.Background(), Request{DocID: "j1", Type: domain.DocJob, Text: "go"}, nats.NewMsg(RequestSubject))
	if len(pub.msgs) != 0 {
		t.Fatalf("unexpected messages %+v", pub.msgs)
	}
}
