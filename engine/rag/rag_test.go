package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/pkg/llm"
)

type mockEmbedder struct{ err error }

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, m.err
}

func (m *mockEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) { return nil, nil }

type mockSearcher struct {
	hits   []domain.Neighbor
	err    error
	gotDoc string
	gotTyp domain.DocType
	gotK   int
}

func (m *mockSearcher) Nearest(_ context.Context, _ []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error) {
	m.gotDoc, m.gotTyp, m.gotK = docID, t, k
	return m.hits, m.err
}

type mockLLM struct {
	req   llm.Request
	reply string
	err   error
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	m.req = req
	return m.reply, m.err
}

func TestAsk(t *testing.T) {
	search := &mockSearcher{hits: []domain.Neighbor{
		{Index: 2, Text: "Built REST APIs in Go", Preview: "Built REST APIs", Distance: 0},
		{Index: 0, Text: "Python backend engineer", Distance: 1},
	}}
	model := &mockLLM{reply: "**Yes**, you built APIs [Chunk 2].\n\n\n\n• Go"}
	svc := New(&mockEmbedder{}, model, search, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "r1", "Have I built APIs?")
	if err != nil {
		t.Fatal(err)
	}
	if search.gotDoc != "r1" || search.gotTyp != domain.DocResume || search.gotK != 3 {
		t.Fatalf("search scoped wrong: %s %s %d", search.gotDoc, search.gotTyp, search.gotK)
	}
	if ans.Query != "Have I built APIs?" {
		t.Fatalf("query: %q", ans.Query)
	}
	if ans.Result != "Yes, you built APIs .\n\n- Go" {
		t.Fatalf("result not cleaned: %q", ans.Result)
	}
	want := []string{"Chunk 2: Built REST APIs", "Chunk 0: Python backend engineer"}
	if strings.Join(ans.Citations, "|") != strings.Join(want, "|") {
		t.Fatalf("citations: %v", ans.Citations)
	}
	if !strings.Contains(model.req.Prompt, "[Chunk 2]\nBuilt REST APIs in Go") || !strings.Contains(model.req.Prompt, "Have I built APIs?") {
		t.Fatalf("prompt:\n%s", model.req.Prompt)
	}
	if model.req.Temperature != 0.3 || model.req.System == "" {
		t.Fatalf("request: %+v", model.req)
	}
}

func TestAsk_NoChunks(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockLLM{}, &mockSearcher{}, DefaultOptions(), nil)
	_, err := svc.Ask(context.Background(), "missing", "What do I know?")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Which != "resume" {
		t.Fatalf("expected resume not found, got %v", err)
	}
}

func TestAsk_Errors(t *testing.T) {
	boom := errors.New("boom")
	hits := []domain.Neighbor{{Text: "x"}}

	if _, err := New(&mockEmbedder{err: boom}, &mockLLM{}, &mockSearcher{hits: hits}, DefaultOptions(), nil).
		Ask(context.Background(), "r", "question?"); !errors.Is(err, boom) {
		t.Fatalf("embed error: %v", err)
	}
	if _, err := New(&mockEmbedder{}, &mockLLM{}, &mockSearcher{err: boom}, DefaultOptions(), nil).
		Ask(context.Background(), "r", "question?"); !errors.Is(err, boom) {
		t.Fatalf("search error: %v", err)
	}
	if _, err := New(&mockEmbedder{}, &mockLLM{err: boom}, &mockSearcher{hits: hits}, DefaultOptions(), nil).
		Ask(context.Background(), "r", "question?"); !errors.Is(err, boom) {
		t.Fatalf("llm error: %v", err)
	}
}

func TestSearch_Scores(t *testing.T) {
	search := &mockSearcher{hits: []domain.Neighbor{{Index: 1, Text: "a", Distance: 0.5}}}
	hits, err := New(&mockEmbedder{}, &mockLLM{}, search, Options{}, nil).
		Search(context.Background(), "job requirements", "j", domain.DocJob, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Score != 0.667 || hits[0].Preview != "a" {
		t.Fatalf("hits: %+v", hits)
	}
	if search.gotTyp != domain.DocJob || search.gotK != 5 {
		t.Fatalf("search args: %s %d", search.gotTyp, search.gotK)
	}
}
