// Package ingest turns document text into stored, embedded chunks through
// validation, chunking, embedding and storage stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/pkg/embed"
	"github.com/WessleyAI/career-agent/pkg/fn"
	"github.com/WessleyAI/career-agent/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// RequestSubject carries ingest requests for the background worker.
	RequestSubject = "ingest.requests"
	// DLQSubject receives requests that failed MaxRetries times.
	DLQSubject = "ingest.requests.dlq"
	// IngestedSubject announces stored documents.
	IngestedSubject = "documents.ingested"
	// MaxRetries before a request goes to the DLQ.
	MaxRetries = 3
)

// Writer stores chunks. Implemented by semantic.VectorStore, semantic.Lazy
// and localstore.Store.
type Writer interface {
	DeleteDoc(ctx context.Context, docID string, t domain.DocType) error
	PutChunks(ctx context.Context, docID string, t domain.DocType, chunks []domain.Chunk) error
}

// Deps holds the collaborators of the ingestion pipeline.
type Deps struct {
	Embedder embed.Embedder
	Store    Writer
	// Notify, when set, is called after a document is stored. Its error is
	// logged and does not fail the ingestion.
	Notify func(ctx context.Context, ev Ingested) error
	// WindowWords overrides the chunk size; zero means WindowWords.
	WindowWords int
	Logger      *slog.Logger
}

// NATSNotifier publishes Ingested events on IngestedSubject.
func NATSNotifier(nc *nats.Conn) func(context.Context, Ingested) error {
	return func(ctx context.Context, ev Ingested) error {
		return natsutil.Publish(ctx, nc, IngestedSubject, ev)
	}
}

// --- Pipeline Stages ---

// Validate checks ids, type and that there is text to chunk.
var Validate fn.Stage[Request, Request] = func(_ context.Context, req Request) fn.Result[Request] {
	if err := domain.ValidateID("doc_id", req.DocID); err != nil {
		return fn.Err[Request](err)
	}
	if err := domain.ValidateDocType(req.Type); err != nil {
		return fn.Err[Request](err)
	}
	if err := domain.ValidateText("text", req.Text); err != nil {
		return fn.Err[Request](err)
	}
	return fn.Ok(req)
}

// NewChunk splits the request text into windows of size words.
func NewChunk(size int) fn.Stage[Request, ChunkedDoc] {
	return func(_ context.Context, req Request) fn.Result[ChunkedDoc] {
		chunks := chunkText(req.Text, size)
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](domain.NewValidationError("text", "", domain.ErrEmptyText))
		}
		return fn.Ok(ChunkedDoc{Request: req, Chunks: chunks})
	}
}

// NewEmbed embeds every chunk; the embedder batches the calls.
func NewEmbed(e embed.Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Text })
		vecs, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed: %w", err))
		}
		if len(vecs) != len(doc.Chunks) {
			return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed: got %d embeddings for %d chunks", len(vecs), len(doc.Chunks)))
		}
		chunks := make([]domain.Chunk, len(doc.Chunks))
		for i, c := range doc.Chunks {
			c.Embedding = vecs[i]
			chunks[i] = c
		}
		doc.Chunks = chunks
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc})
	}
}

// NewStore replaces whatever was stored for (doc_id, type) with the new
// chunks.
func NewStore(w Writer) fn.Stage[EmbeddedDoc, Ingested] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Ingested] {
		if err := w.DeleteDoc(ctx, doc.DocID, doc.Type); err != nil {
			return fn.Err[Ingested](fmt.Errorf("ingest: delete previous: %w", err))
		}
		if err := w.PutChunks(ctx, doc.DocID, doc.Type, doc.Chunks); err != nil {
			return fn.Err[Ingested](fmt.Errorf("ingest: store: %w", err))
		}
		return fn.Ok(Ingested{DocID: doc.DocID, Type: doc.Type, Chunks: len(doc.Chunks)})
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes Validate → Chunk → Embed → Store with logging taps.
func NewPipeline(deps Deps) fn.Stage[Request, Ingested] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[Request]("validate", log), Validate)
	chunked := fn.Then(validated, fn.Then(LoggedTap[Request]("chunk", log), NewChunk(deps.WindowWords)))
	embedded := fn.Then(chunked, fn.TracedStage("ingest.embed", fn.Then(LoggedTap[ChunkedDoc]("embed", log), NewEmbed(deps.Embedder))))
	return fn.Then(embedded, fn.TracedStage("ingest.store", fn.Then(LoggedTap[EmbeddedDoc]("store", log), NewStore(deps.Store))))
}

// Service runs the pipeline and announces stored documents.
type Service struct {
	run    fn.Stage[Request, Ingested]
	notify func(context.Context, Ingested) error
	log    *slog.Logger
}

func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{run: NewPipeline(deps), notify: deps.Notify, log: log}
}

// Ingest chunks, embeds and stores req. Validation failures are returned as
// *domain.ValidationError.
func (s *Service) Ingest(ctx context.Context, req Request) (Ingested, error) {
	ev, err := s.run(ctx, req).Unwrap()
	if err != nil {
		return Ingested{}, err
	}
	s.log.Info("ingest: stored", "doc_id", ev.DocID, "type", ev.Type, "chunks", ev.Chunks)
	if s.notify != nil {
		if err := s.notify(ctx, ev); err != nil {
			s.log.Warn("ingest: notify failed", "doc_id", ev.DocID, "err", err)
		}
	}
	return ev, nil
}
