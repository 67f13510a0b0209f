package ingest

import "github.com/WessleyAI/career-agent/engine/domain"

// Request asks for a document's text to be chunked, embedded and stored.
type Request struct {
	DocID string         `json:"doc_id"`
	Type  domain.DocType `json:"type"`
	Text  string         `json:"text"`
}

// ChunkedDoc is a request split into ordered word windows.
type ChunkedDoc struct {
	Request
	Chunks []domain.Chunk
}

// EmbeddedDoc carries one embedding per chunk, in chunk order.
type EmbeddedDoc struct {
	ChunkedDoc
}

// Ingested is published on IngestedSubject once a document is stored.
type Ingested struct {
	DocID  string         `json:"doc_id"`
	Type   domain.DocType `json:"type"`
	Chunks int            `json:"chunks"`
}
