package semantic

import (
	"fmt"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/google/uuid"
)

// Payload keys stored with every chunk point.
const (
	keyContent = "content"
	keyDocID   = "doc_id"
	keyType    = "type"
	keyIndex   = "chunk_index"
	keyPreview = "preview"
)

// VectorRecord is a single point to store.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// pointNamespace scopes chunk point ids.
var pointNamespace = uuid.MustParse("3b0f6a57-0c57-4d2e-9b43-6d4f1a5c2e10")

// PointID is the deterministic id of a document chunk, so re-ingesting a
// document overwrites its points instead of duplicating them.
func PointID(t domain.DocType, docID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s/%s/%d", t, docID, index))).String()
}

// ChunkRecords builds the points for a document's chunks.
func ChunkRecords(docID string, t domain.DocType, chunks []domain.Chunk) []VectorRecord {
	out := make([]VectorRecord, len(chunks))
	for i, c := range chunks {
		preview := c.Preview
		if preview == "" {
			preview = domain.Truncate(c.Text, domain.StoredPreviewLen)
		}
		out[i] = VectorRecord{
			ID:        PointID(t, docID, c.Index),
			Embedding: c.Embedding,
			Payload: map[string]any{
				keyContent: c.Text,
				keyDocID:   docID,
				keyType:    string(t),
				keyIndex:   c.Index,
				keyPreview: preview,
			},
		}
	}
	return out
}
