// Package domain defines the documents, chunks and errors shared by the
// ingestion, matching and coaching packages, and validates input at their
// entry points.
package domain

import "unicode/utf8"

// DocType tags a stored document.
type DocType string

const (
	DocResume DocType = "resume"
	DocJob    DocType = "job"
)

func (t DocType) Valid() bool { return t == DocResume || t == DocJob }

// Chunk is one word window of a document's text with its embedding.
// Chunks are immutable once stored.
type Chunk struct {
	Index     int       `json:"chunk_index"`
	Text      string    `json:"text"`
	Preview   string    `json:"preview"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Neighbor is one hit of a nearest-neighbour query.
type Neighbor struct {
	Index    int     `json:"chunk_index"`
	Text     string  `json:"text"`
	Preview  string  `json:"preview"`
	Distance float64 `json:"distance"`
}

// Document is an ingested resume or job description.
type Document struct {
	ID     string  `json:"doc_id"`
	Type   DocType `json:"type"`
	Chunks []Chunk `json:"chunks"`
}

// Preview lengths used across the API.
const (
	StoredPreviewLen = 120
	MatchPreviewLen  = 160
	ListPreviewLen   = 150
)

// Truncate returns the first n characters of s, never splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
