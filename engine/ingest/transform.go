package ingest

import (
	"strings"

	"github.com/WessleyAI/career-agent/engine/domain"
)

// WindowWords is the number of words per chunk.
const WindowWords = 200

// splitWords cuts text into non-overlapping windows of size words. Words are
// whitespace separated and rejoined with single spaces; the last window may
// be shorter.
func splitWords(text string, size int) []string {
	if size <= 0 {
		size = WindowWords
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

// chunkText builds indexed chunks with stored previews.
func chunkText(text string, size int) []domain.Chunk {
	windows := splitWords(text, size)
	chunks := make([]domain.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = domain.Chunk{
			Index:   i,
			Text:    w,
			Preview: domain.Truncate(w, domain.StoredPreviewLen),
		}
	}
	return chunks
}
