// Package extract pulls plain text out of uploaded resumes and pasted job
// postings.
package extract

import (
	"errors"
	"strings"

	"github.com/WessleyAI/career-agent/engine/domain"
)

// ErrNoText is returned when a document yields no readable text.
var ErrNoText = errors.New("extract: no text found")

// Format names how a job description was submitted.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// JobText returns normalized text for a job description in the given
// format. An empty format means plain text.
func JobText(format Format, body string) (string, error) {
	var text string
	switch format {
	case "", FormatText:
		text = Normalize(body)
	case FormatHTML:
		var err error
		if text, err = HTML(body); err != nil {
			return "", err
		}
	default:
		return "", domain.NewValidationError("format", string(format), errors.New("format must be text or html"))
	}
	if text == "" {
		return "", domain.NewValidationError("description", "", domain.ErrEmptyText)
	}
	return text, nil
}

// Normalize collapses runs of spaces and tabs inside each line and drops
// blank lines.
func Normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
