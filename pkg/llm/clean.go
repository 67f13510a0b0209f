package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StripFences removes a surrounding markdown code fence (```json, ```yaml or
// a bare ```) from a model reply.
func StripFences(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.Contains(s, "```") {
		return s
	}
	start := strings.Index(s, "```") + 3
	if nl := strings.IndexByte(s[start:], '\n'); nl >= 0 {
		tag := strings.TrimSpace(s[start : start+nl])
		if tag == "" || isFenceTag(tag) {
			start += nl + 1
		}
	} else if strings.HasPrefix(s[start:], "json") {
		start += 4
	}
	end := strings.LastIndex(s, "```")
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return strings.TrimSpace(s[start:end])
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// DecodeJSON strips code fences from reply and decodes it into T.
func DecodeJSON[T any](reply string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(StripFences(reply)), &v); err != nil {
		return v, fmt.Errorf("llm: decode reply: %w", err)
	}
	return v, nil
}

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe     = regexp.MustCompile(`\*(.*?)\*`)
	parenChunkRe = regexp.MustCompile(`(?i)\(Chunk\s*\d+\)`)
	chunkRe      = regexp.MustCompile(`(?i)\[?Chunk\s*\d+\]?`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText turns a markdown-ish answer into plain text: emphasis markers
// and chunk citation markers go, runs of blank lines collapse, bullets
// become dashes.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = parenChunkRe.ReplaceAllString(text, "")
	text = chunkRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = strings.ReplaceAll(text, "•", "-")
	return strings.TrimSpace(text)
}
