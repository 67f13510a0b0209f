package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Injection patterns: query-language fragments that should never reach a
// prompt or a store filter.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const (
	minQuestionLength = 5
	maxQuestionLength = 2000
)

// ValidateID checks a document or session identifier.
func ValidateID(field, id string) error {
	if !idRegex.MatchString(id) {
		return NewValidationError(field, id, ErrInvalidID)
	}
	return nil
}

// ValidateDocType accepts "resume" and "job".
func ValidateDocType(t DocType) error {
	if !t.Valid() {
		return NewValidationError("type", string(t), ErrInvalidDocType)
	}
	return nil
}

// ValidateText rejects blank document text.
func ValidateText(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError(field, "", ErrEmptyText)
	}
	return nil
}

// ValidateQuestion checks free text sent to the LLM: a minimum length, a
// maximum length and no injection fragments.
func ValidateQuestion(field, text string) error {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < minQuestionLength {
		return NewValidationError(field, text, ErrQuestionTooShort)
	}
	if n > maxQuestionLength {
		return NewValidationError(field, Truncate(text, 40), ErrQuestionTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError(field, text, ErrQueryInjection)
		}
	}
	return nil
}
