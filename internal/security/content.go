package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)<\s*object`),
	regexp.MustCompile(`(?i)<\s*embed`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)(\bor\b|\band\b)\s+['"]?\d+['"]?\s*=\s*['"]?\d+`),
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i);\s*drop\s+table`),
}

// profanityList is intentionally small and explicit; it is fixed, not
// learned, and matched on whole-word boundaries.
var profanityList = []string{"damn", "hell", "crap"}

var profanityPattern = buildProfanityPattern(profanityList)

func buildProfanityPattern(words []string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// ValidationResult carries the outcome of ValidateMessage.
type ValidationResult struct {
	Valid    bool
	Reason   string
	Err      error
	Filtered string
}

// ValidateMessage rejects empty or over-length strings and any string
// matching a dangerous-pattern substring, then returns the input with
// profanity masked. maxLength is the caller's configured message-length
// ceiling (spec.md's MAX_MESSAGE_LENGTH).
func ValidateMessage(s string, maxLength int) ValidationResult {
	if s == "" {
		return ValidationResult{Valid: false, Reason: "message is empty", Err: ErrInvalidMessage}
	}
	if utf8.RuneCountInString(s) > maxLength {
		return ValidationResult{Valid: false, Reason: "message exceeds maximum length", Err: ErrInvalidMessage}
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(s) {
			return ValidationResult{Valid: false, Reason: "message contains a disallowed pattern", Err: ErrInvalidMessage}
		}
	}
	return ValidationResult{Valid: true, Filtered: FilterProfanity(s)}
}

// FilterProfanity replaces every whole-word profanity match with
// asterisks of equal length. Idempotent: filtering already-masked text
// is a no-op, since "****" matches no profanity word.
func FilterProfanity(s string) string {
	return profanityPattern.ReplaceAllStringFunc(s, func(match string) string {
		return strings.Repeat("*", len(match))
	})
}
