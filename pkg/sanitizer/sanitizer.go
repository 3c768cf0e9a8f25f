// Package sanitizer strips personally identifying strings from knowledge-base
// text before it enters any shared context.
//
// The scrubber is deliberately pattern-based: knowledge chunks come from
// reference material where PII appears in well-known shapes (emails, phone
// numbers, SSNs, dates of birth, case numbers). Free-text name detection is
// limited to a conservative honorific heuristic so clinical vocabulary is
// never mangled.
package sanitizer

import (
	"regexp"
)

// Replacement tokens inserted in place of scrubbed spans.
const (
	RedactedEmail = "[EMAIL]"
	RedactedPhone = "[PHONE]"
	RedactedSSN   = "[SSN]"
	RedactedDOB   = "[DOB]"
	RedactedCase  = "[CASE_NUMBER]"
	RedactedName  = "[NAME]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	{
		pattern:     regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		replacement: RedactedEmail,
	},
	{
		// SSN before phone: 123-45-6789 would otherwise partially match the
		// phone pattern.
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		replacement: RedactedSSN,
	},
	{
		pattern:     regexp.MustCompile(`\b(?:\+?1[\s.\-]?)?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
		replacement: RedactedPhone,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(?:dob|date of birth|born(?: on)?)[:\s]+\d{1,4}[/\-]\d{1,2}[/\-]\d{1,4}\b`),
		replacement: RedactedDOB,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\bcase\s*(?:no\.?|number|#)?[:\s]*[A-Z]{0,3}-?\d{4,}\b`),
		replacement: RedactedCase,
	},
	{
		// Honorific followed by a capitalized surname.
		pattern:     regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`),
		replacement: RedactedName,
	},
}

// Scrub replaces identifying spans in text with redaction tokens.
func Scrub(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// Clean reports whether text contains no identifying spans.
func Clean(text string) bool {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return false
		}
	}
	return true
}
