// Package faq answers common customer questions from keyword rules and falls back
// to a hosted language model for the rest.
package faq

import (
	"strings"
)

var arabicFolding = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// Normalize folds a question for keyword matching: trimmed, lower-cased, with alef
// variants, taa marbuta and alef maqsura unified.
func Normalize(s string) string {
	return arabicFolding.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// IsQuestion reports whether s reads as a question (Latin or Arabic question mark).
func IsQuestion(s string) bool {
	return strings.ContainsAny(s, "?؟")
}
