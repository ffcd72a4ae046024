package faq

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LLM completes a free-form question. Implementations return a customer-ready text,
// including their own fallback wording on failure.
type LLM interface {
	Complete(ctx context.Context, question string) string
}

// Responder answers from rules first and asks the LLM only for questions.
type Responder struct {
	rules []Rule
	llm   LLM
}

// NewResponder creates a Responder. llm may be nil.
func NewResponder(rules []Rule, llm LLM) *Responder {
	return &Responder{rules: normalizeRules(rules), llm: llm}
}

// Answer returns the reply to question, or "" when there is nothing useful to say.
func (r *Responder) Answer(ctx context.Context, question string) string {
	normalized := Normalize(question)
	if normalized == "" {
		return ""
	}
	for _, rule := range r.rules {
		if rule.matches(normalized) {
			log.WithField("rule", rule.Name).Debug("faq: keyword rule matched")
			return rule.Answer
		}
	}
	if r.llm == nil || !IsQuestion(question) {
		return ""
	}
	return r.llm.Complete(ctx, normalized)
}
