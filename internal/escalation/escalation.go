package escalation

import (
	"strings"
	"unicode/utf8"
)

const DefaultGenericAnswerChars = 60

// MinRetrievedForConfidence is the retrieval count below which a generic
// answer is treated as low confidence.
const MinRetrievedForConfidence = 2

var defaultKeywords = []string{
	// dissatisfaction
	"unhappy", "dissatisfied", "not satisfied", "disappointed", "terrible",
	"worst", "angry", "frustrated", "scam", "fraud",
	// billing and payment
	"refund", "money back", "charged", "charge", "billing", "payment",
	"paid", "invoice", "overcharged",
	// cancellation policy
	"cancellation", "cancel",
	// support and complaints
	"complaint", "complain", "support", "human", "agent", "speak to",
	"talk to someone", "manager",
}

var defaultHedges = []string{
	"i don't know", "i do not know", "i'm not sure", "i am not sure",
	"unable to determine", "no information", "not enough information",
	"cannot find", "can't find", "couldn't find",
}

type Rules struct {
	Keywords           []string
	Hedges             []string
	GenericAnswerChars int
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	return &Rules{
		Keywords:           append([]string(nil), defaultKeywords...),
		Hedges:             append([]string(nil), defaultHedges...),
		GenericAnswerChars: DefaultGenericAnswerChars,
	}
}

// WithExtra returns a copy of r extended with additional keywords and hedges.
func (r *Rules) WithExtra(keywords, hedges []string) *Rules {
	out := &Rules{
		Keywords:           append(append([]string(nil), r.Keywords...), normalizeAll(keywords)...),
		Hedges:             append(append([]string(nil), r.Hedges...), normalizeAll(hedges)...),
		GenericAnswerChars: r.GenericAnswerChars,
	}
	return out
}

var defaultRules = DefaultRules()

// ShouldEscalate applies the default rules.
func ShouldEscalate(question, answer string, retrievedCount int) bool {
	return defaultRules.ShouldEscalate(question, answer, retrievedCount)
}

// ShouldEscalate reports whether the conversation needs a human. A keyword
// in either the question or the answer always escalates; otherwise a generic
// answer backed by fewer than two passages does.
func (r *Rules) ShouldEscalate(question, answer string, retrievedCount int) bool {
	q := normalize(question)
	a := normalize(answer)
	if containsAny(q, r.Keywords) || containsAny(a, r.Keywords) {
		return true
	}
	if retrievedCount >= MinRetrievedForConfidence {
		return false
	}
	return r.isGeneric(a)
}

func (r *Rules) isGeneric(answer string) bool {
	limit := r.GenericAnswerChars
	if limit <= 0 {
		limit = DefaultGenericAnswerChars
	}
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < limit {
		return true
	}
	return containsAny(answer, r.Hedges)
}

var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

func normalize(s string) string {
	return strings.ToLower(apostropheReplacer.Replace(s))
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(normalize(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
