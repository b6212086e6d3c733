// Package phonetic matches misheard words against a known vocabulary using
// Double Metaphone phonetic encoding ranked by Jaro-Winkler similarity.
//
// Freight proper nouns fare badly in speech recognition: "Joliet" comes back
// as "Jolly at", "Schneider" as "snyder", "Natchitoches" as almost anything.
// The matcher first filters the vocabulary to phonetic candidates (any shared
// Double Metaphone code between input and entity tokens), then picks the
// candidate with the highest Jaro-Winkler score above the phonetic threshold.
// When nothing overlaps phonetically, a stricter pure-similarity pass catches
// plain misspellings.
//
// Multi-word entities ("Oklahoma City", "Apex Logistics") are supported: codes
// are computed per token and the ranking considers full-string, concatenated,
// and best-pairwise-token similarity.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entity to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher resolves words to known vocabulary entries by pronunciation.
// It is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the entity most phonetically similar to word. word may be a
// single token or a space-separated n-gram.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, entities []string) (corrected string, confidence float64, matched bool) {
	if len(entities) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := tokenCodes(wordTokens)

	var (
		bestEntity   string
		bestScore    float64
		bestPhonetic bool
	)

	for _, entity := range entities {
		entityLower := strings.ToLower(strings.TrimSpace(entity))
		if entityLower == "" {
			continue
		}
		entityTokens := strings.Fields(entityLower)

		score := similarity(wordTokens, entityTokens, wordLower, entityLower)

		if codesOverlap(inputCodes, tokenCodes(entityTokens)) {
			// Phonetic candidates always outrank fuzzy-only ones.
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestEntity, bestScore, bestPhonetic = entity, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			bestEntity, bestScore = entity, score
		}
	}

	if bestEntity == "" {
		return word, 0, false
	}
	return bestEntity, bestScore, true
}

// tokenCodes returns the union of Double Metaphone codes for the tokens.
// Empty codes are excluded.
func tokenCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity computes the highest Jaro-Winkler score between input and entity
// across three comparisons: full strings, space-stripped strings, and the
// best pairwise token match. The pairwise pass handles the common case where
// one spoken word lines up with one entity word.
func similarity(inputTokens, entityTokens []string, inputFull, entityFull string) float64 {
	score := matchr.JaroWinkler(inputFull, entityFull, false)

	if len(inputTokens) > 1 || len(entityTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(entityTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	for _, it := range inputTokens {
		for _, et := range entityTokens {
			if s := matchr.JaroWinkler(it, et, false); s > score {
				score = s
			}
		}
	}

	return score
}
