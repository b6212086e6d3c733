// Package transcript corrects misheard domain nouns in finalized speech
// transcripts before they reach the LLM.
//
// Raw STT output garbles freight vocabulary: city names, broker company
// names, and truck-stop brands are frequently misrecognized. The [Corrector]
// walks the transcript with n-gram windows sized to the longest known entity
// and substitutes phonetically-matched vocabulary entries, longest match
// first, so "Apex Logistic's" becomes "Apex Logistics" and "jolly at"
// becomes "Joliet". Each substitution is reported as a [Correction] so
// callers can audit or display what changed.
package transcript

import (
	"strings"

	"github.com/haulvox/haulvox/internal/transcript/phonetic"
)

// Correction captures a single substitution made by the corrector.
type Correction struct {
	// Original is the text as produced by the STT provider.
	Original string

	// Corrected is the vocabulary entry substituted for it.
	Corrected string

	// Confidence is the similarity score of the match (0.0-1.0).
	Confidence float64
}

// Corrector substitutes known domain nouns for their misheard forms.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	matcher  *phonetic.Matcher
	entities []string
	maxWords int
}

// NewCorrector returns a corrector over the given vocabulary. entities holds
// the proper nouns the session should recognise: cities on the route, broker
// names from the load board, truck-stop brands. An empty vocabulary yields a
// corrector that passes text through unchanged.
func NewCorrector(entities []string, opts ...phonetic.Option) *Corrector {
	maxWords := 0
	for _, e := range entities {
		if n := len(strings.Fields(e)); n > maxWords {
			maxWords = n
		}
	}
	return &Corrector{
		matcher:  phonetic.New(opts...),
		entities: entities,
		maxWords: maxWords,
	}
}

// Correct returns text with recognised vocabulary substituted in, plus the
// list of substitutions applied. Exact-case matches are left untouched.
//
// The scan tries n-gram windows from the longest entity word count down to
// one at each position, accepting the longest match so multi-word entities
// win over partial single-word ones.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if c.maxWords == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			entity, conf, ok := c.matcher.Match(window, c.entities)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(entity)...)
			if window != entity {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  entity,
					Confidence: conf,
				})
			}
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}
