package tts

import "strings"

// DefaultTransportLimit is the per-message character ceiling for constrained
// synthesis transports such as the telephone leg.
const DefaultTransportLimit = 120

// SplitForTransport splits text into segments no longer than limit characters
// for vendors that cap per-request text length. Splits happen on clause
// boundaries ('.', '!', '?', ',', ';') first, then on whitespace when a single
// clause still exceeds the limit. Words are never split; a single word longer
// than the limit is emitted whole.
func SplitForTransport(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultTransportLimit
	}
	if len(text) <= limit {
		return []string{text}
	}

	var segments []string
	for _, clause := range splitClauses(text) {
		if len(clause) <= limit {
			segments = appendPacked(segments, clause, limit)
			continue
		}
		for _, word := range strings.Fields(clause) {
			segments = appendPacked(segments, word, limit)
		}
	}
	return segments
}

// appendPacked appends piece to the last segment when it still fits within
// limit, otherwise starts a new segment.
func appendPacked(segments []string, piece string, limit int) []string {
	if n := len(segments); n > 0 && len(segments[n-1])+1+len(piece) <= limit {
		segments[n-1] += " " + piece
		return segments
	}
	return append(segments, piece)
}

// splitClauses breaks text on clause punctuation, keeping the punctuation with
// the preceding clause.
func splitClauses(text string) []string {
	var clauses []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', ',', ';':
			clause := strings.TrimSpace(text[start : i+1])
			if clause != "" {
				clauses = append(clauses, clause)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		clauses = append(clauses, tail)
	}
	return clauses
}
