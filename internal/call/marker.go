package call

import (
	"encoding/json"
	"strings"
)

// markerPrefix and markerSuffix delimit the end-of-negotiation signal the
// model appends to its closing line. The payload between them is JSON. The
// marker is machine-only: it must never reach synthesis or the transcript.
const (
	markerPrefix = "[CALL_END:"
	markerSuffix = "]"
)

// markerPayload is the structured outcome embedded in the marker.
type markerPayload struct {
	Agreed      bool    `json:"agreed"`
	Rate        float64 `json:"rate"`
	RatePerMile float64 `json:"rate_per_mile"`
}

// markerFilter screens a streaming text sequence for the end-of-negotiation
// marker. Feed returns the text that is safe to forward; any tail that could
// be the start of a marker is withheld until the next delta resolves it.
// Once a complete marker is seen it is consumed whole and recorded; the
// stream after the marker is discarded.
type markerFilter struct {
	pending string
	payload *markerPayload
	found   bool
}

// Feed appends one streaming delta and returns the marker-free text that can
// be forwarded immediately.
func (f *markerFilter) Feed(delta string) string {
	if f.found {
		return ""
	}
	f.pending += delta

	if i := strings.Index(f.pending, markerPrefix); i >= 0 {
		end := strings.Index(f.pending[i+len(markerPrefix):], markerSuffix)
		if end < 0 {
			// Marker opened but not yet closed; everything before it is safe.
			safe := f.pending[:i]
			f.pending = f.pending[i:]
			return safe
		}
		raw := f.pending[i+len(markerPrefix) : i+len(markerPrefix)+end]
		f.found = true
		var p markerPayload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			f.payload = &p
		}
		return f.pending[:i]
	}

	// Hold back a tail that could still grow into the marker prefix.
	hold := possiblePrefixLen(f.pending)
	safe := f.pending[:len(f.pending)-hold]
	f.pending = f.pending[len(f.pending)-hold:]
	return safe
}

// Flush returns whatever withheld text turned out not to be a marker. Call
// once, after the stream ends.
func (f *markerFilter) Flush() string {
	if f.found {
		return ""
	}
	out := f.pending
	f.pending = ""
	return out
}

// Marker returns the parsed payload and whether a complete marker was seen.
// A marker with unparsable JSON reports found with a nil payload, which
// callers treat as "outcome unknown".
func (f *markerFilter) Marker() (*markerPayload, bool) {
	return f.payload, f.found
}

// possiblePrefixLen reports how many trailing bytes of s form a proper prefix
// of the marker opener.
func possiblePrefixLen(s string) int {
	max := len(markerPrefix) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if s[len(s)-n:] == markerPrefix[:n] {
			return n
		}
	}
	return 0
}

// stripMarker removes any complete or trailing-partial marker from text, for
// the transcript path where the full assistant output is already assembled.
func stripMarker(text string) string {
	if i := strings.Index(text, markerPrefix); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
