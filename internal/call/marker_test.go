package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerFilter_MarkerInOneDelta(t *testing.T) {
	f := &markerFilter{}
	safe := f.Feed(`Glad we could work it out. [CALL_END:{"agreed":true,"rate":1875,"rate_per_mile":3.75}]`)

	assert.Equal(t, "Glad we could work it out. ", safe)
	payload, found := f.Marker()
	require.True(t, found)
	require.NotNil(t, payload)
	assert.True(t, payload.Agreed)
	assert.Equal(t, 1875.0, payload.Rate)
	assert.Equal(t, 3.75, payload.RatePerMile)
}

func TestMarkerFilter_MarkerSplitAcrossDeltas(t *testing.T) {
	f := &markerFilter{}
	var out string
	for _, delta := range []string{
		"Sounds good, we agree",
		". [CALL_",
		`END:{"agreed":tr`,
		`ue,"rate":0,"rate_per_mile":2.5}`,
		"]",
	} {
		out += f.Feed(delta)
	}
	out += f.Flush()

	assert.Equal(t, "Sounds good, we agree. ", out)
	payload, found := f.Marker()
	require.True(t, found)
	require.NotNil(t, payload)
	assert.True(t, payload.Agreed)
	assert.Equal(t, 2.5, payload.RatePerMile)
}

func TestMarkerFilter_PlainTextPassesThrough(t *testing.T) {
	f := &markerFilter{}
	out := f.Feed("We can do nineteen hundred [flat rate] total. ")
	out += f.Feed("Does that work?")
	out += f.Flush()

	assert.Equal(t, "We can do nineteen hundred [flat rate] total. Does that work?", out)
	_, found := f.Marker()
	assert.False(t, found)
}

func TestMarkerFilter_HeldTailReleasedByFlush(t *testing.T) {
	f := &markerFilter{}
	out := f.Feed("Let me check [CALL")
	// The bracketed tail could still grow into the marker, so it is withheld.
	assert.Equal(t, "Let me check ", out)
	assert.Equal(t, "[CALL", f.Flush())
}

func TestMarkerFilter_MalformedPayloadReportsUnknown(t *testing.T) {
	f := &markerFilter{}
	f.Feed("Bye. [CALL_END:not json]")
	payload, found := f.Marker()
	assert.True(t, found)
	assert.Nil(t, payload)
}

func TestMarkerFilter_TextAfterMarkerDiscarded(t *testing.T) {
	f := &markerFilter{}
	out := f.Feed(`Bye. [CALL_END:{"agreed":false}] trailing chatter`)
	out += f.Feed("more chatter")
	out += f.Flush()
	assert.Equal(t, "Bye. ", out)
}

func TestStripMarker(t *testing.T) {
	assert.Equal(t, "We agree.", stripMarker(`We agree. [CALL_END:{"agreed":true}]`))
	assert.Equal(t, "We agree.", stripMarker("We agree. [CALL_END:{\"agreed\""))
	assert.Equal(t, "No marker here.", stripMarker("No marker here."))
}
