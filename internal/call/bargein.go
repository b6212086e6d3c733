package call

import "github.com/haulvox/haulvox/pkg/audio"

// bargeInDetector watches inbound telephone frames while the system is
// speaking and decides when the remote party is talking over it. The trigger
// is a run of over-threshold frames inside a sliding window (count of the
// last window frames), which filters out line noise and single pops.
//
// The detector also retains the raw frames of the current window so the
// speech that caused the trigger can be replayed into STT instead of lost.
// Not safe for concurrent use; the owning call serializes frame handling.
type bargeInDetector struct {
	threshold float64
	window    int
	count     int

	hot    []bool
	frames [][]byte
}

func newBargeInDetector(threshold float64, window, count int) *bargeInDetector {
	return &bargeInDetector{threshold: threshold, window: window, count: count}
}

// Feed records one mu-law frame and reports whether the barge-in trigger
// fired on it.
func (d *bargeInDetector) Feed(mulaw []byte) bool {
	pcm := audio.DecodeMuLaw(mulaw)
	over := audio.RMS(pcm) >= d.threshold

	d.hot = append(d.hot, over)
	d.frames = append(d.frames, mulaw)
	if len(d.hot) > d.window {
		d.hot = d.hot[1:]
		d.frames = d.frames[1:]
	}

	n := 0
	for _, h := range d.hot {
		if h {
			n++
		}
	}
	return n >= d.count
}

// Window returns the retained frames, oldest first, and resets the detector.
func (d *bargeInDetector) Window() [][]byte {
	out := d.frames
	d.frames = nil
	d.hot = nil
	return out
}

// Reset clears all state, for the next speaking span.
func (d *bargeInDetector) Reset() {
	d.frames = nil
	d.hot = nil
}
