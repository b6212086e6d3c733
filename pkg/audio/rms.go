package audio

import "math"

// RMS computes the root-mean-square energy of a little-endian PCM16 buffer.
// Returns 0 for an empty buffer. Used by the telephone barge-in detector to
// decide whether the remote party is talking over the system.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := range samples {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}
