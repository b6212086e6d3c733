// Package audio provides the stateless codec layer for the voice pipeline:
// ITU-T G.711 mu-law encode/decode, linear-interpolation resampling, the fixed
// transcode chains used on the telephone leg, and frame energy measurement.
//
// All functions are total over well-formed buffers and perform no I/O. A
// malformed buffer length (odd byte count for PCM16) is a contract violation
// on the caller's side, not a runtime error to recover from.
package audio

// G.711 mu-law constants.
const (
	muLawBias = 0x84  // 132
	muLawClip = 32635 // max linear magnitude before bias
)

// muLawToLinear is the 256-entry mu-law → linear16 expansion table, built once
// at package init from the G.711 segment formula.
var muLawToLinear [256]int16

func init() {
	for i := range muLawToLinear {
		u := ^byte(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := ((int32(mantissa) << 3) + muLawBias) << exponent
		sample -= muLawBias
		if sign != 0 {
			sample = -sample
		}
		muLawToLinear[i] = int16(sample)
	}
}

// EncodeMuLawSample compresses a single linear16 sample to 8-bit mu-law.
func EncodeMuLawSample(s int16) byte {
	v := int32(s)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	// Exponent search: position of the highest set bit above the mantissa.
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	u := ^(sign | exponent<<4 | mantissa)
	// Fold negative zero (0x7F) onto positive zero (0xFF). Both decode to the
	// same linear value; emitting only one keeps re-quantization exact.
	if u == 0x7F {
		u = 0xFF
	}
	return u
}

// DecodeMuLawSample expands a single 8-bit mu-law byte to linear16.
func DecodeMuLawSample(b byte) int16 {
	return muLawToLinear[b]
}

// DecodeMuLaw expands a mu-law buffer to little-endian PCM16. One input byte
// yields one 16-bit sample; the output is exactly twice the input length.
func DecodeMuLaw(buf []byte) []byte {
	out := make([]byte, len(buf)*2)
	for i, b := range buf {
		s := muLawToLinear[b]
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// EncodeMuLaw compresses little-endian PCM16 to mu-law. One 16-bit sample
// yields one output byte. Mu-law is lossy, but re-encoding a decoded buffer
// reproduces the original bytes (idempotent after the first quantization pass).
func EncodeMuLaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = EncodeMuLawSample(s)
	}
	return out
}
