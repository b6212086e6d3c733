package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/haulvox/haulvox/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestDecodeMuLaw_Length(t *testing.T) {
	in := []byte{0x00, 0x7F, 0x80, 0xFF}
	out := audio.DecodeMuLaw(in)
	if len(out) != len(in)*2 {
		t.Fatalf("expected %d bytes, got %d", len(in)*2, len(out))
	}
}

func TestDecodeMuLaw_KnownValues(t *testing.T) {
	// 0xFF is the mu-law code for zero; 0x7F is negative zero.
	if got := audio.DecodeMuLawSample(0xFF); got != 0 {
		t.Errorf("decode 0xFF: got %d, want 0", got)
	}
	if got := audio.DecodeMuLawSample(0x7F); got != 0 {
		t.Errorf("decode 0x7F: got %d, want 0", got)
	}
	// 0x80 decodes to the maximum positive magnitude.
	if got := audio.DecodeMuLawSample(0x80); got != 32124 {
		t.Errorf("decode 0x80: got %d, want 32124", got)
	}
	// 0x00 decodes to the maximum negative magnitude.
	if got := audio.DecodeMuLawSample(0x00); got != -32124 {
		t.Errorf("decode 0x00: got %d, want -32124", got)
	}
}

func TestEncodeMuLaw_SignHandling(t *testing.T) {
	pos := audio.EncodeMuLawSample(1000)
	neg := audio.EncodeMuLawSample(-1000)
	if pos == neg {
		t.Fatalf("positive and negative samples encode identically: 0x%02X", pos)
	}
	// The sign bit (inverted in the output) distinguishes the two.
	if pos&0x80 == 0 {
		t.Errorf("positive sample should have the sign bit set after inversion, got 0x%02X", pos)
	}
	if neg&0x80 != 0 {
		t.Errorf("negative sample should have the sign bit clear after inversion, got 0x%02X", neg)
	}
}

// Mu-law is lossy, but re-quantizing an already-quantized signal is exact:
// encode(decode(encode(x))) must reproduce encode(x) byte for byte.
func TestMuLaw_RoundTripIdempotent(t *testing.T) {
	samples := make([]int16, 0, 2048)
	for v := -32768; v <= 32512; v += 64 {
		samples = append(samples, int16(v))
	}
	// Near-zero negatives exercise the negative-zero fold.
	samples = append(samples, -1, -3, -7, 1, 7)
	pcm := samplesToBytes(samples)

	first := audio.EncodeMuLaw(pcm)
	second := audio.EncodeMuLaw(audio.DecodeMuLaw(first))
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("byte %d: first pass 0x%02X, second pass 0x%02X", i, first[i], second[i])
		}
	}
}

// Quantization error of a single encode/decode pass stays within the G.711
// segment step size (largest segment step is 1024 on full-scale input).
func TestMuLaw_QuantizationError(t *testing.T) {
	for v := -32000; v <= 32000; v += 97 {
		in := int16(v)
		out := audio.DecodeMuLawSample(audio.EncodeMuLawSample(in))
		diff := int(in) - int(out)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1024 {
			t.Fatalf("sample %d: decoded %d, error %d exceeds max segment step", in, out, diff)
		}
	}
}
