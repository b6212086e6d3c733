package audio_test

import (
	"testing"

	"github.com/haulvox/haulvox/pkg/audio"
)

func TestResampleMono16_Identity(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	for _, rate := range []int{8000, 16000, 24000, 44100, 48000} {
		out := audio.ResampleMono16(pcm, rate, rate)
		if len(out) != len(pcm) {
			t.Fatalf("rate %d: length changed from %d to %d", rate, len(pcm), len(out))
		}
		for i := range pcm {
			if out[i] != pcm[i] {
				t.Fatalf("rate %d: byte %d changed", rate, i)
			}
		}
	}
}

func TestResampleMono16_LengthLaw(t *testing.T) {
	tests := []struct {
		name       string
		srcSamples int
		from, to   int
	}{
		{"upsample 8k to 16k", 160, 8000, 16000},
		{"upsample 16k to 48k", 100, 16000, 48000},
		{"downsample 24k to 8k", 240, 24000, 8000},
		{"downsample 48k to 16k", 480, 48000, 16000},
		{"non-integer ratio", 441, 44100, 16000},
		{"tiny buffer", 3, 8000, 16000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pcm := make([]byte, tc.srcSamples*2)
			out := audio.ResampleMono16(pcm, tc.from, tc.to)
			want := int(int64(tc.srcSamples) * int64(tc.to) / int64(tc.from))
			if len(out)/2 != want {
				t.Errorf("got %d samples, want %d", len(out)/2, want)
			}
		})
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	// 2 samples at 8kHz → 4 samples at 16kHz.
	pcm := samplesToBytes([]int16{1000, 2000})
	got := bytesToSamples(audio.ResampleMono16(pcm, 8000, 16000))
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	// Midpoint between the two source samples.
	if got[1] != 1500 {
		t.Errorf("interpolated sample: got %d, want 1500", got[1])
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300, 400, 500, 600})
	got := bytesToSamples(audio.ResampleMono16(pcm, 24000, 8000))
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 100 {
		t.Errorf("first sample: got %d, want 100", got[0])
	}
}

func TestResampleMono16_ExtremesStayInRange(t *testing.T) {
	pcm := samplesToBytes([]int16{-32768, 32767, -32768, 32767})
	got := bytesToSamples(audio.ResampleMono16(pcm, 8000, 48000))
	for i, s := range got {
		if s > 32767 || s < -32768 {
			t.Fatalf("sample %d out of range: %d", i, s)
		}
	}
}

func TestTranscode_TelephoneToSTT(t *testing.T) {
	// 20 ms of telephone audio: 160 mu-law bytes → 320 PCM16 samples at 16 kHz.
	mulaw := make([]byte, 160)
	for i := range mulaw {
		mulaw[i] = 0xFF
	}
	out := audio.TelephoneToSTT(mulaw)
	if len(out)/2 != 320 {
		t.Fatalf("expected 320 samples, got %d", len(out)/2)
	}
}

func TestTranscode_SynthesisToTelephone(t *testing.T) {
	// 10 ms of synthesis audio: 240 samples at 24 kHz → 80 mu-law bytes at 8 kHz.
	pcm := make([]byte, 240*2)
	out := audio.SynthesisToTelephone(pcm)
	if len(out) != 80 {
		t.Fatalf("expected 80 bytes, got %d", len(out))
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("empty buffer: got %f, want 0", got)
	}
	// Constant amplitude 1000 → RMS exactly 1000.
	pcm := samplesToBytes([]int16{1000, -1000, 1000, -1000})
	if got := audio.RMS(pcm); got < 999.9 || got > 1000.1 {
		t.Errorf("got %f, want 1000", got)
	}
	// Silence → 0.
	if got := audio.RMS(samplesToBytes([]int16{0, 0, 0, 0})); got != 0 {
		t.Errorf("silence: got %f, want 0", got)
	}
}
