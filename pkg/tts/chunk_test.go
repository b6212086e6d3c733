package tts_test

import (
	"strings"
	"testing"

	"github.com/haulvox/haulvox/pkg/tts"
)

func TestSplitForTransport_ShortTextUnchanged(t *testing.T) {
	got := tts.SplitForTransport("Hello there, how are you?", 120)
	if len(got) != 1 || got[0] != "Hello there, how are you?" {
		t.Errorf("expected single unchanged segment, got %q", got)
	}
}

func TestSplitForTransport_Empty(t *testing.T) {
	if got := tts.SplitForTransport("   ", 120); got != nil {
		t.Errorf("expected nil for blank input, got %q", got)
	}
}

func TestSplitForTransport_SplitsOnClauses(t *testing.T) {
	text := "I can offer you eight hundred and fifty dollars for that lane, which works out to about two seventy a mile. " +
		"That covers fuel and still leaves a decent margin; let me know if that works for you."

	segments := tts.SplitForTransport(text, 120)
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments, got %d: %q", len(segments), segments)
	}
	for i, seg := range segments {
		if len(seg) > 120 {
			t.Errorf("segment %d exceeds limit (%d chars): %q", i, len(seg), seg)
		}
	}
	// Reassembly preserves every word in order.
	joined := strings.Join(segments, " ")
	if strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(text), " ") {
		t.Errorf("words lost or reordered:\n got %q\nwant %q", joined, text)
	}
}

func TestSplitForTransport_LongClauseSplitsOnWhitespace(t *testing.T) {
	// One clause with no internal punctuation, longer than the limit.
	text := strings.Repeat("word ", 40) // 200 chars, no clause punctuation
	segments := tts.SplitForTransport(text, 50)
	if len(segments) < 4 {
		t.Fatalf("expected whitespace split, got %d segments", len(segments))
	}
	for i, seg := range segments {
		if len(seg) > 50 {
			t.Errorf("segment %d exceeds limit: %q", i, seg)
		}
		for _, w := range strings.Fields(seg) {
			if w != "word" {
				t.Errorf("segment %d contains a split word: %q", i, w)
			}
		}
	}
}

func TestSplitForTransport_NeverSplitsMidWord(t *testing.T) {
	long := strings.Repeat("a", 150)
	segments := tts.SplitForTransport("short start "+long+" short end", 100)
	found := false
	for _, seg := range segments {
		if strings.Contains(seg, long) {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized word must be emitted whole, got %q", segments)
	}
}
