package phonetic

import "testing"

func TestMatch_ExactWord(t *testing.T) {
	m := New()
	corrected, conf, ok := m.Match("dallas", []string{"Dallas", "Joliet"})
	if !ok {
		t.Fatal("expected a match")
	}
	if corrected != "Dallas" {
		t.Errorf("corrected = %q, want Dallas", corrected)
	}
	if conf < 0.99 {
		t.Errorf("confidence = %v, want ~1.0", conf)
	}
}

func TestMatch_Misspelling(t *testing.T) {
	m := New()
	corrected, conf, ok := m.Match("dalas", []string{"Dallas", "Joliet"})
	if !ok {
		t.Fatal("expected a phonetic match")
	}
	if corrected != "Dallas" {
		t.Errorf("corrected = %q, want Dallas", corrected)
	}
	if conf < 0.9 {
		t.Errorf("confidence = %v, want > 0.9", conf)
	}
}

func TestMatch_UnrelatedWordRejected(t *testing.T) {
	m := New()
	corrected, conf, ok := m.Match("banana", []string{"Dallas", "Joliet"})
	if ok {
		t.Fatalf("unexpected match %q", corrected)
	}
	if corrected != "banana" || conf != 0 {
		t.Errorf("unmatched word must pass through unchanged, got %q conf %v", corrected, conf)
	}
}

func TestMatch_MultiWordEntity(t *testing.T) {
	m := New()
	corrected, _, ok := m.Match("oklahoma sity", []string{"Oklahoma City", "Dallas"})
	if !ok {
		t.Fatal("expected a match")
	}
	if corrected != "Oklahoma City" {
		t.Errorf("corrected = %q, want Oklahoma City", corrected)
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	m := New()
	if _, _, ok := m.Match("dallas", nil); ok {
		t.Error("empty vocabulary must not match")
	}
	if _, _, ok := m.Match("  ", []string{"Dallas"}); ok {
		t.Error("blank input must not match")
	}
}

func TestMatch_ThresholdOption(t *testing.T) {
	m := New(WithPhoneticThreshold(0.99))
	if _, _, ok := m.Match("dalas", []string{"Dallas"}); ok {
		t.Error("raised threshold should reject the near-miss")
	}
}
