package stabilize

import (
	"math"
	"testing"
)

func newTestStabilizer() *Stabilizer {
	return NewStabilizer(Config{SimilarityThreshold: 0.85, MinStableLength: 10})
}

func TestStabilizer_IdenticalTextCommitsAfterTwoStableCalls(t *testing.T) {
	s := newTestStabilizer()
	text := "the quick brown fox"

	// First call: previous is empty, similarity 0, nothing stable.
	r := s.Process(text, false)
	if r.Stable {
		t.Error("first hypothesis reported stable against empty history")
	}

	// Second call: identical text → similarity 1, run = 1. Prefix equals the
	// full text, which is longer than the (empty) stable text, so it commits
	// via the longer-prefix rule.
	r = s.Process(text, false)
	if math.Abs(r.Confidence-1.0) > 1e-9 {
		t.Errorf("Confidence = %v, want 1.0", r.Confidence)
	}
	if !r.Stable {
		t.Error("identical hypothesis not reported stable")
	}
	if r.StableText != text {
		t.Errorf("StableText = %q, want %q", r.StableText, text)
	}

	// Third identical call: run reaches 2, committed stable prefix persists.
	r = s.Process(text, false)
	if s.StableRun() < 2 {
		t.Errorf("StableRun = %d, want >= 2", s.StableRun())
	}
	if r.StableText != text {
		t.Errorf("StableText = %q, want %q", r.StableText, text)
	}
}

func TestStabilizer_FinalReplacesUnconditionally(t *testing.T) {
	s := newTestStabilizer()
	s.Process("some earlier partial hypothesis", false)
	s.Process("some earlier partial hypothesis", false)

	r := s.Process("completely different final text", true)
	if r.StableText != "completely different final text" {
		t.Errorf("StableText = %q, want the final input", r.StableText)
	}
	if r.IncrementalText != "" {
		t.Errorf("IncrementalText = %q, want empty on the final branch", r.IncrementalText)
	}
	if !r.Stable || r.Confidence != 1 {
		t.Errorf("Stable = %v Confidence = %v, want true/1", r.Stable, r.Confidence)
	}
	if s.StableRun() != 0 {
		t.Errorf("StableRun = %d, want 0 after final", s.StableRun())
	}
}

func TestStabilizer_EmptyInputKeepsState(t *testing.T) {
	s := newTestStabilizer()
	s.Process("hello world, nice day", true)

	r := s.Process("", false)
	if r.StableText != "hello world, nice day" {
		t.Errorf("StableText = %q, want retained text", r.StableText)
	}
	if !r.Stable || r.Confidence != 1 {
		t.Errorf("Stable = %v Confidence = %v, want true/1", r.Stable, r.Confidence)
	}
}

func TestStabilizer_DivergentTailDoesNotCommit(t *testing.T) {
	s := NewStabilizer(Config{SimilarityThreshold: 0.85, MinStableLength: 5})
	s.Process("the meeting starts at nine", false)

	// Shared prefix "the meeting starts at " but a rewritten tail keeps
	// similarity high; one stable observation is not enough to commit beyond
	// the longer-prefix rule.
	r := s.Process("the meeting starts at noon", false)
	if r.StableText != "the meeting starts at n" {
		t.Errorf("StableText = %q, want the shared prefix", r.StableText)
	}

	// A dissimilar rewrite resets the run and commits nothing new.
	r = s.Process("completely unrelated words here", false)
	if r.Stable {
		t.Error("dissimilar hypothesis reported stable")
	}
	if r.IncrementalText != "" {
		t.Errorf("IncrementalText = %q, want empty without a commit", r.IncrementalText)
	}
	if r.StableText != "the meeting starts at n" {
		t.Errorf("StableText = %q, want unchanged", r.StableText)
	}
}

func TestStabilizer_IncrementalDeltaIsSuffix(t *testing.T) {
	s := NewStabilizer(Config{SimilarityThreshold: 0.5, MinStableLength: 3})
	s.Process("good morning", false)
	r := s.Process("good morning every", false)
	first := r.StableText

	r = s.Process("good morning everyone", false)
	if r.StableText != first+r.IncrementalText {
		t.Errorf("StableText %q != previous %q + delta %q", r.StableText, first, r.IncrementalText)
	}
}

func TestStabilizer_Reset(t *testing.T) {
	s := newTestStabilizer()
	s.Process("something to remember", true)
	s.Reset()
	if s.StableText() != "" || s.StableRun() != 0 {
		t.Errorf("state after reset: stable=%q run=%d, want empty", s.StableText(), s.StableRun())
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"", "abc", 0},
		{"abcd", "abcd", 1},
		{"abcd", "abce", 0.75},
	}
	for _, tt := range tests {
		got := similarityRatio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("similarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"", "abc", ""},
		{"abc", "abd", "ab"},
		{"abc", "abc", "abc"},
		{"xyz", "abc", ""},
		{"héllo there", "héllo world", "héllo "},
	}
	for _, tt := range tests {
		if got := commonPrefix(tt.a, tt.b); got != tt.want {
			t.Errorf("commonPrefix(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
