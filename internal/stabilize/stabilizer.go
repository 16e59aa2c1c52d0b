// Package stabilize smooths streaming transcription output.
//
// Successive hypotheses from a streaming recognizer flicker: each new call may
// rewrite the tail of the previous text. [Stabilizer] converts that stream
// into a monotonically growing stable prefix plus an incremental delta, so
// downstream consumers (translation, display) never see committed text change
// under them. [PhraseBuffer] then accumulates stabilized text until a
// sentence-like boundary is reached, so translation operates on complete
// phrases instead of fragments.
package stabilize

import (
	"github.com/antzucaro/matchr"
)

// Result is the outcome of one Stabilizer.Process call.
type Result struct {
	// StableText is the text committed so far. For final hypotheses this is
	// the full input text.
	StableText string `json:"stable_text"`

	// IncrementalText is the newly committed suffix since the previous call.
	// Empty when nothing advanced, and always empty on the final branch (the
	// full text is already reported in StableText).
	IncrementalText string `json:"incremental_text"`

	// Confidence is the similarity ratio between the previous and current
	// hypothesis, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Stable reports whether the stability predicate held for this call.
	Stable bool `json:"is_stable"`

	// FullText echoes the raw hypothesis for display purposes.
	FullText string `json:"full_text,omitempty"`
}

// Config holds the stability thresholds.
type Config struct {
	// SimilarityThreshold is the minimum similarity ratio between consecutive
	// hypotheses for a call to count as stable. Range [0, 1].
	SimilarityThreshold float64

	// MinStableLength is the minimum shared-prefix length (in runes) for a
	// call to count as stable.
	MinStableLength int
}

// Stabilizer tracks one session's hypothesis history. Not safe for concurrent
// use; the owning session serializes calls.
type Stabilizer struct {
	cfg Config

	previous  string
	stable    string
	stableRun int
}

// NewStabilizer creates a Stabilizer with the given thresholds.
func NewStabilizer(cfg Config) *Stabilizer {
	return &Stabilizer{cfg: cfg}
}

// Process consumes the latest full transcription hypothesis.
//
// A final hypothesis replaces the stable text unconditionally and resets the
// consecutive-stability counter. A non-final hypothesis advances the stable
// text to the longest shared prefix of the previous and current hypotheses,
// but only once stability has been observed twice in a row — or immediately
// when the new prefix strictly extends the current stable text.
func (s *Stabilizer) Process(text string, final bool) Result {
	if text == "" {
		return Result{StableText: s.stable, Confidence: 1, Stable: true}
	}

	if final {
		s.stable = text
		s.previous = text
		s.stableRun = 0
		return Result{StableText: text, Confidence: 1, Stable: true, FullText: text}
	}

	similarity := similarityRatio(s.previous, text)
	prefix := commonPrefix(s.previous, text)

	stable := similarity >= s.cfg.SimilarityThreshold && runeLen(prefix) >= s.cfg.MinStableLength
	if stable {
		s.stableRun++
	} else {
		s.stableRun = 0
	}

	incremental := ""
	if s.stableRun >= 2 || runeLen(prefix) > runeLen(s.stable) {
		incremental = trimPrefix(prefix, s.stable)
		s.stable = prefix
	}

	s.previous = text

	return Result{
		StableText:      s.stable,
		IncrementalText: incremental,
		Confidence:      similarity,
		Stable:          stable,
		FullText:        text,
	}
}

// Reset clears all hypothesis history.
func (s *Stabilizer) Reset() {
	s.previous = ""
	s.stable = ""
	s.stableRun = 0
}

// StableRun returns the current consecutive-stability count. Exposed for
// status reporting.
func (s *Stabilizer) StableRun() int { return s.stableRun }

// StableText returns the currently committed text.
func (s *Stabilizer) StableText() string { return s.stable }

// similarityRatio computes an edit-distance similarity in [0, 1]:
// 1 − levenshtein(a, b) / max(len(a), len(b)). Two empty strings are
// identical; one empty string is maximally dissimilar to a non-empty one.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	dist := matchr.Levenshtein(a, b)
	if dist > longest {
		dist = longest
	}
	return 1 - float64(dist)/float64(longest)
}

// commonPrefix returns the longest prefix shared by a and b starting at
// position 0 — deliberately not an arbitrary common substring.
func commonPrefix(a, b string) string {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	i := 0
	for i < n && ra[i] == rb[i] {
		i++
	}
	return string(rb[:i])
}

// trimPrefix returns the suffix of next beyond the rune length of prev, or ""
// when next does not extend prev.
func trimPrefix(next, prev string) string {
	rn, rp := []rune(next), []rune(prev)
	if len(rn) <= len(rp) {
		return ""
	}
	return string(rn[len(rp):])
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
