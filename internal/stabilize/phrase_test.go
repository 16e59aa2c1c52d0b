package stabilize

import "testing"

func TestPhraseBuffer_SplitsAtSentenceBoundary(t *testing.T) {
	p := NewPhraseBuffer(10, "")

	phrase, ok := p.Add("Hello world. How are")
	if !ok {
		t.Fatal("no phrase emitted after first add")
	}
	if phrase != "Hello world." {
		t.Errorf("phrase = %q, want %q", phrase, "Hello world.")
	}

	phrase, ok = p.Add("you?")
	if ok {
		t.Errorf("unexpected second phrase %q; trailing delimiter must not split", phrase)
	}
	if got := p.Flush(); got != "How are you?" {
		t.Errorf("Flush() = %q, want %q", got, "How are you?")
	}
	if p.Buffered() != "" {
		t.Errorf("buffer not cleared after Flush: %q", p.Buffered())
	}
}

func TestPhraseBuffer_HoldsShortText(t *testing.T) {
	p := NewPhraseBuffer(20, "")

	if phrase, ok := p.Add("Too short."); ok {
		t.Errorf("emitted %q below the minimum phrase length", phrase)
	}
	if p.Buffered() != "Too short." {
		t.Errorf("Buffered() = %q, want retained text", p.Buffered())
	}
}

func TestPhraseBuffer_DelimiterBeforeMinimumDoesNotSplit(t *testing.T) {
	p := NewPhraseBuffer(15, "")

	// "." at index 2 is below the minimum; no split despite buffer length.
	if phrase, ok := p.Add("No. this keeps going on"); ok {
		t.Errorf("emitted %q with delimiter before minimum length", phrase)
	}
}

func TestPhraseBuffer_RightMostDelimiterWins(t *testing.T) {
	p := NewPhraseBuffer(5, "")

	phrase, ok := p.Add("One. Two! Three? and then some")
	if !ok {
		t.Fatal("no phrase emitted")
	}
	if phrase != "One. Two! Three?" {
		t.Errorf("phrase = %q, want split at the right-most delimiter", phrase)
	}
	if p.Buffered() != "and then some" {
		t.Errorf("Buffered() = %q, want %q", p.Buffered(), "and then some")
	}
}

func TestPhraseBuffer_Reset(t *testing.T) {
	p := NewPhraseBuffer(5, "")
	p.Add("pending text")
	p.Reset()
	if p.Flush() != "" {
		t.Error("buffer survived Reset")
	}
}
