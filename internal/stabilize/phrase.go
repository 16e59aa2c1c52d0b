package stabilize

import "strings"

// DefaultDelimiters is the delimiter set that ends a phrase.
const DefaultDelimiters = ".!?,;:\n"

// PhraseBuffer accumulates stabilized text until a sentence-like boundary is
// reached. Synchronous, no hidden state beyond the buffer. Not safe for
// concurrent use; the owning session serializes calls.
type PhraseBuffer struct {
	minLength  int
	delimiters string

	buffer string
}

// NewPhraseBuffer creates a PhraseBuffer. minLength is the minimum phrase
// length in runes; delimiters defaults to DefaultDelimiters when empty.
func NewPhraseBuffer(minLength int, delimiters string) *PhraseBuffer {
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}
	return &PhraseBuffer{minLength: minLength, delimiters: delimiters}
}

// Add appends text to the buffer (joined with a single space when both sides
// carry content) and attempts a split. A split happens when the buffer has
// reached the minimum phrase length and the right-most delimiter sits at or
// beyond that length with text remaining after it: the trimmed prefix up to
// and including the delimiter is emitted and the trimmed remainder retained.
// A delimiter at the very end of the buffer does not split — the still-open
// phrase waits for more text or for Flush.
func (p *PhraseBuffer) Add(text string) (phrase string, ok bool) {
	if text != "" {
		if p.buffer != "" && !strings.HasSuffix(p.buffer, " ") && !strings.HasPrefix(text, " ") {
			p.buffer += " "
		}
		p.buffer += text
	}

	runes := []rune(p.buffer)
	if len(runes) < p.minLength {
		return "", false
	}

	split := -1
	for i := len(runes) - 2; i >= 0; i-- {
		if strings.ContainsRune(p.delimiters, runes[i]) {
			split = i
			break
		}
	}
	if split < p.minLength {
		return "", false
	}

	phrase = strings.TrimSpace(string(runes[:split+1]))
	p.buffer = strings.TrimSpace(string(runes[split+1:]))
	return phrase, true
}

// Flush returns and clears the entire remaining buffer. Used at session end.
func (p *PhraseBuffer) Flush() string {
	text := strings.TrimSpace(p.buffer)
	p.buffer = ""
	return text
}

// Reset discards the buffer.
func (p *PhraseBuffer) Reset() {
	p.buffer = ""
}

// Buffered returns the current buffer content without clearing it.
func (p *PhraseBuffer) Buffered() string { return p.buffer }
