// Package token implements deterministic token estimation and truncation
// over a fixed piece-splitting scheme. The scheme is reversible: the
// concatenation of the encoded pieces is byte-identical to the input, so
// a trailing window of pieces always decodes to a suffix of the original
// text. That property is what the token-limit recovery path relies on
// when it substitutes a truncated document for the full one.
package token

import (
	"strings"
	"unicode"
)

// Estimator estimates the token count of a string.
type Estimator interface {
	Estimate(text string) int
}

// maxPieceRunes caps the length of a single piece. Four runes per piece
// tracks the common subword-tokenizer average for English prose closely
// enough for budget decisions while staying fully reproducible.
const maxPieceRunes = 4

// runeClass buckets runes so that pieces never span a word boundary.
type runeClass int

const (
	classWord runeClass = iota // letters and digits
	classSpace
	classOther // punctuation, symbols
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return classWord
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classOther
	}
}

// Tokenizer splits text into pieces: maximal same-class rune runs, capped
// at maxPieceRunes runes each. The zero value is ready to use.
type Tokenizer struct{}

// NewTokenizer returns a Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Encode splits text into pieces. The pieces concatenate back to text.
func (t *Tokenizer) Encode(text string) []string {
	if text == "" {
		return nil
	}

	var (
		pieces   []string
		start    int // byte offset of the current piece
		runCls   runeClass
		runLen   int // runes in the current piece
		firstOfs = true
	)

	for i, r := range text {
		cls := classify(r)
		if firstOfs {
			runCls = cls
			runLen = 1
			firstOfs = false
			continue
		}
		if cls != runCls || runLen == maxPieceRunes {
			pieces = append(pieces, text[start:i])
			start = i
			runCls = cls
			runLen = 1
			continue
		}
		runLen++
	}
	return append(pieces, text[start:])
}

// Decode reassembles pieces into text. Decode(Encode(s)) == s.
func (t *Tokenizer) Decode(pieces []string) string {
	return strings.Join(pieces, "")
}

// Estimate returns the number of pieces in text. Deterministic, and
// monotonic under append: Estimate(a+b) >= Estimate(a).
func (t *Tokenizer) Estimate(text string) int {
	if text == "" {
		return 0
	}

	var (
		count    int
		runCls   runeClass
		runLen   int
		firstOfs = true
	)

	for _, r := range text {
		cls := classify(r)
		if firstOfs {
			count = 1
			runCls = cls
			runLen = 1
			firstOfs = false
			continue
		}
		if cls != runCls || runLen == maxPieceRunes {
			count++
			runCls = cls
			runLen = 1
			continue
		}
		runLen++
	}
	return count
}

// TruncateTail returns the suffix of text covering at most maxTokens
// trailing pieces. Returns text unchanged when it already fits, and the
// empty string when maxTokens <= 0.
func (t *Tokenizer) TruncateTail(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	pieces := t.Encode(text)
	if len(pieces) <= maxTokens {
		return text
	}
	return t.Decode(pieces[len(pieces)-maxTokens:])
}

// Interface guard.
var _ Estimator = (*Tokenizer)(nil)
