// Package chunker splits cleaned document text into bounded, overlapping segments.
package chunker

import (
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the default chunk bound in characters (runes).
	DefaultMaxSize = 500

	// DefaultOverlap is the default number of characters carried into the next chunk.
	DefaultOverlap = 50
)

// Chunker greedily packs sentences into chunks of at most maxSize runes.
// It is stateless and safe for concurrent use.
type Chunker struct {
	maxSize int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxSize sets the chunk bound in runes.
func WithMaxSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithOverlap sets how many trailing runes of a closed chunk seed the next one.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.maxSize {
		c.overlap = c.maxSize / 4
	}
	return c
}

// MaxSize returns the configured chunk bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered chunk texts for text. The result is a pure
// function of the input and the chunker settings.
//
// A sentence longer than maxSize is emitted verbatim as its own chunk. The
// overlap seed is only used when it fits together with the next sentence.
func (c *Chunker) Split(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf []rune

	for _, s := range sentences {
		sentence := []rune(s)
		if len(buf) == 0 {
			buf = sentence
			continue
		}

		sep := separator(buf[len(buf)-1], sentence[0])
		if len(buf)+len(sep)+len(sentence) <= c.maxSize {
			buf = append(buf, sep...)
			buf = append(buf, sentence...)
			continue
		}

		closed := string(buf)
		chunks = append(chunks, closed)
		buf = c.seed([]rune(closed), sentence)
	}

	if len(buf) > 0 {
		chunks = append(chunks, string(buf))
	}
	return chunks
}

// seed builds the buffer that follows a closed chunk.
func (c *Chunker) seed(closed, sentence []rune) []rune {
	next := make([]rune, 0, c.overlap+len(sentence)+1)
	if c.overlap > 0 && len(closed) > c.overlap {
		tail := closed[len(closed)-c.overlap:]
		sep := separator(tail[len(tail)-1], sentence[0])
		if len(tail)+len(sep)+len(sentence) <= c.maxSize {
			next = append(next, tail...)
			next = append(next, sep...)
		}
	}
	return append(next, sentence...)
}

// separator returns the joiner placed between two sentences: a single space
// between non-CJK text, nothing otherwise.
func separator(prev, next rune) []rune {
	if isCJK(prev) || isCJK(next) || unicode.IsSpace(prev) || unicode.IsSpace(next) {
		return nil
	}
	return []rune{' '}
}

// SplitSentences breaks text into sentence units on terminal punctuation.
// Each unit keeps its terminator and is trimmed of surrounding whitespace.
// An ASCII period only ends a sentence when followed by whitespace or the end
// of text, so decimals and abbreviations inside words survive.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	flush := func(end int) {
		if s := trimSpace(runes[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i, r := range runes {
		switch {
		case isTerminal(r):
			// Keep runs of terminators (e.g. "？！") with their sentence.
			if i+1 < len(runes) && isTerminal(runes[i+1]) {
				continue
			}
			flush(i + 1)
		case r == '.':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return sentences
}

// Len returns the length of s in runes, the unit every chunk bound uses.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';':
		return true
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

func trimSpace(rs []rune) string {
	start, end := 0, len(rs)
	for start < end && unicode.IsSpace(rs[start]) {
		start++
	}
	for end > start && unicode.IsSpace(rs[end-1]) {
		end--
	}
	return string(rs[start:end])
}
