// Package ingest turns raw source files into Documents ready for chunking.
package ingest

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNoDocuments is returned when a source yields no parseable unit.
var ErrNoDocuments = errors.New("no documents parsed from source")

// Document is one logical source unit: a news item, a novel chapter or a
// markdown section. It is immutable once parsed.
type Document struct {
	ID       string
	Title    string
	Content  string
	Category string
	Keywords string
}

// ParseResult reports what a parser produced.
type ParseResult struct {
	Documents []Document
	Parsed    int // Units turned into documents
	Skipped   int // Malformed units that were dropped
}

const minCleanLength = 10

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Keeps CJK, ASCII alphanumerics, whitespace and common CJK/ASCII punctuation.
	disallowedRe = regexp.MustCompile(`[^\p{Han}a-zA-Z0-9，。！？；：“”‘’"'（）【】《》、\-\s.,!?;:()]`)
)

// CleanText collapses whitespace and strips characters outside the supported
// set. Text shorter than 10 characters after cleaning is returned as "".
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = disallowedRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minCleanLength {
		return ""
	}
	return text
}
