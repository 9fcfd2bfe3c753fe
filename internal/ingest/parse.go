package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	legacyDelimiter    = "_!_"
	legacyMinFields    = 4
	minParagraphLength = 50
	maxLineBytes       = 16 * 1024 * 1024
)

// chapterHeadingRe matches the heading styles used to segment narrative text.
// A numbered heading needs a non-digit after its separator so that prose
// opening with a decimal ("3.5亿人次…") stays prose.
var chapterHeadingRe = regexp.MustCompile(
	`^\s*(第[0-9０-９零〇一二三四五六七八九十百千两]+[章回节]|Chapter\s+\d+|\d+[.、]\s*[^\d\s.])`,
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// jsonRecord is one line of the JSON-lines news format.
type jsonRecord struct {
	Text     *string `json:"text"`
	Category *string `json:"category"`
	Title    string  `json:"title"`
	Keywords any     `json:"keywords"`
}

// Parse detects the format of data and parses it into documents.
// Markdown is selected by the .md extension of name; otherwise the
// line-oriented formats are tried first and narrative text is the fallback.
func Parse(name string, data []byte, maxDocuments int) (*ParseResult, error) {
	if strings.HasSuffix(strings.ToLower(name), ".md") {
		return ParseMarkdown(data, maxDocuments)
	}

	result, err := ParseLines(data, maxDocuments)
	if err != nil {
		return nil, err
	}
	if result.Parsed > 0 {
		return result, nil
	}
	return ParseNarrative(string(data), maxDocuments), nil
}

// ParseLines reads JSON-lines or legacy delimiter records. Lines matching
// neither format are counted as skipped.
func ParseLines(data []byte, maxDocuments int) (*ParseResult, error) {
	result := &ParseResult{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := -1
	for scanner.Scan() {
		lineNo++
		if maxDocuments > 0 && result.Parsed >= maxDocuments {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		doc, ok := parseLine(line, lineNo)
		if !ok {
			result.Skipped++
			continue
		}
		result.Documents = append(result.Documents, doc)
		result.Parsed++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}

	return result, nil
}

func parseLine(line string, lineNo int) (Document, bool) {
	id := fmt.Sprintf("news_%d", lineNo)

	if strings.HasPrefix(line, "{") {
		var rec jsonRecord
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			if rec.Text == nil || rec.Category == nil {
				return Document{}, false
			}
			return Document{
				ID:       id,
				Title:    rec.Title,
				Content:  *rec.Text,
				Category: *rec.Category,
				Keywords: keywordsString(rec.Keywords),
			}, true
		}
	}

	parts := strings.Split(line, legacyDelimiter)
	if len(parts) < legacyMinFields {
		return Document{}, false
	}
	var keywords string
	if len(parts) > 4 {
		keywords = parts[4]
	}
	title := parts[3]
	return Document{
		ID:       id,
		Title:    title,
		Content:  title,
		Category: strings.TrimPrefix(parts[2], "news_"),
		Keywords: keywords,
	}, true
}

// keywordsString accepts either a comma separated string or a JSON array.
func keywordsString(v any) string {
	switch kw := v.(type) {
	case string:
		return kw
	case []any:
		parts := make([]string, 0, len(kw))
		for _, item := range kw {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// ParseNarrative segments long-form text into chapters by heading lines.
// Without any heading it falls back to paragraphs, dropping those shorter
// than 50 characters.
func ParseNarrative(text string, maxDocuments int) *ParseResult {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if result := parseChapters(text, maxDocuments); result != nil {
		return result
	}
	return parseParagraphs(text, maxDocuments)
}

type chapter struct {
	title string
	body  []string
}

// parseChapters returns nil when text contains no chapter heading.
func parseChapters(text string, maxDocuments int) *ParseResult {
	var chapters []chapter
	var preface []string
	found := false

	for _, line := range strings.Split(text, "\n") {
		if chapterHeadingRe.MatchString(line) {
			found = true
			chapters = append(chapters, chapter{title: strings.TrimSpace(line)})
			continue
		}
		if !found {
			preface = append(preface, line)
			continue
		}
		last := &chapters[len(chapters)-1]
		last.body = append(last.body, line)
	}
	if !found {
		return nil
	}

	result := &ParseResult{}
	if body := strings.TrimSpace(strings.Join(preface, "\n")); body != "" {
		chapters = append([]chapter{{title: "", body: preface}}, chapters...)
	}

	for i, ch := range chapters {
		if maxDocuments > 0 && result.Parsed >= maxDocuments {
			break
		}
		body := strings.TrimSpace(strings.Join(ch.body, "\n"))
		if body == "" {
			result.Skipped++
			continue
		}
		result.Documents = append(result.Documents, Document{
			ID:       fmt.Sprintf("chapter_%d", i),
			Title:    ch.title,
			Content:  body,
			Category: "chapter",
		})
		result.Parsed++
	}
	return result
}

func parseParagraphs(text string, maxDocuments int) *ParseResult {
	paragraphs := blankLineRe.Split(text, -1)
	if len(paragraphs) <= 1 {
		paragraphs = strings.Split(text, "\n")
	}

	result := &ParseResult{}
	for i, p := range paragraphs {
		if maxDocuments > 0 && result.Parsed >= maxDocuments {
			break
		}
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) < minParagraphLength {
			result.Skipped++
			continue
		}
		result.Documents = append(result.Documents, Document{
			ID:       fmt.Sprintf("paragraph_%d", i),
			Content:  p,
			Category: "paragraph",
		})
		result.Parsed++
	}
	return result
}
