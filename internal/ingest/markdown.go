package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

var markdownParser = goldmark.New(
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// section is a heading-delimited span of a markdown source.
type section struct {
	headerPath string
	content    string
}

// ParseMarkdown splits a markdown file into one document per H1/H2 section.
// The document title is the header hierarchy ("Intro > Setup"). A file
// without headings becomes a single document.
func ParseMarkdown(source []byte, maxDocuments int) (*ParseResult, error) {
	sections, err := markdownSections(source)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for i, s := range sections {
		if maxDocuments > 0 && result.Parsed >= maxDocuments {
			break
		}
		if strings.TrimSpace(s.content) == "" {
			result.Skipped++
			continue
		}
		result.Documents = append(result.Documents, Document{
			ID:       fmt.Sprintf("section_%d", i),
			Title:    s.headerPath,
			Content:  s.content,
			Category: "markdown",
		})
		result.Parsed++
	}
	return result, nil
}

func markdownSections(source []byte) ([]section, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	if len(tree.Items) == 0 {
		return []section{{content: strings.TrimSpace(string(source))}}, nil
	}

	headings := headingsByID(doc)
	var sections []section
	collectSections(headings, source, tree.Items, nil, &sections)
	return sections, nil
}

// collectSections walks TOC items depth-first, cutting the source at the
// next heading of the same or higher level.
func collectSections(headings *headingIndex, source []byte, items toc.Items, ancestors []string, out *[]section) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		node, ok := headings.byID[string(item.ID)]
		if !ok {
			continue
		}

		start := lineStart(source, node.Lines().At(0).Start)
		end := len(source)
		if next := headings.nextAtOrAbove(node); next != nil {
			end = lineStart(source, next.Lines().At(0).Start)
		}
		if len(item.Items) > 0 {
			// Parent sections stop where their first child starts.
			if child, ok := headings.byID[string(item.Items[0].ID)]; ok {
				end = lineStart(source, child.Lines().At(0).Start)
			}
		}

		*out = append(*out, section{
			headerPath: strings.Join(path, " > "),
			content:    strings.TrimSpace(string(source[start:end])),
		})

		if len(item.Items) > 0 {
			collectSections(headings, source, item.Items, path, out)
		}
	}
}

// headingIndex is an ordered view of the H1/H2 headings in a document.
type headingIndex struct {
	ordered []*ast.Heading
	byID    map[string]*ast.Heading
}

func headingsByID(doc ast.Node) *headingIndex {
	idx := &headingIndex{byID: make(map[string]*ast.Heading)}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Level > 2 {
			return ast.WalkContinue, nil
		}
		idx.ordered = append(idx.ordered, heading)
		if id, ok := heading.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				idx.byID[string(b)] = heading
			}
		}
		return ast.WalkContinue, nil
	})
	return idx
}

// nextAtOrAbove returns the first heading after h whose level is <= h's level.
func (idx *headingIndex) nextAtOrAbove(h *ast.Heading) *ast.Heading {
	seen := false
	for _, candidate := range idx.ordered {
		if candidate == h {
			seen = true
			continue
		}
		if seen && candidate.Level <= h.Level {
			return candidate
		}
	}
	return nil
}

// lineStart moves pos back to the beginning of its line so heading markers
// ("## ") stay with the section they open.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}
