package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownSource handles Markdown manuals using goldmark. A thematic break
// (---) starts a new page. Headings are emitted in upper case on their own
// line so the structure extractor recognizes them.
type MarkdownSource struct{}

func (p *MarkdownSource) Pages(r io.Reader, filename string) ([]manual.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var pages []string
	var current strings.Builder
	flush := func() {
		pages = append(pages, strings.TrimSpace(current.String()))
		current.Reset()
	}
	write := func(s string) {
		if s == "" {
			return
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(s)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			flush()
		case *ast.Heading:
			write(strings.ToUpper(extractText(node, src)))
		default:
			write(extractText(n, src))
		}
	}
	flush()

	if len(pages) == 1 && pages[0] == "" {
		return nil, nil
	}
	return numberPages(pages), nil
}

// extractText gets the text content of a goldmark AST node. Block children
// are separated by newlines.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeText(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeText(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Text:
		buf.Write(node.Value(src))
		if node.HardLineBreak() || node.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return
	case *ast.String:
		buf.Write(node.Value)
		return
	}

	// Code blocks carry raw lines and no inline children.
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		writeText(buf, c, src)
	}
}
