package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
	"golang.org/x/net/html"
)

// HTMLSource handles HTML exports of a manual. An <hr> or an element whose
// class list contains "page" starts a new page. Headings are emitted in upper
// case on their own line.
type HTMLSource struct{}

func (p *HTMLSource) Pages(r io.Reader, filename string) ([]manual.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", filename, err)
	}

	var pages []string
	var current strings.Builder
	flush := func() {
		t := strings.TrimSpace(current.String())
		if t != "" || len(pages) > 0 {
			pages = append(pages, t)
		}
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

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "hr" {
				flush()
				return
			}
			if hasClass(n, "page") && current.Len() > 0 {
				flush()
			}
			if headingLevel(n.Data) > 0 {
				write(strings.ToUpper(textContent(n)))
				return
			}
			switch n.Data {
			case "script", "style", "nav", "head":
				return
			case "p", "li", "td", "blockquote", "pre":
				write(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	if strings.TrimSpace(current.String()) != "" {
		flush()
	}

	if len(pages) == 0 {
		return nil, nil
	}
	return numberPages(pages), nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
