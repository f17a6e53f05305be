package parser

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
)

// PageSource converts raw document bytes into an ordered list of pages. A page
// that cannot be extracted is returned with empty text rather than failing the
// whole document.
type PageSource interface {
	Pages(r io.Reader, filename string) ([]manual.Page, error)
}

// Options tunes the page sources returned by ForFile.
type Options struct {
	FallbackPdftotext bool
	Log               *slog.Logger
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate page source for a filename.
func ForFile(filename string, opts Options) (PageSource, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextSource{}, nil
	case ".md", ".markdown":
		return &MarkdownSource{}, nil
	case ".html", ".htm":
		return &HTMLSource{}, nil
	case ".pdf":
		return &PDFSource{FallbackPdftotext: opts.FallbackPdftotext, Log: opts.Log}, nil
	case ".docx":
		return &DOCXSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// numberPages turns page texts into 1-based pages.
func numberPages(texts []string) []manual.Page {
	pages := make([]manual.Page, 0, len(texts))
	for i, t := range texts {
		pages = append(pages, manual.Page{PageNo: i + 1, Text: t})
	}
	return pages
}
