package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFSource extracts one Page per physical PDF page. It tries the Go library
// first, then falls back to pdftotext if enabled.
type PDFSource struct {
	FallbackPdftotext bool
	Log               *slog.Logger
}

func (p *PDFSource) Pages(r io.Reader, filename string) ([]manual.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "manualqa-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := p.extractPages(tmpPath)
	if err != nil && p.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		if err == nil {
			pages = numberPages(splitPages(text))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf %s: %w", filename, err)
	}
	return pages, nil
}

func (p *PDFSource) extractPages(path string) (pages []manual.Page, err error) {
	// A broken trailer or page tree can panic before any single page is reached.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read page tree: panic: %v", r)
		}
	}()
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return collectPages(reader.NumPage(), func(no int) (manual.Page, error) {
		pg := reader.Page(no)
		if pg.V.IsNull() {
			return manual.Page{}, errors.New("page missing")
		}
		var page manual.Page
		page.Width, page.Height = mediaBox(pg)
		text, err := pg.GetPlainText(nil)
		if err != nil {
			return manual.Page{}, err
		}
		page.Text = text
		return page, nil
	}, p.logger()), nil
}

// collectPages extracts pages 1..n in order. A page whose extraction fails or
// panics becomes an empty page carrying its number.
func collectPages(n int, extract func(no int) (manual.Page, error), log *slog.Logger) []manual.Page {
	pages := make([]manual.Page, 0, n)
	for no := 1; no <= n; no++ {
		page, err := extractPage(no, extract)
		if err != nil {
			log.Warn("pdf page extraction failed, using empty page", "page", no, "error", err)
			page = manual.Page{}
		}
		page.PageNo = no
		pages = append(pages, page)
	}
	return pages
}

// extractPage recovers from the library's panics on malformed pages.
func extractPage(no int, extract func(no int) (manual.Page, error)) (page manual.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return extract(no)
}

func mediaBox(pg pdflib.Page) (float64, float64) {
	box := pg.V.Key("MediaBox")
	if box.Kind() != pdflib.Array || box.Len() < 4 {
		return 0, 0
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	return w, h
}

func (p *PDFSource) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// splitPages splits pdftotext output on form feeds. The trailing form feed
// pdftotext emits after the last page does not start a new page.
func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
