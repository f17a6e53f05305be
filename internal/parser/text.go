package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
)

// TextSource handles plain text manuals, typically pdftotext output. Form
// feeds separate pages; a file without them is a single page.
type TextSource struct{}

func (p *TextSource) Pages(r io.Reader, filename string) ([]manual.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return numberPages(splitPages(text)), nil
}
