package parser

import (
	"strings"
	"testing"
)

func TestTextSource_FormFeedPages(t *testing.T) {
	input := "First page line one.\r\nFirst page line two.\fSecond page.\f\fFourth page."
	pages, err := (&TextSource{}).Pages(strings.NewReader(input), "manual.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}

	want := []string{
		"First page line one.\nFirst page line two.",
		"Second page.",
		"",
		"Fourth page.",
	}
	for i, w := range want {
		if pages[i].PageNo != i+1 {
			t.Errorf("page[%d]: expected number %d, got %d", i, i+1, pages[i].PageNo)
		}
		if pages[i].Text != w {
			t.Errorf("page[%d]: expected %q, got %q", i, w, pages[i].Text)
		}
	}
}

func TestTextSource_SinglePage(t *testing.T) {
	pages, err := (&TextSource{}).Pages(strings.NewReader("Hello world"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "Hello world" || pages[0].PageNo != 1 {
		t.Errorf("unexpected pages: %+v", pages)
	}
}

func TestTextSource_TrailingFormFeed(t *testing.T) {
	pages, err := (&TextSource{}).Pages(strings.NewReader("one\ftwo\f"), "out.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected trailing form feed to be ignored, got %d pages", len(pages))
	}
}

func TestTextSource_EmptyInput(t *testing.T) {
	pages, err := (&TextSource{}).Pages(strings.NewReader("  \n"), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected 0 pages, got %d", len(pages))
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"manual.pdf", "*parser.PDFSource", false},
		{"MANUAL.PDF", "*parser.PDFSource", false},
		{"notes.txt", "*parser.TextSource", false},
		{"guide.md", "*parser.MarkdownSource", false},
		{"guide.markdown", "*parser.MarkdownSource", false},
		{"page.htm", "*parser.HTMLSource", false},
		{"manual.docx", "*parser.DOCXSource", false},
		{"data.csv", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		src, err := ForFile(tt.name, Options{FallbackPdftotext: true})
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil {
			if got := typeName(src); got != tt.want {
				t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
			}
		}
	}

	src, _ := ForFile("m.pdf", Options{FallbackPdftotext: true})
	if !src.(*PDFSource).FallbackPdftotext {
		t.Error("expected pdftotext fallback option to be passed through")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("Owners_Manual.pdf") {
		t.Error("pdf should be supported")
	}
	if IsSupportedExtension("sheet.xlsx") {
		t.Error("xlsx should not be supported")
	}
}

func TestSplitPagesBasic(t *testing.T) {
	got := splitPages("a\fb\f  \n")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %q", got)
	}
	if got := splitPages("only"); len(got) != 1 {
		t.Errorf("got %q", got)
	}
}
