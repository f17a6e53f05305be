package structure

import (
	"reflect"
	"testing"

	"github.com/dgallion1/manualqa/internal/config"
	"github.com/dgallion1/manualqa/internal/manual"
)

func TestExtractHeadings_Layers(t *testing.T) {
	text := "Charging ........ 180\n" +
		"OPENING THE CHARGE PORT\n" +
		"Charge Port Light\n" +
		"using the mobile app\n" +
		"This is an ordinary sentence that ends with a period.\n" +
		"\n" +
		"Step 1 of 3"
	got := ExtractHeadings(text)
	want := []string{"Charge Port Light", "Charging", "Opening The Charge Port", "using the mobile app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractHeadings_Deduplicates(t *testing.T) {
	got := ExtractHeadings("Seat Belts\nSeat Belts\nSEAT BELTS")
	if !reflect.DeepEqual(got, []string{"Seat Belts"}) {
		t.Errorf("got %q", got)
	}
}

func TestExtractHeadings_UppercaseLengthBounds(t *testing.T) {
	if got := ExtractHeadings("OK"); len(got) != 0 {
		t.Errorf("two-letter uppercase line should not be a heading, got %q", got)
	}
	long := "THIS UPPERCASE LINE IS FAR TOO LONG TO BE A HEADING IN ANY REASONABLE MANUAL"
	for _, h := range ExtractHeadings(long) {
		if h == TitleCase(long) {
			t.Errorf("line over 60 characters should not be captured as uppercase heading")
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"OPENING THE CHARGE PORT": "Opening The Charge Port",
		"12V BATTERY":             "12V Battery",
		"DON'T":                   "Don'T",
	}
	for in, want := range tests {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectChapter(t *testing.T) {
	e := NewExtractor(config.DefaultProfile())
	tests := []struct {
		name string
		text string
		want string
	}{
		{"toc dots", "Contents\nCharging ..... 180", OverviewChapter},
		{"ellipsis anywhere", "Wait... then drive", OverviewChapter},
		{"highest count", "Charging is easy. Charging at home. Driving is fun.", "Charging"},
		{"case insensitive whole word", "SAFETY first; safety always. Safetynet is not counted.", "Safety"},
		{"no chapter", "The quick brown fox.", ""},
		{"tie breaks alphabetically", "Driving and charging.", "Charging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.DetectChapter(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeSpans_OnlyAdjacent(t *testing.T) {
	in := []manual.SectionSpan{
		{Heading: "A", PageStart: 1, PageEnd: 1},
		{Heading: "A", PageStart: 2, PageEnd: 2},
		{Heading: "B", PageStart: 3, PageEnd: 3},
		{Heading: "A", PageStart: 4, PageEnd: 4},
	}
	got := MergeSpans(in)
	want := []manual.SectionSpan{
		{Heading: "A", PageStart: 1, PageEnd: 2},
		{Heading: "B", PageStart: 3, PageEnd: 3},
		{Heading: "A", PageStart: 4, PageEnd: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMergeSpans_Empty(t *testing.T) {
	if got := MergeSpans(nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestExtractSections(t *testing.T) {
	e := NewExtractor(config.DefaultProfile())
	pages := []manual.Page{
		{PageNo: 2, Text: "Seat Belts\nWear your seat belt. Safety matters."},
		{PageNo: 1, Text: "Seat Belts\nSafety first."},
		{PageNo: 3, Text: "Tesla Mobile App\nCharging Status\nCharging from the app."},
	}
	got := e.ExtractSections(pages)

	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d: %+v", len(got), got)
	}
	if got[0].Heading != "Seat Belts" || got[0].PageStart != 1 || got[0].PageEnd != 2 {
		t.Errorf("span 0: %+v", got[0])
	}
	if got[0].Chapter != "Safety" {
		t.Errorf("span 0 chapter: got %q", got[0].Chapter)
	}
	if got[1].Heading != "Charging Status" || got[1].Chapter != "Charging" || got[1].PageStart != 3 {
		t.Errorf("span 1: %+v", got[1])
	}
}

func TestExtractSections_CustomExclusions(t *testing.T) {
	p := config.Profile{Source: "X", Chapters: []string{"Brakes"}, HeadingExclusions: []string{"Acme"}}
	e := NewExtractor(p)
	got := e.ExtractSections([]manual.Page{{PageNo: 1, Text: "Acme Brake Pads\nBrake Fluid Check\nBrakes wear."}})
	if len(got) != 1 || got[0].Heading != "Brake Fluid Check" || got[0].Chapter != "Brakes" {
		t.Errorf("got %+v", got)
	}
}
