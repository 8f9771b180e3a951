package format

import (
	"testing"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		mediaType string
		filename  string
		want      domain.Format
	}{
		{"epub by media type", "application/epub+zip", "whatever.bin", domain.FormatEPUB},
		{"pdf by media type", "application/pdf", "doc", domain.FormatPDF},
		{"text by media type", "text/plain", "notes", domain.FormatText},
		{"html by media type", "text/html", "page", domain.FormatText},
		{"media type with params", "text/plain; charset=utf-8", "notes", domain.FormatText},
		{"epub by suffix", "", "Book.EPUB", domain.FormatEPUB},
		{"pdf by suffix", "application/octet-stream", "manual.pdf", domain.FormatPDF},
		{"txt by suffix", "", "notes.txt", domain.FormatText},
		{"html by suffix", "", "index.HTML", domain.FormatText},
		{"media type wins over suffix", "application/pdf", "file.txt", domain.FormatPDF},
		{"unknown media and suffix", "image/png", "photo.png", domain.FormatUnknown},
		{"no hints", "", "README", domain.FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.mediaType, tc.filename); got != tc.want {
				t.Fatalf("Classify(%q, %q) = %v, want %v", tc.mediaType, tc.filename, got, tc.want)
			}
		})
	}
}

func TestSupportGateMatchesClassifier(t *testing.T) {
	supported := []struct{ mediaType, filename string }{
		{"application/epub+zip", "a"},
		{"application/pdf", "b"},
		{"text/plain", "c"},
		{"text/html", "d"},
		{"", "a.epub"},
		{"", "b.pdf"},
		{"", "c.txt"},
		{"", "d.html"},
	}
	for _, tc := range supported {
		if !IsSupported(tc.mediaType, tc.filename) {
			t.Fatalf("IsSupported(%q, %q) = false, want true", tc.mediaType, tc.filename)
		}
		if Classify(tc.mediaType, tc.filename) == domain.FormatUnknown {
			t.Fatalf("supported file (%q, %q) classified UNKNOWN", tc.mediaType, tc.filename)
		}
	}
	if IsSupported("image/jpeg", "cover.jpg") {
		t.Fatal("IsSupported accepted an unlisted pair")
	}
}
