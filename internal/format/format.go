// Package format classifies uploaded files into the closed format set used by
// the rest of the pipeline. Classification is pure: no I/O, no side effects.
package format

import (
	"strings"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// mediaTypes maps declared MIME types to format tags. Checked before the
// filename suffix so an explicit content type always wins.
var mediaTypes = map[string]domain.Format{
	"application/epub+zip": domain.FormatEPUB,
	"application/pdf":      domain.FormatPDF,
	"text/plain":           domain.FormatText,
	"text/html":            domain.FormatText,
}

// suffixes maps lowercase filename extensions to format tags.
var suffixes = map[string]domain.Format{
	".epub": domain.FormatEPUB,
	".pdf":  domain.FormatPDF,
	".txt":  domain.FormatText,
	".html": domain.FormatText,
}

// Classify returns exactly one format tag for the declared media type and
// filename. Media type takes precedence; the suffix match is case-insensitive;
// anything unlisted is FormatUnknown.
func Classify(mediaType, filename string) domain.Format {
	if f, ok := mediaTypes[normalizeMediaType(mediaType)]; ok {
		return f
	}
	lower := strings.ToLower(filename)
	for suffix, f := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			return f
		}
	}
	return domain.FormatUnknown
}

// IsSupported reports whether the upload gate should accept the file. It uses
// the same precedence as Classify, so an accepted file always classifies to a
// non-UNKNOWN tag.
func IsSupported(mediaType, filename string) bool {
	return Classify(mediaType, filename) != domain.FormatUnknown
}

// AllowedExtensions lists the upload allow-list in a stable order.
func AllowedExtensions() []string {
	return []string{".epub", ".pdf", ".txt", ".html"}
}

func normalizeMediaType(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	// Drop parameters like "; charset=utf-8".
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
