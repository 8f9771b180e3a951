package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Format is the closed classification of an uploaded document. It is assigned
// once at ingestion and never recomputed.
type Format string

const (
	FormatText    Format = "TEXT"
	FormatEPUB    Format = "EPUB"
	FormatPDF     Format = "PDF"
	FormatUnknown Format = "UNKNOWN"
)

// UnknownAuthor is the sentinel author assigned at ingestion when the file
// carries no author information.
const UnknownAuthor = "Unknown Author"

// Book is one uploaded document. The metadata store holds it as JSON; Data is
// the base64 form of the payload and is present only when the payload is small
// enough to mirror outside the blob store (see meta.InlinePayloadLimit).
type Book struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	Format    Format     `json:"format"`
	Size      int64      `json:"size"`
	AddedDate time.Time  `json:"addedDate"`
	FileName  string     `json:"fileName"`
	Data      string     `json:"data,omitempty"`
	Progress  float64    `json:"progress"`
	LastRead  *time.Time `json:"lastRead,omitempty"`
}

// WithoutData returns a metadata-only projection of the book.
func (b Book) WithoutData() Book {
	b.Data = ""
	return b
}

// Bookmark marks a page inside a book. Bookmarks are append-only: created
// during a reading session, removed individually or with the owning book.
type Bookmark struct {
	ID        string    `json:"id"`
	Page      int       `json:"page"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// SanitizeMode tags how a chapter's content was produced by the sanitizer so
// renderers can pick markup or escaped-text display without re-validating.
type SanitizeMode string

const (
	// ModeStrict means the source markup was well-formed and the content is
	// sanitized markup.
	ModeStrict SanitizeMode = "strict"
	// ModeLenient means the source markup was recovered by a tolerant parse;
	// the content is still sanitized markup.
	ModeLenient SanitizeMode = "lenient"
	// ModePlainText means markup could not be recovered and the content is
	// plain text that must be escaped and whitespace-preserved when displayed.
	ModePlainText SanitizeMode = "text"
)

// Chapter is one renderable unit of a loaded book: a fixed-word page for plain
// text, or a spine section for structured documents.
type Chapter struct {
	Index   int          `json:"index"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Href    string       `json:"href,omitempty"`
	Mode    SanitizeMode `json:"mode"`
}

// Reader settings bounds. Font size moves in steps of 2 between the limits.
const (
	MinFontSize     = 12
	MaxFontSize     = 24
	FontSizeStep    = 2
	DefaultFontSize = 16
)

// FontFamilies is the closed set of selectable reader font families.
var FontFamilies = []string{"Inter", "Georgia", "Times New Roman", "Arial", "Helvetica"}

// ReaderSettings are the global display preferences, persisted under a single
// key and applied to every session.
type ReaderSettings struct {
	FontSize        int     `json:"fontSize"`
	FontFamily      string  `json:"fontFamily"`
	LineHeight      float64 `json:"lineHeight"`
	BackgroundColor string  `json:"backgroundColor"`
	TextColor       string  `json:"textColor"`
	Theme           string  `json:"theme"`
}

// DefaultSettings returns the reader settings used before the user changes
// anything, and after settings corruption.
func DefaultSettings() ReaderSettings {
	return ReaderSettings{
		FontSize:        DefaultFontSize,
		FontFamily:      "Inter",
		LineHeight:      1.6,
		BackgroundColor: "#ffffff",
		TextColor:       "#000000",
		Theme:           "light",
	}
}

// Normalize clamps the settings into their allowed ranges, falling back to
// defaults for values outside the closed sets.
func (s ReaderSettings) Normalize() ReaderSettings {
	def := DefaultSettings()
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		s.FontSize = def.FontSize
	} else if (s.FontSize-MinFontSize)%FontSizeStep != 0 {
		s.FontSize = def.FontSize
	}
	if !validFontFamily(s.FontFamily) {
		s.FontFamily = def.FontFamily
	}
	if s.LineHeight <= 0 {
		s.LineHeight = def.LineHeight
	}
	if strings.TrimSpace(s.BackgroundColor) == "" {
		s.BackgroundColor = def.BackgroundColor
	}
	if strings.TrimSpace(s.TextColor) == "" {
		s.TextColor = def.TextColor
	}
	if s.Theme != "light" && s.Theme != "dark" {
		s.Theme = def.Theme
	}
	return s
}

func validFontFamily(name string) bool {
	for _, f := range FontFamilies {
		if f == name {
			return true
		}
	}
	return false
}

// TitleFromFilename derives the default book title: the base filename with its
// extension stripped.
func TitleFromFilename(name string) string {
	base := name
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "Untitled"
	}
	return base
}

// FormatFileSize renders a byte count for display, e.g. "1.25 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	s := fmt.Sprintf("%.2f", value)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	return s + " " + units[i]
}
