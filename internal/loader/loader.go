// Package loader turns stored payloads into renderable content, one loader
// per format. Loaders are pure with respect to the stores: they receive the
// payload bytes and never touch persistence.
package loader

import (
	"context"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Rendition is the renderable form of one book: ordered chapters for
// reflowable formats, or an external-renderer resource for fixed-layout ones.
type Rendition struct {
	Format   domain.Format
	Title    string
	Author   string
	Language string
	Chapters []domain.Chapter

	// Resource is set for fixed-layout content only. The page count there is
	// owned by the external renderer; pageCount just seeds the cursor.
	Resource  *Resource
	pageCount int
}

// PageCount returns the number of navigable pages, never below 1.
func (r *Rendition) PageCount() int {
	n := r.pageCount
	if len(r.Chapters) > 0 {
		n = len(r.Chapters)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Page returns the chapter at index i, when the rendition has inline content.
func (r *Rendition) Page(i int) (domain.Chapter, bool) {
	if i < 0 || i >= len(r.Chapters) {
		return domain.Chapter{}, false
	}
	return r.Chapters[i], true
}

// Close releases the fixed-layout resource, if any. Safe to call repeatedly;
// the release happens exactly once.
func (r *Rendition) Close() error {
	if r.Resource == nil {
		return nil
	}
	return r.Resource.Release()
}

// Loader produces a rendition from a stored payload.
type Loader interface {
	Load(ctx context.Context, payload []byte) (*Rendition, error)
}

// Registry dispatches formats to loaders via a lookup table, so adding a
// format is a new Loader plus one entry here.
type Registry map[domain.Format]Loader

// NewRegistry wires the built-in loaders. tempDir receives fixed-layout
// resource files; empty means the OS default.
func NewRegistry(tempDir string) Registry {
	return Registry{
		domain.FormatText: &TextLoader{},
		domain.FormatEPUB: &EPUBLoader{},
		domain.FormatPDF:  &PDFLoader{TempDir: tempDir},
	}
}

// For returns the loader registered for the format.
func (r Registry) For(f domain.Format) (Loader, bool) {
	l, ok := r[f]
	return l, ok
}
