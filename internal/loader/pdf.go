package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Resource is a released-exactly-once handle to an on-disk file backing a
// fixed-layout rendition.
type Resource struct {
	Path string

	once sync.Once
	err  error
}

// Release removes the backing file. Subsequent calls return the first result.
func (r *Resource) Release() error {
	r.once.Do(func() {
		if r.Path != "" {
			r.err = os.Remove(r.Path)
		}
	})
	return r.err
}

// PDFLoader stages fixed-layout payloads on disk for an external renderer.
// It does not rasterize; it counts pages to seed navigation and hands the
// renderer a file path through the rendition's Resource.
type PDFLoader struct {
	// TempDir receives the staged files. Empty means the OS default.
	TempDir string
}

// Load writes the payload to a temp file and determines the page count. A
// payload the page counter cannot parse still loads with a count of 1; the
// external renderer is the authority on the real count.
func (l *PDFLoader) Load(_ context.Context, payload []byte) (*Rendition, error) {
	f, err := os.CreateTemp(l.TempDir, "reader-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("stage document: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage document: %w", err)
	}
	return &Rendition{
		Format:    domain.FormatPDF,
		Resource:  &Resource{Path: f.Name()},
		pageCount: countPages(payload),
	}, nil
}

// countPages reads the page count from the document catalog. The parser can
// panic on malformed input, so failures of any kind fall back to 1.
func countPages(payload []byte) (n int) {
	n = 1
	defer func() {
		if recover() != nil {
			n = 1
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return 1
	}
	if pages := r.NumPage(); pages > 0 {
		n = pages
	}
	return n
}
