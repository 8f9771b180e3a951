// Package ingest turns an uploaded file into a persisted book record. The
// format gate runs before any byte is read, the blob write is best-effort,
// and the library append is the commit point.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/UjjwalSharma01/reader/internal/format"
	"github.com/UjjwalSharma01/reader/internal/meta"
	"github.com/UjjwalSharma01/reader/internal/util"
	"github.com/UjjwalSharma01/reader/pkg/blob"
	"github.com/UjjwalSharma01/reader/pkg/codec"
	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Pipeline writes uploads into both persistence tiers.
type Pipeline struct {
	meta *meta.Store
	blob blob.Store
}

// New builds a pipeline over the two stores.
func New(metaStore *meta.Store, blobStore blob.Store) *Pipeline {
	return &Pipeline{meta: metaStore, blob: blobStore}
}

// Ingest classifies the upload, reads it, and persists a new book record.
// Classification happens before the first read so unsupported files are
// rejected without touching their bytes. A blob write failure is logged and
// absorbed: the record still lands in the metadata store, carrying whatever
// payload fits inline, because losing the payload beats losing the upload.
// The returned record is the metadata view (inline data included when small
// enough).
func (p *Pipeline) Ingest(ctx context.Context, fileName, mediaType string, r io.Reader) (domain.Book, error) {
	f := format.Classify(mediaType, fileName)
	if f == domain.FormatUnknown {
		return domain.Book{}, fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedFormat, fileName, mediaType)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return domain.Book{}, fmt.Errorf("%w: %s: %v", domain.ErrReadFailure, fileName, err)
	}

	book := domain.Book{
		ID:        util.NewID(),
		Title:     domain.TitleFromFilename(fileName),
		Author:    domain.UnknownAuthor,
		Format:    f,
		Size:      int64(len(payload)),
		AddedDate: time.Now().UTC(),
		FileName:  fileName,
		Progress:  0,
	}

	if err := p.blob.Put(ctx, blob.Record{Book: book, Payload: payload}); err != nil {
		util.LoggerFromContext(ctx).Warn("blob write failed, keeping metadata record",
			"book_id", book.ID, "file", fileName, "err", err)
	}

	if int64(len(payload)) <= meta.InlinePayloadLimit {
		book.Data = codec.Encode(payload)
	}
	if err := p.meta.AppendBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("append book %q: %w", book.ID, err)
	}

	slog.Debug("book ingested",
		"book_id", book.ID, "format", book.Format,
		"size", domain.FormatFileSize(book.Size), "inline", book.Data != "")
	return book, nil
}
