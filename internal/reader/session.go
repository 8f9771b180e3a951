// Package reader drives one open reading session at a time: record
// resolution across both stores, format dispatch, navigation, bookmarks, and
// settings. Opening a book supersedes the active session and releases its
// resources.
package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/UjjwalSharma01/reader/internal/loader"
	"github.com/UjjwalSharma01/reader/internal/meta"
	"github.com/UjjwalSharma01/reader/internal/pagination"
	"github.com/UjjwalSharma01/reader/internal/util"
	"github.com/UjjwalSharma01/reader/pkg/blob"
	"github.com/UjjwalSharma01/reader/pkg/codec"
	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// View is the unified session snapshot handed to the presentation layer.
// IsLoading stays false in the synchronous API; it exists so the shape
// matches what an asynchronous shell expects.
type View struct {
	BookID      string                `json:"bookId"`
	IsLoading   bool                  `json:"isLoading"`
	Error       string                `json:"error,omitempty"`
	CurrentPage int                   `json:"currentPage"`
	TotalPages  int                   `json:"totalPages"`
	Page        domain.Chapter        `json:"page"`
	Resource    string                `json:"resource,omitempty"`
	Bookmarks   []domain.Bookmark     `json:"bookmarks"`
	Settings    domain.ReaderSettings `json:"settings"`
}

// Controller owns the active session. All methods are safe for concurrent
// use; at most one session is live.
type Controller struct {
	meta    *meta.Store
	blob    blob.Store
	loaders loader.Registry

	mu      sync.Mutex
	session *session
}

type session struct {
	book      domain.Book
	rendition *loader.Rendition
	cursor    *pagination.Cursor
	bookmarks []domain.Bookmark
}

// NewController builds a session controller over the stores and the loader
// registry.
func NewController(metaStore *meta.Store, blobStore blob.Store, loaders loader.Registry) *Controller {
	return &Controller{meta: metaStore, blob: blobStore, loaders: loaders}
}

// Open loads the book and makes it the active session, superseding and
// releasing any previous one. The payload resolves metadata-first: an inline
// data field wins, the blob store is the fallback, and when both miss the
// open fails with domain.ErrBookDataNotFound.
func (c *Controller) Open(ctx context.Context, bookID string) (View, error) {
	book, payload, err := c.resolve(ctx, bookID)
	if err != nil {
		return View{}, err
	}

	l, ok := c.loaders.For(book.Format)
	if !ok {
		return View{}, fmt.Errorf("%w: no loader for format %q", domain.ErrUnsupportedFormat, book.Format)
	}
	rendition, err := l.Load(ctx, payload)
	if err != nil {
		return View{}, fmt.Errorf("load %q: %w", bookID, err)
	}

	bookmarks, err := c.meta.Bookmarks(bookID)
	if err != nil {
		rendition.Close()
		return View{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		if err := c.session.rendition.Close(); err != nil {
			util.LoggerFromContext(ctx).Warn("release superseded session",
				"book_id", c.session.book.ID, "err", err)
		}
	}
	c.session = &session{
		book:      book,
		rendition: rendition,
		cursor:    pagination.New(rendition.PageCount()),
		bookmarks: bookmarks,
	}
	return c.viewLocked()
}

// resolve returns the record and its raw payload, metadata store first.
func (c *Controller) resolve(ctx context.Context, bookID string) (domain.Book, []byte, error) {
	book, found, err := c.meta.GetBook(bookID)
	if err != nil {
		return domain.Book{}, nil, err
	}
	if found && book.Data != "" {
		payload, err := codec.Decode(book.Data)
		if err != nil {
			return domain.Book{}, nil, fmt.Errorf("inline payload of %q: %w", bookID, err)
		}
		return book, payload, nil
	}

	rec, ok, err := c.blob.Get(ctx, bookID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("blob read failed during open", "book_id", bookID, "err", err)
	}
	// A record whose payload object is gone (nil, as opposed to a stored
	// empty payload) is as unreadable as a missing record.
	if ok && rec.Payload != nil {
		if !found {
			book = rec.Book
		}
		return book, rec.Payload, nil
	}
	return domain.Book{}, nil, fmt.Errorf("%w: %q", domain.ErrBookDataNotFound, bookID)
}

// Close releases the active session's resources and stamps the record's
// last-read time. Closing with no session open is an error.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return domain.ErrNoSession
	}
	s := c.session
	c.session = nil

	err := s.rendition.Close()
	now := time.Now().UTC()
	if uerr := c.meta.UpdateBook(s.book.ID, func(b *domain.Book) {
		b.LastRead = &now
	}); uerr != nil {
		util.LoggerFromContext(ctx).Warn("record last-read time", "book_id", s.book.ID, "err", uerr)
	}
	return err
}

// View returns the current session snapshot.
func (c *Controller) View() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() (View, error) {
	if c.session == nil {
		return View{}, domain.ErrNoSession
	}
	s := c.session
	settings, err := c.meta.Settings()
	if err != nil {
		return View{}, err
	}
	v := View{
		BookID:      s.book.ID,
		CurrentPage: s.cursor.Current(),
		TotalPages:  s.cursor.Total(),
		Bookmarks:   s.bookmarks,
		Settings:    settings,
	}
	if page, ok := s.rendition.Page(s.cursor.Current()); ok {
		v.Page = page
	}
	if s.rendition.Resource != nil {
		v.Resource = s.rendition.Resource.Path
	}
	return v, nil
}

// GoTo moves the session cursor, clamped to the valid range.
func (c *Controller) GoTo(page int) (View, error) {
	return c.navigate(func(cur *pagination.Cursor) { cur.GoTo(page) })
}

// Next advances one page; no-op on the last page.
func (c *Controller) Next() (View, error) {
	return c.navigate(func(cur *pagination.Cursor) { cur.Next() })
}

// Prev steps back one page; no-op on page 0.
func (c *Controller) Prev() (View, error) {
	return c.navigate(func(cur *pagination.Cursor) { cur.Prev() })
}

func (c *Controller) navigate(move func(*pagination.Cursor)) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return View{}, domain.ErrNoSession
	}
	move(c.session.cursor)
	return c.viewLocked()
}

// AddBookmark bookmarks the page the cursor is on at call time.
func (c *Controller) AddBookmark(note string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return View{}, domain.ErrNoSession
	}
	bm := domain.Bookmark{
		ID:        util.NewID(),
		Page:      c.session.cursor.Current(),
		Timestamp: time.Now().UTC(),
		Note:      note,
	}
	if err := c.meta.AppendBookmark(c.session.book.ID, bm); err != nil {
		return View{}, err
	}
	c.session.bookmarks = append(c.session.bookmarks, bm)
	return c.viewLocked()
}

// RemoveBookmark deletes one bookmark from the active session's book.
func (c *Controller) RemoveBookmark(bookmarkID string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return View{}, domain.ErrNoSession
	}
	if err := c.meta.RemoveBookmark(c.session.book.ID, bookmarkID); err != nil {
		return View{}, err
	}
	filtered := c.session.bookmarks[:0]
	for _, bm := range c.session.bookmarks {
		if bm.ID != bookmarkID {
			filtered = append(filtered, bm)
		}
	}
	c.session.bookmarks = filtered
	return c.viewLocked()
}

// ActiveBookID reports the open session's book id, empty when none is open.
func (c *Controller) ActiveBookID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.book.ID
}
