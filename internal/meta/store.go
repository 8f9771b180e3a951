// Package meta is the synchronous-view metadata store: the ordered book
// collection, global reader settings, and per-book bookmark collections, all
// serialized as JSON text over the key-value port. Read-modify-write is the
// only update pattern; a corrupted value decodes to its defined default
// instead of failing.
package meta

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/UjjwalSharma01/reader/pkg/domain"
	"github.com/UjjwalSharma01/reader/pkg/kv"
)

// InlinePayloadLimit is the largest payload mirrored into the metadata store
// in encoded form. Larger payloads live only in the blob store and the
// metadata record carries no data field.
const InlinePayloadLimit = 1 << 20

const (
	booksKey    = "library:books"
	settingsKey = "reader:settings"
)

func bookmarksKey(bookID string) string {
	return "bookmarks:" + bookID
}

// Store wraps the key-text port with the library's persisted layout.
type Store struct {
	kv kv.Store
}

// New builds a metadata store over the given key-value backend.
func New(backend kv.Store) *Store {
	return &Store{kv: backend}
}

// Books returns the ordered collection. A missing or corrupted key yields an
// empty collection.
func (s *Store) Books() ([]domain.Book, error) {
	raw, ok, err := s.kv.Get(booksKey)
	if err != nil {
		return nil, fmt.Errorf("read book collection: %w", err)
	}
	if !ok {
		return []domain.Book{}, nil
	}
	var books []domain.Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		slog.Warn("book collection corrupted, resetting to empty", "err", err)
		return []domain.Book{}, nil
	}
	return books, nil
}

// SaveBooks replaces the whole collection, dropping duplicate ids (first
// occurrence wins) so the invariant holds even for careless callers.
func (s *Store) SaveBooks(books []domain.Book) error {
	deduped := make([]domain.Book, 0, len(books))
	seen := make(map[string]bool, len(books))
	for _, b := range books {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		deduped = append(deduped, b)
	}
	raw, err := json.Marshal(deduped)
	if err != nil {
		return fmt.Errorf("encode book collection: %w", err)
	}
	if err := s.kv.Set(booksKey, string(raw)); err != nil {
		return fmt.Errorf("write book collection: %w", err)
	}
	return nil
}

// AppendBook reads the latest collection and appends the record. An existing
// record with the same id is replaced in place rather than duplicated.
func (s *Store) AppendBook(book domain.Book) error {
	books, err := s.Books()
	if err != nil {
		return err
	}
	replaced := false
	for i := range books {
		if books[i].ID == book.ID {
			books[i] = book
			replaced = true
			break
		}
	}
	if !replaced {
		books = append(books, book)
	}
	return s.SaveBooks(books)
}

// GetBook finds a record by id.
func (s *Store) GetBook(id string) (domain.Book, bool, error) {
	books, err := s.Books()
	if err != nil {
		return domain.Book{}, false, err
	}
	for _, b := range books {
		if b.ID == id {
			return b, true, nil
		}
	}
	return domain.Book{}, false, nil
}

// UpdateBook applies fn to the stored record under read-modify-write.
func (s *Store) UpdateBook(id string, fn func(*domain.Book)) error {
	books, err := s.Books()
	if err != nil {
		return err
	}
	for i := range books {
		if books[i].ID == id {
			fn(&books[i])
			return s.SaveBooks(books)
		}
	}
	return domain.ErrBookNotFound
}

// RemoveBook filters the record out of the collection and drops its bookmark
// collection.
func (s *Store) RemoveBook(id string) error {
	books, err := s.Books()
	if err != nil {
		return err
	}
	filtered := books[:0]
	for _, b := range books {
		if b.ID != id {
			filtered = append(filtered, b)
		}
	}
	if err := s.SaveBooks(filtered); err != nil {
		return err
	}
	if err := s.kv.Delete(bookmarksKey(id)); err != nil {
		return fmt.Errorf("drop bookmarks for %q: %w", id, err)
	}
	return nil
}

// Settings returns the global reader settings, normalized, defaulting on a
// missing or corrupted key.
func (s *Store) Settings() (domain.ReaderSettings, error) {
	raw, ok, err := s.kv.Get(settingsKey)
	if err != nil {
		return domain.ReaderSettings{}, fmt.Errorf("read settings: %w", err)
	}
	if !ok {
		return domain.DefaultSettings(), nil
	}
	var settings domain.ReaderSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("reader settings corrupted, using defaults", "err", err)
		return domain.DefaultSettings(), nil
	}
	return settings.Normalize(), nil
}

// SaveSettings persists the settings under the fixed global key.
func (s *Store) SaveSettings(settings domain.ReaderSettings) error {
	raw, err := json.Marshal(settings.Normalize())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(settingsKey, string(raw)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Bookmarks returns the bookmark collection for a book, empty on missing or
// corrupted keys.
func (s *Store) Bookmarks(bookID string) ([]domain.Bookmark, error) {
	raw, ok, err := s.kv.Get(bookmarksKey(bookID))
	if err != nil {
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	if !ok {
		return []domain.Bookmark{}, nil
	}
	var bookmarks []domain.Bookmark
	if err := json.Unmarshal([]byte(raw), &bookmarks); err != nil {
		slog.Warn("bookmarks corrupted, resetting to empty", "book_id", bookID, "err", err)
		return []domain.Bookmark{}, nil
	}
	return bookmarks, nil
}

// AppendBookmark adds one bookmark to the book's collection.
func (s *Store) AppendBookmark(bookID string, bm domain.Bookmark) error {
	bookmarks, err := s.Bookmarks(bookID)
	if err != nil {
		return err
	}
	bookmarks = append(bookmarks, bm)
	return s.saveBookmarks(bookID, bookmarks)
}

// RemoveBookmark deletes one bookmark by id. Removing an unknown id is a
// no-op.
func (s *Store) RemoveBookmark(bookID, bookmarkID string) error {
	bookmarks, err := s.Bookmarks(bookID)
	if err != nil {
		return err
	}
	filtered := bookmarks[:0]
	for _, bm := range bookmarks {
		if bm.ID != bookmarkID {
			filtered = append(filtered, bm)
		}
	}
	return s.saveBookmarks(bookID, filtered)
}

func (s *Store) saveBookmarks(bookID string, bookmarks []domain.Bookmark) error {
	raw, err := json.Marshal(bookmarks)
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}
	if err := s.kv.Set(bookmarksKey(bookID), string(raw)); err != nil {
		return fmt.Errorf("write bookmarks: %w", err)
	}
	return nil
}
