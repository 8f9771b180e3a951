package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/UjjwalSharma01/reader/pkg/blob"
	"github.com/UjjwalSharma01/reader/pkg/domain"
	"github.com/UjjwalSharma01/reader/pkg/kv"
)

// stubBlob counts deletes and optionally rejects them.
type stubBlob struct {
	blob.Store
	deleteErr error
	deletes   int
}

func (s *stubBlob) Delete(ctx context.Context, id string) error {
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, id)
}

func newApp(t *testing.T) (*App, *stubBlob) {
	t.Helper()
	fileBlob, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sb := &stubBlob{Store: fileBlob}
	a, err := New(Config{KV: kv.NewMemoryStore(), Blob: sb, TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, sb
}

func ingestText(t *testing.T, a *App, name, content string) domain.Book {
	t.Helper()
	book, err := a.Ingest(context.Background(), name, "text/plain", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Ingest %s: %v", name, err)
	}
	return book
}

func TestListBooksSortAndFilter(t *testing.T) {
	a, _ := newApp(t)
	ingestText(t, a, "zebra.txt", "z")
	time.Sleep(2 * time.Millisecond)
	ingestText(t, a, "apple.txt", "a")
	time.Sleep(2 * time.Millisecond)
	ingestText(t, a, "mango.txt", "m")

	byTitle, err := a.ListBooks("", "title")
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if got := titles(byTitle); got != "apple,mango,zebra" {
		t.Fatalf("sort=title -> %s", got)
	}

	newest, err := a.ListBooks("", "")
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if got := titles(newest); got != "mango,apple,zebra" {
		t.Fatalf("default sort -> %s", got)
	}

	filtered, err := a.ListBooks("ANG", "")
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if got := titles(filtered); got != "mango" {
		t.Fatalf("q=ANG -> %s", got)
	}

	for _, b := range newest {
		if b.Data != "" {
			t.Fatalf("listing leaked inline payload for %q", b.Title)
		}
	}
}

func titles(books []domain.Book) string {
	parts := make([]string, len(books))
	for i, b := range books {
		parts[i] = b.Title
	}
	return strings.Join(parts, ",")
}

func TestDeleteBookSurvivesBlobFailure(t *testing.T) {
	a, sb := newApp(t)
	book := ingestText(t, a, "doomed.txt", "short lived")
	sb.deleteErr = domain.ErrStoreUnavailable

	if err := a.DeleteBook(context.Background(), book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if sb.deletes != 1 {
		t.Fatalf("blob delete attempted %d times", sb.deletes)
	}
	if _, ok, _ := a.GetBook(book.ID); ok {
		t.Fatal("book still listed after delete")
	}
}

func TestDeleteUnknownBook(t *testing.T) {
	a, _ := newApp(t)
	if err := a.DeleteBook(context.Background(), "nope"); !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestDeleteOpenBookClosesSession(t *testing.T) {
	a, _ := newApp(t)
	book := ingestText(t, a, "open.txt", strings.Repeat("w ", 100))

	if _, err := a.Sessions().Open(context.Background(), book.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := a.DeleteBook(context.Background(), book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := a.Sessions().View(); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("session survived delete: %v", err)
	}
}

func TestIngestReopenRoundTrip(t *testing.T) {
	a, _ := newApp(t)
	book := ingestText(t, a, "notes.txt", strings.Repeat("word ", 1200))
	if book.Title != "notes" || book.Format != domain.FormatText {
		t.Fatalf("record = %+v", book)
	}

	for i := 0; i < 2; i++ {
		v, err := a.Sessions().Open(context.Background(), book.ID)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if v.TotalPages != 3 {
			t.Fatalf("open #%d TotalPages = %d, want 3", i, v.TotalPages)
		}
		if err := a.Sessions().Close(context.Background()); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
}

func TestSettingsRoundTripAndNormalize(t *testing.T) {
	a, _ := newApp(t)
	got, err := a.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got != domain.DefaultSettings() {
		t.Fatalf("initial settings = %+v", got)
	}

	saved, err := a.SaveSettings(domain.ReaderSettings{
		FontSize: 99, FontFamily: "Comic Sans", LineHeight: 1.8,
		BackgroundColor: "#111111", TextColor: "#eeeeee", Theme: "dark",
	})
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if saved.FontSize != domain.DefaultFontSize || saved.FontFamily != "Inter" {
		t.Fatalf("out-of-range values not normalized: %+v", saved)
	}
	if saved.Theme != "dark" || saved.LineHeight != 1.8 {
		t.Fatalf("valid values lost: %+v", saved)
	}

	reread, _ := a.Settings()
	if reread != saved {
		t.Fatalf("persisted settings = %+v, want %+v", reread, saved)
	}
}
