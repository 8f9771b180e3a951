package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

const (
	recordFile  = "record.json"
	payloadFile = "payload"
)

// FileStore implements Store on a local directory: one folder per book id
// holding the JSON record and the raw payload. It is the default backend when
// no object storage is configured, and what tests run against.
type FileStore struct {
	basePath string
	mu       sync.RWMutex

	initOnce sync.Once
	initErr  error
}

// NewFileStore remembers the base path; the directory is created lazily on
// first use.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("blob base path is required")
	}
	return &FileStore{basePath: basePath}, nil
}

func (f *FileStore) init() error {
	f.initOnce.Do(func() {
		if err := os.MkdirAll(f.basePath, 0o755); err != nil {
			f.initErr = fmt.Errorf("%w: create blob dir: %v", domain.ErrStoreUnavailable, err)
		}
	})
	return f.initErr
}

// Put writes the record and payload files for the book.
func (f *FileStore) Put(_ context.Context, rec Record) error {
	if err := f.init(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Book.ID) == "" {
		return fmt.Errorf("blob record requires a book id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := f.dir(rec.Book.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create record dir: %v", domain.ErrStoreUnavailable, err)
	}
	rec.Book = rec.Book.WithoutData()
	meta, err := json.Marshal(rec.Book)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, recordFile), meta, 0o644); err != nil {
		return fmt.Errorf("%w: write record: %v", domain.ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(filepath.Join(dir, payloadFile), rec.Payload, 0o644); err != nil {
		return fmt.Errorf("%w: write payload: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get reads the record for id.
func (f *FileStore) Get(_ context.Context, id string) (Record, bool, error) {
	if err := f.init(); err != nil {
		return Record{}, false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.readLocked(id)
}

func (f *FileStore) readLocked(id string) (Record, bool, error) {
	dir := f.dir(id)
	meta, err := os.ReadFile(filepath.Join(dir, recordFile))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: read record: %v", domain.ErrStoreUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(meta, &rec.Book); err != nil {
		return Record{}, false, fmt.Errorf("decode record %q: %w", id, err)
	}
	payload, err := os.ReadFile(filepath.Join(dir, payloadFile))
	if err != nil && !os.IsNotExist(err) {
		return Record{}, false, fmt.Errorf("%w: read payload: %v", domain.ErrStoreUnavailable, err)
	}
	rec.Payload = payload
	return rec, true, nil
}

// Delete removes the book's folder. Missing folders are ignored.
func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := f.init(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := f.dir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: delete record: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// GetAll returns every stored record, ordered by added date then id so the
// listing is stable.
func (f *FileStore) GetAll(_ context.Context) ([]Record, error) {
	if err := f.init(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", domain.ErrStoreUnavailable, err)
	}
	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, ok, err := f.readLocked(entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Book.AddedDate.Equal(records[j].Book.AddedDate) {
			return records[i].Book.AddedDate.Before(records[j].Book.AddedDate)
		}
		return records[i].Book.ID < records[j].Book.ID
	})
	return records, nil
}

func (f *FileStore) dir(id string) string {
	return filepath.Join(f.basePath, safeID(id))
}

func safeID(id string) string {
	id = filepath.Base(id)
	id = strings.ReplaceAll(id, string(os.PathSeparator), "_")
	id = strings.TrimSpace(id)
	if id == "" {
		return "book"
	}
	return id
}
