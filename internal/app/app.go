// Package app wires the library's stores, the ingestion pipeline, and the
// reader session controller into one application service consumed by the
// HTTP layer.
package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/UjjwalSharma01/reader/internal/ingest"
	"github.com/UjjwalSharma01/reader/internal/loader"
	"github.com/UjjwalSharma01/reader/internal/meta"
	"github.com/UjjwalSharma01/reader/internal/reader"
	"github.com/UjjwalSharma01/reader/internal/util"
	"github.com/UjjwalSharma01/reader/pkg/blob"
	"github.com/UjjwalSharma01/reader/pkg/domain"
	"github.com/UjjwalSharma01/reader/pkg/kv"
)

// Config holds runtime configuration for the core application.
type Config struct {
	// KV and Blob override the store selection below, mainly for tests.
	KV   kv.Store
	Blob blob.Store

	DataDir string

	RedisAddr     string
	RedisPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	TempDir string
}

// App is the application service: library management plus the single active
// reading session.
type App struct {
	meta     *meta.Store
	blob     blob.Store
	pipeline *ingest.Pipeline
	sessions *reader.Controller
}

// New constructs the application. Redis and MinIO back the stores when
// configured; otherwise both tiers fall back to the local filesystem under
// DataDir.
func New(cfg Config) (*App, error) {
	kvStore := cfg.KV
	if kvStore == nil {
		var err error
		kvStore, err = selectKV(cfg)
		if err != nil {
			return nil, err
		}
	}
	blobStore := cfg.Blob
	if blobStore == nil {
		var err error
		blobStore, err = selectBlob(cfg)
		if err != nil {
			return nil, err
		}
	}

	metaStore := meta.New(kvStore)
	loaders := loader.NewRegistry(cfg.TempDir)
	return &App{
		meta:     metaStore,
		blob:     blobStore,
		pipeline: ingest.New(metaStore, blobStore),
		sessions: reader.NewController(metaStore, blobStore, loaders),
	}, nil
}

func selectKV(cfg Config) (kv.Store, error) {
	if cfg.RedisAddr != "" {
		return kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("dataDir required without redis")
	}
	store, err := kv.NewFileStore(cfg.DataDir + "/meta")
	if err != nil {
		return nil, fmt.Errorf("init metadata store: %w", err)
	}
	return store, nil
}

func selectBlob(cfg Config) (blob.Store, error) {
	if cfg.MinioEndpoint != "" {
		store, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init blob store: %w", err)
		}
		return store, nil
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("dataDir required without minio")
	}
	store, err := blob.NewFileStore(cfg.DataDir + "/blob")
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	return store, nil
}

// Ingest adds one uploaded file to the library.
func (a *App) Ingest(ctx context.Context, fileName, mediaType string, r io.Reader) (domain.Book, error) {
	return a.pipeline.Ingest(ctx, fileName, mediaType, r)
}

// ListBooks returns metadata-only projections of the library, filtered by a
// case-insensitive substring over title and author and sorted by the given
// field. Sort keys: title, author (ascending), addedDate (newest first,
// the default).
func (a *App) ListBooks(query, sortKey string) ([]domain.Book, error) {
	books, err := a.meta.Books()
	if err != nil {
		return nil, err
	}
	filtered := books[:0]
	q := strings.ToLower(strings.TrimSpace(query))
	for _, b := range books {
		if q != "" &&
			!strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) {
			continue
		}
		filtered = append(filtered, b.WithoutData())
	}
	sortBooks(filtered, sortKey)
	return filtered, nil
}

func sortBooks(books []domain.Book, key string) {
	switch key {
	case "title":
		sort.SliceStable(books, func(i, j int) bool {
			return strings.ToLower(books[i].Title) < strings.ToLower(books[j].Title)
		})
	case "author":
		sort.SliceStable(books, func(i, j int) bool {
			return strings.ToLower(books[i].Author) < strings.ToLower(books[j].Author)
		})
	default:
		sort.SliceStable(books, func(i, j int) bool {
			return books[i].AddedDate.After(books[j].AddedDate)
		})
	}
}

// GetBook retrieves one record as its metadata view.
func (a *App) GetBook(id string) (domain.Book, bool, error) {
	book, ok, err := a.meta.GetBook(id)
	return book.WithoutData(), ok, err
}

// DeleteBook removes a book from both tiers. The metadata removal is the one
// that must succeed; a blob delete failure is logged and absorbed so the book
// always leaves the library. Deleting the open book closes its session first.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	_, ok, err := a.meta.GetBook(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBookNotFound
	}
	if a.sessions.ActiveBookID() == id {
		if err := a.sessions.Close(ctx); err != nil {
			util.LoggerFromContext(ctx).Warn("close session of deleted book", "book_id", id, "err", err)
		}
	}
	if err := a.meta.RemoveBook(id); err != nil {
		return err
	}
	if err := a.blob.Delete(ctx, id); err != nil {
		util.LoggerFromContext(ctx).Warn("blob delete failed, metadata removed", "book_id", id, "err", err)
	}
	return nil
}

// Sessions exposes the reader session controller.
func (a *App) Sessions() *reader.Controller {
	return a.sessions
}

// Settings returns the global reader settings.
func (a *App) Settings() (domain.ReaderSettings, error) {
	return a.meta.Settings()
}

// SaveSettings persists the global reader settings, normalized.
func (a *App) SaveSettings(settings domain.ReaderSettings) (domain.ReaderSettings, error) {
	normalized := settings.Normalize()
	if err := a.meta.SaveSettings(normalized); err != nil {
		return domain.ReaderSettings{}, err
	}
	return normalized, nil
}
