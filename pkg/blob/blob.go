// Package blob is the binary-capable persistence tier. It is the durable
// owner of book payloads; the metadata store only mirrors small payloads in
// encoded form. The two tiers are not transactionally coupled: callers treat
// blob failures as non-fatal wherever a metadata-only view stays usable.
package blob

import (
	"context"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Record is the full persisted form of a book: its metadata plus the raw
// binary payload. The embedded book never carries encoded payload text here.
type Record struct {
	Book    domain.Book `json:"book"`
	Payload []byte      `json:"-"`
}

// Store persists full book records keyed by book id. Opening the underlying
// medium is lazy and idempotent; each operation is its own transaction. A
// missing record is (Record{}, false, nil); errors wrap
// domain.ErrStoreUnavailable.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]Record, error)
}
