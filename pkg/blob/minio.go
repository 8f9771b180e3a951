package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

const (
	recordObject  = "record.json"
	payloadObject = "payload"
	keyPrefix     = "books/"
)

// MinioStore implements Store on MinIO/S3 compatible object storage. Each
// book occupies two objects under books/<id>/: the JSON record and the raw
// payload.
type MinioStore struct {
	client *minio.Client
	bucket string

	initOnce sync.Once
	initErr  error
}

// NewMinioStore builds the client. The bucket is checked and created lazily on
// first use, so constructing the store never touches the network.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// init ensures the bucket exists. Idempotent across repeated calls; the first
// failure is sticky for the process, matching a store that could not open.
func (m *MinioStore) init(ctx context.Context) error {
	m.initOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.initErr = fmt.Errorf("%w: check bucket: %v", domain.ErrStoreUnavailable, err)
			return
		}
		if !exists {
			if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
				m.initErr = fmt.Errorf("%w: create bucket: %v", domain.ErrStoreUnavailable, err)
			}
		}
	})
	return m.initErr
}

// Put uploads the record and payload objects.
func (m *MinioStore) Put(ctx context.Context, rec Record) error {
	if err := m.init(ctx); err != nil {
		return err
	}
	rec.Book = rec.Book.WithoutData()
	meta, err := json.Marshal(rec.Book)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, m.key(rec.Book.ID, recordObject),
		bytes.NewReader(meta), int64(len(meta)), minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("%w: put record: %v", domain.ErrStoreUnavailable, err)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, m.key(rec.Book.ID, payloadObject),
		bytes.NewReader(rec.Payload), int64(len(rec.Payload)), minio.PutObjectOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("%w: put payload: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get fetches the record and payload for id.
func (m *MinioStore) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := m.init(ctx); err != nil {
		return Record{}, false, err
	}
	meta, ok, err := m.readObject(ctx, m.key(id, recordObject))
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(meta, &rec.Book); err != nil {
		return Record{}, false, fmt.Errorf("decode record %q: %w", id, err)
	}
	payload, ok, err := m.readObject(ctx, m.key(id, payloadObject))
	if err != nil {
		return Record{}, false, err
	}
	if ok {
		rec.Payload = payload
	}
	return rec, true, nil
}

// Delete removes both objects for id. Missing objects are not an error.
func (m *MinioStore) Delete(ctx context.Context, id string) error {
	if err := m.init(ctx); err != nil {
		return err
	}
	for _, object := range []string{m.key(id, recordObject), m.key(id, payloadObject)} {
		if err := m.client.RemoveObject(ctx, m.bucket, object, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("%w: delete %s: %v", domain.ErrStoreUnavailable, object, err)
		}
	}
	return nil
}

// GetAll lists every stored record, payloads included.
func (m *MinioStore) GetAll(ctx context.Context) ([]Record, error) {
	if err := m.init(ctx); err != nil {
		return nil, err
	}
	var records []Record
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: keyPrefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("%w: list objects: %v", domain.ErrStoreUnavailable, object.Err)
		}
		if path.Base(object.Key) != recordObject {
			continue
		}
		id := path.Base(path.Dir(object.Key))
		if strings.TrimSpace(id) == "" {
			continue
		}
		rec, ok, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *MinioStore) key(id, object string) string {
	return path.Join(keyPrefix+id, object)
}

func (m *MinioStore) readObject(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	return data, true, nil
}
