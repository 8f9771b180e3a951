// Package kv is the key-text persistence port behind the metadata store. The
// medium only holds strings, which is why payload bytes pass through the codec
// before landing here. Implementations: Redis, a plain directory of files, and
// an in-process map for tests.
package kv

// Store reads and writes string values under string keys. A missing key is
// (value "", ok false, err nil); errors are reserved for medium failures.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}
