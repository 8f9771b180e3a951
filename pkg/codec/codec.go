// Package codec converts raw payload bytes to and from the string-safe form
// required by the key-text metadata store. The blob store takes binary
// directly and never goes through this package.
package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Encode returns the string-safe form of data. Encoding never fails and
// round-trips arbitrary bytes, including NUL and values >= 0x80.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode byte-for-byte. Input that is not valid codec output
// returns an error wrapping domain.ErrDecodeFailure; it never truncates
// silently.
func Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return data, nil
}
