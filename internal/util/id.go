package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// NewID returns a book/bookmark identifier: millisecond timestamp plus a
// random disambiguator, so ids sort roughly by creation time and survive
// same-millisecond collisions.
func NewID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(b)
}
