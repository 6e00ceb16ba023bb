package utils

import (
	"crypto/md5"
	"fmt"
	"hash/fnv"
)

// Identity returns the 64-bit content key used for deduplication.
// It is computed over normalized text, not the raw record, so the same
// content arriving via different collectors collides.
func Identity(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// MessageID derives a compact numeric id for records that carry none.
func MessageID(text string) int64 {
	return int64(Identity(text) % 1000000)
}
