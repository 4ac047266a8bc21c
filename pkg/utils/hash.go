package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashParts digests the parts with a separator so ("ab","c") and ("a","bc") differ.
func HashParts(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func ShortHash(parts ...string) string {
	return HashParts(parts...)[:16]
}
