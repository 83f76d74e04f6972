package util

import (
	"fmt"
	"hash/crc32"
)

// Fingerprint returns a short CRC32 digest of parts. Parts are separated by
// a NUL byte so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h := crc32.NewIEEE()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
