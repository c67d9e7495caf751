// Package hashutil builds stable content fingerprints.
package hashutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// HashStrings returns the hex SHA256 of parts. Each part is length-prefixed so
// ("a\nb") and ("a", "b") hash differently.
func HashStrings(parts ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
