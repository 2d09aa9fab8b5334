package incremental

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// HashString returns the xxHash64 of s as 16 hex digits.
func HashString(s string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(s))
	return hex.EncodeToString(buf[:])
}
