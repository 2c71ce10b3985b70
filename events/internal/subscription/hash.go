package subscription

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashSourceFilter returns the dedup hash stored next to a source filter. Source
// filters are URIs of unbounded length; the hash keeps the lookup index narrow.
func HashSourceFilter(sourceFilter string) string {
	if sourceFilter == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(sourceFilter))
	return hex.EncodeToString(sum[:])
}
