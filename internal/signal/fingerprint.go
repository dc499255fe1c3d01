package signal

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint computes a short hex digest of a shared payload so both users
// can eyeball that a paste or scan arrived intact. Identification only — it
// carries no integrity guarantee.
func Fingerprint(text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("%08x", h.Sum32())
}
