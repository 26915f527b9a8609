package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key derives the content-addressed cache key from filtered text and the
// extraction parameters that change the result. Identical text with
// identical parameters always produces the same key, so repeated uploads of
// an unmodified document never re-incur model cost.
func Key(filteredText, documentType, regulator, ruleLibraryVersion string) string {
	h := sha256.New()
	h.Write([]byte(filteredText))
	h.Write([]byte{0})
	h.Write([]byte(documentType))
	h.Write([]byte{0})
	h.Write([]byte(regulator))
	h.Write([]byte{0})
	h.Write([]byte(ruleLibraryVersion))
	return hex.EncodeToString(h.Sum(nil))
}
