package runner

import (
	"crypto/rand"
	"encoding/hex"
)

// newContainerName generates a unique container name "nf_<12-hex>".
func newContainerName() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "nf_" + hex.EncodeToString(b), nil
}
