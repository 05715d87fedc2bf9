package memory

import (
	"crypto/rand"
)

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// newID generates an opaque, namespace-prefixed record identifier, e.g.
// "tool_k3j8f2a9c1q7x4m2".
func newID(ns Namespace) (string, error) {
	suffix, err := randomString(16)
	if err != nil {
		return "", err
	}
	return ns.idPrefix() + suffix, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = idCharset[int(v)%len(idCharset)]
	}
	return string(b), nil
}
