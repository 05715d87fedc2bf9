// Package apikey authenticates task submissions with static bearer
// tokens. Keys are hashed with SHA-256 at construction so plaintext
// never sits in memory past startup, and lookup compares every stored
// hash in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/neuroforge-dev/kernel/pkg/auth"
)

// Entry is one configured API key with the identity it grants.
type Entry struct {
	Key      string
	Identity auth.Identity
}

type hashedEntry struct {
	hash     [sha256.Size]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against the configured key set.
type Authenticator struct {
	entries []hashedEntry
}

// New builds an Authenticator from entries, hashing each key immediately.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{entries: make([]hashedEntry, 0, len(entries))}
	for _, e := range entries {
		a.entries = append(a.entries, hashedEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Authenticate votes Yes for a bearer token matching a configured key,
// No for a bearer token that matches none (or is empty), and Abstain
// when the request carries no bearer credentials at all.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	// Scan every entry even after a hit, so response timing does not
	// leak which position in the key set matched.
	var matched *auth.Identity
	for i := range a.entries {
		if subtle.ConstantTimeCompare(tokenHash[:], a.entries[i].hash[:]) == 1 {
			matched = &a.entries[i].identity
		}
	}
	if matched == nil {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := *matched
	return auth.Result{Decision: auth.Yes, Identity: &id}
}
