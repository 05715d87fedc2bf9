package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is an authenticator's three-outcome vote on a request.
type Decision int

const (
	// Yes accepts the request; the chain stops and the identity is
	// attached to the request context.
	Yes Decision = iota

	// No rejects the request; credentials were presented but are
	// invalid.
	No

	// Abstain passes the vote to the next authenticator in the chain,
	// for credential types this authenticator does not handle.
	Abstain
)

// Result carries one authenticator's vote.
type Result struct {
	Decision Decision
	Identity *Identity // set only on Yes
	Err      error     // set only on No
}

// Identity is the caller a task submission runs as. The kernel is
// single-process and single-tenant, so an identity is just a subject for
// logging and a service tier for rate limiting; there is no scope or
// tenant model.
type Identity struct {
	Subject     string
	ServiceTier string
}

// Authenticator examines a request's credentials and votes on it.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators left to right, stopping at the first
// non-Abstain vote. When every authenticator abstains the request is
// rejected: task submission is never anonymous once auth is enabled.
type Chain struct {
	Authenticators []Authenticator
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if result := a.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// identityKey is a private type for the identity context key.
type identityKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity, or nil when
// the request never passed through the auth middleware.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}
