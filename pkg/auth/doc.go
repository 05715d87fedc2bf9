// Package auth gates task submission on the kernel's HTTP transport.
//
// Authentication is a chain of three-outcome votes: each authenticator
// returns Yes (identity established), No (credentials invalid), or
// Abstain (credential type not handled). A request every authenticator
// abstains on is rejected; running without auth at all is a deployment
// choice (the middleware is simply not installed), not a chain outcome.
//
// The middleware attaches the authenticated identity to the request
// context and optionally applies a per-tier rate limit, so one client
// cannot monopolize the Runner's container permits.
package auth
