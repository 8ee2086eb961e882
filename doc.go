// Package jwtauth is a JWT authentication engine with short-lived stateless
// access tokens and single-use refresh tokens backed by Redis sessions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Session lifecycle
//
// Login creates a session and binds the refresh token to its id. Refresh
// atomically retires that id and binds the new refresh token to a
// successor, so a refresh token succeeds at most once. Logout revokes the
// session; revocation is terminal and idempotent.
//
// # Errors
//
// Every rejected token, whatever the cause, is a [*TokenError] whose message
// is "invalid token". Use errors.Is with [ErrMalformed], [ErrInvalidSignature],
// [ErrExpired] or [ErrSessionRevoked] to branch internally, and [Public] at a
// trust boundary. [ErrStoreUnavailable] is retryable.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (Build only allocates).
//   - Touch the session store from Authorize.
//
// # Performance contract
//
// Authorize is the hot path: one signature verification, no Redis round
// trips. Login and Refresh cost a small fixed number of round trips.
package jwtauth
