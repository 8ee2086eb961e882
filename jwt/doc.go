// Package jwt issues and verifies the signed access and refresh tokens used by
// jwtauth.
//
// A [Codec] is built once from a [Config] and is safe for concurrent use. It
// pins the accepted signing algorithm, resolves verification keys by kid (so a
// previous key can stay valid during a rotation grace period) and classifies
// every parse failure into exactly one of [ErrMalformed], [ErrInvalidSignature]
// or [ErrExpired].
//
// # What this package must NOT do
//
//   - Touch the session store; token validity here is signature and claims only.
//   - Decide how failures are presented to callers of the engine.
package jwt
