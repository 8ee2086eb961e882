// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunAuthorize) accepts
// a typed dependency struct and returns a result carrying a failure kind
// instead of a host-level error. The root package maps kinds onto its public
// errors, audit events and metrics, which keeps the Engine type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, session store and rate
// limiter. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import jwtauth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
