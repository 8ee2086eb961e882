// Package middleware adapts [jwtauth.Engine.Authorize] to net/http.
//
// [Guard] reads the Authorization header, authorizes the bearer token and
// injects the result into the request context. [RequireScope] and
// [RequireRole] gate on the claims Guard stored. Every rejection is a 401
// with the same body, whatever the reason.
//
// Authorization is stateless, so the guard keeps serving while the session
// store is down.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Engine).
//   - Access Redis.
//   - Distinguish rejection reasons in responses.
package middleware
