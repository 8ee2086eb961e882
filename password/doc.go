// Package password hashes and verifies passwords with argon2id and bcrypt.
//
// # Output format
//
// Argon2 hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes use the usual modular crypt format ($2a$, $2b$, $2y$), so
// hashes exported from other bcrypt implementations verify unchanged.
// [Multi] picks the scheme by prefix and reports non-primary hashes through
// NeedsUpgrade so callers can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other jwtauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
