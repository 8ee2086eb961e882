// Package session tracks the liveness of refresh sessions in Redis.
//
// # Record layout
//
// A session is stored as a compact binary blob (see [Encode]) under
// <prefix>:s:{<principal>}:<id> with a PX TTL, and its id is indexed in the
// set <prefix>:p:{<principal>}. The braces are a Redis Cluster hash tag:
// every key of one principal maps to one slot. The first 26 bytes are a
// fixed header (version, status, created/rotated/expires in unix ms) so the
// Lua scripts can revoke or rotate a record without decoding its variable
// tail.
//
// # Atomicity
//
// Create, Rotate and Revoke are single Lua scripts. Rotate checks the old
// record, tombstones it with a link to the successor and writes the
// successor in one step, so two concurrent rotations of the same id yield
// exactly one successor. Revoke follows those links to the live end of the
// chain, so revoking any id of a chain ends the chain.
//
// # What this package must NOT do
//
//   - Parse or sign tokens.
//   - Decide how store failures are surfaced to engine callers beyond
//     wrapping them in [ErrStoreUnavailable].
package session
