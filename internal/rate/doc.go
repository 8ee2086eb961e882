// Package rate provides Redis-backed fixed-window counters for login and
// refresh throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys:
//   - <prefix>:rl:<principal>   failed logins per principal
//   - <prefix>:rli:<ip>         failed logins per client IP
//   - <prefix>:rr:<principal>   refresh attempts per principal
//
// # What this package must NOT do
//
//   - Decide what a limited caller sees; it only reports [ErrRateLimited].
//   - Be imported outside the jwtauth module.
package rate
