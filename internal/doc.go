// Package internal holds helpers private to jwtauth, currently session id
// generation and parsing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow runners behind every Engine operation
//   - rate: Redis-backed fixed-window throttles for login and refresh
//   - httpapi: gin routes that adapt HTTP to Engine calls
package internal
