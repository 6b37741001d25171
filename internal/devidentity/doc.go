// Package devidentity is an in-memory identity service used by tests, the
// load harness and the example service.
//
// It speaks the wire contract of package identity: login with an identity and
// secret, single-use rotating refresh tokens, logout that revokes both tokens
// and signature-checked introspection. Access tokens are HS256 JWTs minted with
// token.Mint; refresh tokens are opaque random IDs.
//
// Server.Protect guards resource handlers with a verified bearer token, which
// lets the example service answer 401 exactly as a real resource server would.
//
// # What this package must NOT do
//
//   - Be imported by the client library packages; it is a server stand-in.
//   - Persist anything. Restarting the process forgets every user and token.
package devidentity
