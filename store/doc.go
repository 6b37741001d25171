// Package store persists the access/refresh token pair of one origin.
//
// A Store has two slots, access and refresh. Writing an empty string to a slot
// deletes it, and reading a missing slot returns "" with a nil error. Every
// mutation is reported to watchers as a Change so that other clients sharing
// the same medium (other tabs of one origin) can re-derive their session.
//
// SwapPair is the only conditional write: it replaces or clears the pair while
// the stored refresh token is still the one the caller read.
//
// # Architecture boundaries
//
// The package does not decode tokens and does not know about refresh. It stores
// opaque strings.
//
// # What this package must NOT do
//
//   - log or audit token values
//   - apply expiry of its own to stored tokens
package store
