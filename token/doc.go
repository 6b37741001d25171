// Package token decodes bearer access tokens issued by the identity service and
// answers expiry and identity questions about them.
//
// # Trust model
//
// Claims are read without verifying the signature. The client trusts the
// identity service as the sole issuer; the server still verifies every token it
// receives, so a forged token only misleads the local UI about who is logged in.
//
// # Architecture boundaries
//
// This package owns the claim layout, role enumeration, and the expiry
// arithmetic. Persistence and refresh policy belong to store and the root
// package.
//
// # What this package must NOT do
//
//   - Perform I/O or read the wall clock implicitly (callers pass now).
//   - Panic or return partially decoded claims on malformed input.
//   - Import courseauth, store, or identity.
package token
