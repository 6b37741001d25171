// Package middleware adapts a courseauth.Client to net/http.
//
// # Adapters
//
//   - [Transport] is an http.RoundTripper that sends every request through
//     Client.Execute, so plain *http.Client users get bearer injection and the
//     refresh-and-retry-once behavior.
//   - [RequireSession] redirects to the login screen when no session exists.
//   - [RequireRole] additionally answers 403 unless the session role matches.
//
// Guards store the derived courseauth.Session in the request context; read it
// with [SessionFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Client calls. Session derivation,
// refresh and logout decisions all stay in the Client.
//
// # What this package must NOT do
//
//   - Read or write the token store directly.
//   - Decode tokens; the Client's Session is the only source of identity.
//   - Call the identity service.
package middleware
