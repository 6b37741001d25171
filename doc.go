// Package courseauth keeps a client's bearer-token session alive: it decodes
// access tokens, persists the token pair, refreshes it before and after
// expiry, and attaches it to outbound requests.
//
// The package is designed for concurrent use: Client methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// courseauth is the public surface. It exposes [Client], [Builder], [Config]
// and value types ([Session], [MetricsSnapshot], [ForcedLogout]). Token
// decoding lives in token/, persistence in store/, and the HTTP binding of the
// identity service in identity/.
//
// # What this package must NOT do
//
//   - verify token signatures; claims are trusted as issued by the identity
//     service
//   - log or audit raw token values
//   - retry a failed refresh; a failed refresh ends the session
//   - write to the store from anywhere but login, logout and the refresh
//     flight
//
// # Concurrency contract
//
// Within one Client at most one refresh runs at a time and every concurrent
// caller shares its result. Waiters are released only after the new pair is
// committed to the store. Clients sharing one store (tabs of one origin) each
// keep their own single flight.
package courseauth
