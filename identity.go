package courseauth

import (
	"context"
	"time"

	"github.com/BUICUONGG/courseauth/token"
)

// TokenPair is an access/refresh pair as issued by the identity service.
type TokenPair struct {
	Access  string
	Refresh string
}

// LoginResult is the identity service's answer to a successful login. Role is
// informational; the session role is always derived from the access token.
type LoginResult struct {
	TokenPair
	Role token.Role
}

// Introspection is the identity service's view of one token.
type Introspection struct {
	Valid   bool
	Subject string
	Expiry  time.Time
}

// IdentityService is the network boundary the client depends on. The identity
// package provides an HTTP implementation.
//
// Implementations report a rejected login with ErrCredentialsRejected, a
// rejected refresh token with ErrRefreshRejected, and transport failures with
// ErrIdentityUnavailable, each wrapped as needed.
type IdentityService interface {
	Login(ctx context.Context, identity, secret string) (LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Introspect(ctx context.Context, rawToken string) (Introspection, error)
}
