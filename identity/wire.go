package identity

import "time"

// Endpoint paths relative to the identity service base URL.
const (
	PathLogin      = "/auth/login"
	PathRefresh    = "/auth/refresh"
	PathLogout     = "/auth/logout"
	PathIntrospect = "/auth/introspect"
)

type LoginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

// TokenResponse answers login and refresh. Role is only set by login.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type IntrospectRequest struct {
	Token string `json:"token"`
}

type IntrospectResponse struct {
	Valid   bool      `json:"valid"`
	Subject string    `json:"subject,omitempty"`
	Expiry  time.Time `json:"expiry,omitempty"`
}

// ErrorResponse is the body of any non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
