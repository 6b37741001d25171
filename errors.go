package courseauth

import (
	"errors"

	"github.com/BUICUONGG/courseauth/store"
)

var (
	// ErrNotLoggedIn is returned when an operation needs credentials and the
	// store holds none.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired marks the end of a session after a failed refresh.
	// Every *RefreshError matches it.
	ErrSessionExpired = errors.New("session expired")
	// ErrCredentialsRejected is returned by IdentityService.Login for a bad
	// identity/secret pair.
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrRefreshRejected is returned by IdentityService.Refresh when the
	// refresh token is invalid, expired or already used.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrIdentityUnavailable wraps transport failures talking to the identity
	// service.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrInvalidIssuedToken is returned when the identity service hands out an
	// access token that does not decode.
	ErrInvalidIssuedToken = errors.New("identity service issued an undecodable token")
	// ErrRefreshTokenMissing is the refresh failure cause when an access token
	// is stored without its refresh token.
	ErrRefreshTokenMissing = errors.New("refresh token missing")
	// ErrClientClosed is returned by operations on a closed Client.
	ErrClientClosed = errors.New("client closed")
	// ErrStoreUnavailable aliases store.ErrUnavailable for callers of this
	// package.
	ErrStoreUnavailable = store.ErrUnavailable
)

// RefreshError is returned to every waiter of a failed refresh. It matches
// ErrSessionExpired and its Cause with errors.Is.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	if e.Cause == nil {
		return ErrSessionExpired.Error()
	}
	return ErrSessionExpired.Error() + ": " + e.Cause.Error()
}

func (e *RefreshError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSessionExpired}
	}
	return []error{ErrSessionExpired, e.Cause}
}

func asSessionExpired(err error) error {
	var re *RefreshError
	if errors.As(err, &re) {
		return err
	}
	return &RefreshError{Cause: err}
}
