package token

import "errors"

var (
	// ErrMalformed is returned by Decode for any structural failure: wrong
	// segment count, bad base64url, or a payload that is not a JSON object.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned by Check when the token's exp is not after now.
	ErrExpired = errors.New("token expired")
	// ErrEmptyKey is returned by Mint when no signing key is configured.
	ErrEmptyKey = errors.New("empty signing key")
)
