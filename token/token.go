package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload layout of an access token.
//
// The role travels in "scope". Older issuers wrote "role"; it is read as a
// fallback when scope is absent.
type Claims struct {
	Scope      string `json:"scope,omitempty"`
	LegacyRole string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RoleClaim returns the raw role string carried by the token.
func (c Claims) RoleClaim() string {
	if c.Scope != "" {
		return c.Scope
	}
	return c.LegacyRole
}

// Expiry returns the exp claim. ok is false when the claim is absent.
func (c Claims) Expiry() (time.Time, bool) {
	if c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// Issued returns the iat claim, or the zero time when absent.
func (c Claims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Token is an immutable decoded bearer token. A new Token is produced every
// time the raw string changes; the zero value decodes nothing.
type Token struct {
	raw    string
	claims Claims
}

// Raw returns the encoded token as received from the identity service.
func (t Token) Raw() string { return t.raw }

// Claims returns a copy of the decoded payload.
func (t Token) Claims() Claims { return t.claims }

// Identity is the capability view derived from a token's claims.
type Identity struct {
	Subject   string
	Role      Role
	IsAdmin   bool
	IsStudent bool
	IsMentor  bool
}

var parser = jwt.NewParser()

// Decode parses the three-part token structure and its JSON payload without
// verifying the signature. The header and signature segments are not
// inspected. Every failure wraps ErrMalformed.
func Decode(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("%w: want 3 segments", ErrMalformed)
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Token{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || trimmed[0] != '{' {
		return Token{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Token{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	return Token{raw: raw, claims: claims}, nil
}

// Check decodes raw and rejects it with ErrExpired when it is not valid at now.
func Check(raw string, now time.Time) (Token, error) {
	tok, err := Decode(raw)
	if err != nil {
		return Token{}, err
	}
	if IsExpired(tok.claims, now) {
		return tok, ErrExpired
	}
	return tok, nil
}

// IsExpired reports whether the token is expired at now. The boundary is
// inclusive: exp == now is expired. A token without exp is expired.
func IsExpired(c Claims, now time.Time) bool {
	exp, ok := c.Expiry()
	if !ok {
		return true
	}
	return !now.Before(exp)
}

// ExpiresWithin reports whether the token expires at or before now+d. Expired
// tokens always report true.
func ExpiresWithin(c Claims, now time.Time, d time.Duration) bool {
	if IsExpired(c, now) {
		return true
	}
	exp, _ := c.Expiry()
	return !now.Add(d).Before(exp)
}

// DeriveIdentity maps the role claim to capability flags. Unknown roles leave
// every flag false.
func DeriveIdentity(c Claims) Identity {
	role, _ := ParseRole(c.RoleClaim())
	return Identity{
		Subject:   c.Subject,
		Role:      role,
		IsAdmin:   role == RoleAdmin,
		IsStudent: role == RoleStudent,
		IsMentor:  role == RoleMentor,
	}
}

// Mint signs claims with HS256. It exists for issuers and tests; the client
// never signs anything.
func Mint(c Claims, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
}
