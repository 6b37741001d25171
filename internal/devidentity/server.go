package devidentity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BUICUONGG/courseauth/identity"
	"github.com/BUICUONGG/courseauth/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTTL is the lifetime of minted access tokens when Config leaves
// AccessTTL unset.
const DefaultAccessTTL = 15 * time.Minute

var (
	ErrEmptyKey      = errors.New("devidentity: signing key is empty")
	ErrDuplicateUser = errors.New("devidentity: identity already registered")
	ErrUnauthorized  = errors.New("devidentity: unauthorized")
)

// Config configures a Server.
type Config struct {
	Key       []byte
	Issuer    string
	AccessTTL time.Duration
	Now       func() time.Time
}

type user struct {
	subject string
	hash    string
	role    token.Role
}

// Server is an http.Handler implementing the identity endpoints.
type Server struct {
	key    []byte
	issuer string
	now    func() time.Time

	accessTTL    atomic.Int64
	refreshDelay atomic.Int64
	rejectAll    atomic.Bool
	refreshCalls atomic.Int64
	loginCalls   atomic.Int64

	mu      sync.Mutex
	users   map[string]user
	refresh map[string]string // refresh token -> identity
	revoked map[string]struct{}

	mux *http.ServeMux
}

// New returns a Server with no users.
func New(cfg Config) (*Server, error) {
	if len(cfg.Key) == 0 {
		return nil, ErrEmptyKey
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "devidentity"
	}

	s := &Server{
		key:     append([]byte(nil), cfg.Key...),
		issuer:  cfg.Issuer,
		now:     cfg.Now,
		users:   make(map[string]user),
		refresh: make(map[string]string),
		revoked: make(map[string]struct{}),
		mux:     http.NewServeMux(),
	}
	s.accessTTL.Store(int64(cfg.AccessTTL))

	s.mux.HandleFunc("POST "+identity.PathLogin, s.handleLogin)
	s.mux.HandleFunc("POST "+identity.PathRefresh, s.handleRefresh)
	s.mux.HandleFunc("POST "+identity.PathLogout, s.handleLogout)
	s.mux.HandleFunc("POST "+identity.PathIntrospect, s.handleIntrospect)

	return s, nil
}

// AddUser registers identity with secret and role. The secret is stored as an
// argon2id hash.
func (s *Server) AddUser(identityName, secret string, role token.Role) error {
	hash, err := hashSecret(secret)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[identityName]; ok {
		return ErrDuplicateUser
	}
	s.users[identityName] = user{subject: "user-" + identityName, hash: hash, role: role}
	return nil
}

// SetAccessTTL changes the lifetime of access tokens minted from now on.
func (s *Server) SetAccessTTL(d time.Duration) {
	if d > 0 {
		s.accessTTL.Store(int64(d))
	}
}

// SetRefreshDelay makes every refresh call sleep for d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// RejectRefresh makes every refresh call answer 401 while on is true.
func (s *Server) RejectRefresh(on bool) {
	s.rejectAll.Store(on)
}

// RevokeAll drops every outstanding refresh token, as an administrator
// revoking sessions would.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	clear(s.refresh)
	s.mu.Unlock()
}

// RefreshCalls reports how many refresh requests reached the server.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// LoginCalls reports how many login requests reached the server.
func (s *Server) LoginCalls() int64 { return s.loginCalls.Load() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var req identity.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Identity]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	match, err := verifySecret(req.Secret, u.hash)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp, err := s.issue(req.Identity, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	resp.Role = string(u.role)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var req identity.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if s.rejectAll.Load() {
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}

	s.mu.Lock()
	name, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	u, known := s.users[name]
	s.mu.Unlock()
	if !ok || !known {
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}

	resp, err := s.issue(name, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req identity.LogoutRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	delete(s.refresh, req.RefreshToken)
	if tok, err := token.Decode(req.AccessToken); err == nil && tok.Claims().ID != "" {
		s.revoked[tok.Claims().ID] = struct{}{}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	var req identity.IntrospectRequest
	if !decode(w, r, &req) {
		return
	}

	claims, err := s.Verify(req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, identity.IntrospectResponse{Valid: false})
		return
	}
	exp, _ := claims.Expiry()
	writeJSON(w, http.StatusOK, identity.IntrospectResponse{Valid: true, Subject: claims.Subject, Expiry: exp})
}

// issue mints an access token and a fresh single-use refresh token for name.
func (s *Server) issue(name string, u user) (identity.TokenResponse, error) {
	now := s.now()
	access, err := token.Mint(token.Claims{
		Scope: string(u.role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.accessTTL.Load()))),
		},
	}, s.key)
	if err != nil {
		return identity.TokenResponse{}, err
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refresh[refresh] = name
	s.mu.Unlock()

	return identity.TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks the signature, expiry and revocation of an access token.
func (s *Server) Verify(raw string) (token.Claims, error) {
	var claims token.Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return token.Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return token.Claims{}, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	return claims, nil
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Protect.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(token.Claims)
	return c, ok
}

// Protect answers 401 unless the request carries a valid bearer token.
func (s *Server) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := s.Verify(raw)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}

	return raw, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, identity.ErrorResponse{Error: msg})
}
