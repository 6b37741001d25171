package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/BUICUONGG/courseauth"
	"github.com/BUICUONGG/courseauth/token"
)

type sessionContextKey struct{}

// SessionFromContext returns the session stored by RequireSession or
// RequireRole.
func SessionFromContext(ctx context.Context) (courseauth.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(courseauth.Session)
	return sess, ok
}

// RequireSession lets the request through only while the client holds a
// session. Otherwise it answers 303 See Other to loginPath.
func RequireSession(client *courseauth.Client, loginPath string) func(http.Handler) http.Handler {
	return guard(client, loginPath, nil)
}

// RequireRole is RequireSession plus a role check. A logged-in session whose
// role is not in roles gets 403.
func RequireRole(client *courseauth.Client, loginPath string, roles ...token.Role) func(http.Handler) http.Handler {
	return guard(client, loginPath, roles)
}

func guard(client *courseauth.Client, loginPath string, roles []token.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			sess := client.Session(r.Context())
			if !sess.LoggedIn {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			if roles != nil && !slices.Contains(roles, sess.Role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
