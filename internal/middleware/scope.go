package middleware

import (
	"net/http"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/model"
)

// RequireScope rejects requests whose key lacks scope. The admin scope
// satisfies every requirement. Must run after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.FromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !authCtx.HasScope(scope) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions. Required scope: "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMethodScope picks the scope from the request method: GET and HEAD
// need read, DELETE needs admin, everything else needs write.
func RequireMethodScope() func(http.Handler) http.Handler {
	read := RequireScope(model.ScopeRead)
	write := RequireScope(model.ScopeWrite)
	admin := RequireScope(model.ScopeAdmin)

	return func(next http.Handler) http.Handler {
		readNext, writeNext, adminNext := read(next), write(next), admin(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead:
				readNext.ServeHTTP(w, r)
			case http.MethodDelete:
				adminNext.ServeHTTP(w, r)
			default:
				writeNext.ServeHTTP(w, r)
			}
		})
	}
}
