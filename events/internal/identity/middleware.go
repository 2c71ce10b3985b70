package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventhawk-systems/eventhawk-stack/common/httputil"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying id. Only the HTTP layer uses it; services
// take the identity as an explicit parameter.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by RequireAuth.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// RequireAuth rejects requests without a valid bearer token and stores the resolved
// identity in the request context.
func RequireAuth(parser *Parser, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteError(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		id, err := parser.Identify(parts[1])
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireScope rejects authenticated requests whose token lacks scope.
func RequireScope(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).HasScope(scope) {
			httputil.WriteError(w, http.StatusForbidden, "Missing required scope "+scope)
			return
		}
		next.ServeHTTP(w, r)
	})
}
