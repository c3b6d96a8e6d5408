package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tasktrack/apiserver/internal/services"
)

// SessionCookie carries the session token between browser and server.
const SessionCookie = "authToken"

type contextKey string

const contextSessionKey contextKey = "session"

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (services.Claims, error)
}

// RequireSession rejects requests without a valid session token and stores
// the claims in the request context.
func RequireSession(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := sessionToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSessionKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) (services.Claims, bool) {
	claims, ok := ctx.Value(contextSessionKey).(services.Claims)
	return claims, ok && claims.ID != ""
}

// sessionToken prefers the Authorization header and falls back to the cookie.
func sessionToken(r *http.Request) (string, error) {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("invalid authorization")
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", errors.New("invalid authorization")
		}
		return token, nil
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", errors.New("missing session")
	}
	return cookie.Value, nil
}
