package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/duochat/internal/auth"
)

// TokenCookieName is the HttpOnly cookie carrying the signed auth token.
const TokenCookieName = "token"

// Auth validates the auth token and injects the user id into the request
// context. The token is taken from the cookie, an Authorization: Bearer
// header, or a "token" query parameter (the latter for WebSocket clients
// that cannot set headers).
func Auth(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			userID, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
