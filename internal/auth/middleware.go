package auth

import (
	"net/http"
	"strings"
)

// Middleware attaches the actor from a bearer token (or ?token= for websockets) to the
// request context. Requests without a token pass through as guests; a bad token is rejected.
func Middleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Parse(token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"code":"Session.Unauthorized","error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Subject)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
