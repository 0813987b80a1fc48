// Package auth provides the JWT bearer gate used by the broker and nodes
// when running with ENV=production. The demo default leaves the exchange
// surface open; the portal has its own header-based role check and never
// uses this middleware.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medbridge/exchange/internal/shared/config"
	"github.com/medbridge/exchange/internal/shared/types"
)

type contextKey string

const userContextKey contextKey = "user"

// User represents the authenticated caller from JWT claims
type User struct {
	ID       types.ID `json:"sub"`
	Facility string   `json:"facility"`
	Roles    []string `json:"roles"`
}

// Claims extends JWT registered claims with exchange-specific data
type Claims struct {
	jwt.RegisteredClaims
	Facility string   `json:"facility,omitempty"`
	Roles    []string `json:"roles"`
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user := &User{
				ID:       types.ID(claims.Subject),
				Facility: claims.Facility,
				Roles:    claims.Roles,
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
