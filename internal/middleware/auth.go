package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"marketing-backend/internal/model"
	"marketing-backend/internal/service"
)

type tokenValidator interface {
	ValidateAccessToken(token string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		claims, err := m.validator.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, model.ErrTokenExpired) {
				writeJSONError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token has expired")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles admits principals whose role is in allowed. It must run after
// RequireAuth.
func (m *AuthMiddleware) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if err := service.RequireRole(claims, allowed...); err != nil {
				slog.Warn("authorization denied",
					"principal_id", claims.PrincipalID,
					"role", claims.Role,
					"path", r.URL.Path,
				)
				writeAPIError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if claims, err := m.validator.ValidateAccessToken(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), authClaimsContextKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// QueryToken promotes the named query parameter to a bearer Authorization
// header when the request carries none. Browsers cannot set headers on a
// websocket handshake.
func QueryToken(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				if token := strings.TrimSpace(r.URL.Query().Get(param)); token != "" {
					r = r.Clone(r.Context())
					r.Header.Set("Authorization", "Bearer "+token)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

// WithClaims returns ctx carrying claims. Tests use it to skip token parsing.
func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
