package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ramesius/wez-sonos/internal/api"
	"github.com/ramesius/wez-sonos/internal/apperrors"
	"github.com/ramesius/wez-sonos/internal/config"
)

var publicRoutes = map[string]struct{}{
	"/v1/auth/refresh": {},
	"/v1/health":       {},
}

var publicPrefixes = []string{
	"/v1/health",
}

// Middleware validates JWT tokens for protected routes. With ALLOW_ANONYMOUS
// set the whole surface is open, which only makes sense on a trusted LAN.
func Middleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowAnonymous || isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, tokenErr := requestToken(r)
			if tokenErr != nil {
				api.WriteError(w, r, tokenErr)
				return
			}

			payload, err := VerifyToken(cfg, token)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					api.WriteError(w, r, apperrors.NewUnauthorizedError("Token has expired", apperrors.ErrorCodeAuthTokenExpired))
					return
				}
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}

			if payload.Type != TokenTypeAccess {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token type", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}

			user := User{
				Sub:        payload.Sub,
				ClientName: payload.ClientName,
				Type:       payload.Type,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// requestToken pulls the bearer token from the Authorization header, falling
// back to the token query parameter: browser websocket clients cannot set
// headers on the upgrade handshake.
func requestToken(r *http.Request) (string, *apperrors.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthorizedError("Missing Authorization header")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", apperrors.NewUnauthorizedError("Invalid Authorization header format")
	}
	return token, nil
}

func isPublicRoute(path string) bool {
	if _, ok := publicRoutes[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
