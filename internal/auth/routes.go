package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramesius/wez-sonos/internal/api"
	"github.com/ramesius/wez-sonos/internal/apperrors"
	"github.com/ramesius/wez-sonos/internal/config"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresInSec int    `json:"expires_in_sec"`
}

// RegisterRoutes adds the token refresh endpoint. Initial token pairs are
// minted out of band with the mktoken tool; there is no pairing flow here.
func RegisterRoutes(router chi.Router, cfg config.Config) {
	router.Post("/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			api.WriteError(w, r, apperrors.NewValidationError("refresh_token is required", nil))
			return
		}

		accessToken, expiresIn, err := RefreshAccessToken(cfg, req.RefreshToken)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Refresh token has expired", apperrors.ErrorCodeAuthTokenExpired))
				return
			}
			api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid refresh token", apperrors.ErrorCodeAuthTokenInvalid))
			return
		}

		api.WriteResource(w, http.StatusOK, refreshResponse{
			AccessToken:  accessToken,
			ExpiresInSec: expiresIn,
		})
	})
}
