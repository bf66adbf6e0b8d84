package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ramesius/wez-sonos/internal/config"
)

// Tokens are pinned to this daemon: anything minted for another issuer or
// audience fails verification regardless of the signature.
const (
	tokenIssuer   = "wez-sonos"
	tokenAudience = "wez-sonos-client"
)

// TokenType distinguishes short-lived access tokens from the long-lived
// refresh tokens used to mint them.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPayload is the identity carried by a verified token.
type TokenPayload struct {
	Sub        string
	ClientName string
	Type       TokenType
}

// TokenPair is an access/refresh pair as handed to a client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresInSec int    `json:"expires_in_sec"`
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenType    = errors.New("token has invalid type")
)

type signedClaims struct {
	jwt.RegisteredClaims
	Client string    `json:"clientName"`
	Use    TokenType `json:"type"`
}

// payload validates the claim contents beyond the signature and returns the
// identity they carry.
func (c *signedClaims) payload() (TokenPayload, error) {
	p := TokenPayload{Sub: c.Subject, ClientName: c.Client, Type: c.Use}
	switch {
	case p.Sub == "", p.ClientName == "":
		return TokenPayload{}, ErrTokenInvalid
	case p.Type != TokenTypeAccess && p.Type != TokenTypeRefresh:
		return TokenPayload{}, ErrTokenInvalid
	}
	return p, nil
}

// tokenParser is shared: the method allow-list and issuer/audience pinning
// never vary per call.
var tokenParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	jwt.WithIssuer(tokenIssuer),
	jwt.WithAudience(tokenAudience),
)

// GenerateTokenPair mints an access/refresh pair for the given identity.
func GenerateTokenPair(cfg config.Config, payload TokenPayload) (TokenPair, error) {
	access, err := mint(cfg.JWTSecret, payload, TokenTypeAccess, cfg.JWTAccessTokenExpirySec)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := mint(cfg.JWTSecret, payload, TokenTypeRefresh, cfg.JWTRefreshTokenExpirySec)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresInSec: cfg.JWTAccessTokenExpirySec,
	}, nil
}

// RefreshAccessToken exchanges a valid refresh token for a fresh access
// token and its expiry in seconds.
func RefreshAccessToken(cfg config.Config, refreshToken string) (string, int, error) {
	payload, err := VerifyToken(cfg, refreshToken)
	if err != nil {
		return "", 0, err
	}
	if payload.Type != TokenTypeRefresh {
		return "", 0, ErrTokenType
	}
	access, err := mint(cfg.JWTSecret, payload, TokenTypeAccess, cfg.JWTAccessTokenExpirySec)
	if err != nil {
		return "", 0, err
	}
	return access, cfg.JWTAccessTokenExpirySec, nil
}

// VerifyToken checks signature, issuer, audience and expiry, then the claim
// contents.
func VerifyToken(cfg config.Config, token string) (TokenPayload, error) {
	claims := &signedClaims{}
	parsed, err := tokenParser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenPayload{}, ErrTokenExpired
	case err != nil, parsed == nil, !parsed.Valid:
		return TokenPayload{}, ErrTokenInvalid
	}
	return claims.payload()
}

func mint(secret string, payload TokenPayload, use TokenType, ttlSec int) (string, error) {
	now := time.Now()
	claims := signedClaims{
		Client: payload.ClientName,
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Sub,
			Issuer:    tokenIssuer,
			Audience:  []string{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSec) * time.Second)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
