// Package auth verifies bearer tokens and extracts the owning user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"docflow/internal/config"
)

// ErrUnauthorized is returned for any token that cannot be trusted.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier validates a raw JWT and returns its subject, the owner id.
type Verifier interface {
	VerifyToken(tokenString string) (string, error)
}

// JWTVerifier checks signatures against either a JWKS endpoint or a shared HMAC secret.
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	methods []string
	logger  *slog.Logger
}

// NewJWTVerifier builds a verifier from cfg. JWKS wins over the secret when both are set.
// It returns nil, nil when neither is configured.
func NewJWTVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (*JWTVerifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	switch {
	case cfg.JWKSURL != "":
		// keyfunc refreshes the key set in the background until ctx is done.
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client: %w", err)
		}
		logger.Info("jwt_verifier_initialized", "mode", "jwks", "jwks_url", cfg.JWKSURL)
		return &JWTVerifier{
			keyfunc: jwks.Keyfunc,
			methods: []string{"RS256", "ES256"},
			logger:  logger,
		}, nil

	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		logger.Info("jwt_verifier_initialized", "mode", "hmac")
		return &JWTVerifier{
			keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
			methods: []string{"HS256"},
			logger:  logger,
		}, nil
	}
	return nil, nil
}

// VerifyToken parses and validates tokenString. Expiry is mandatory.
func (v *JWTVerifier) VerifyToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, v.keyfunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		v.logger.Debug("token_rejected", "error", fmt.Sprint(err))
		return "", ErrUnauthorized
	}
	if claims.Subject == "" {
		v.logger.Debug("token_missing_subject")
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
