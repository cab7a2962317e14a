package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/config"
	"docflow/internal/logging"
)

func hmacToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestNewJWTVerifier_Unconfigured(t *testing.T) {
	v, err := NewJWTVerifier(context.Background(), config.AuthConfig{}, logging.Discard())
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestJWTVerifier_HMAC(t *testing.T) {
	v, err := NewJWTVerifier(context.Background(), config.AuthConfig{JWTSecret: "s3cret"}, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, v)

	tests := []struct {
		name    string
		token   string
		wantSub string
		wantErr bool
	}{
		{
			name:    "valid",
			token:   hmacToken(t, "s3cret", validClaims("user-1")),
			wantSub: "user-1",
		},
		{
			name:    "wrong secret",
			token:   hmacToken(t, "other", validClaims("user-1")),
			wantErr: true,
		},
		{
			name: "expired",
			token: hmacToken(t, "s3cret", jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}),
			wantErr: true,
		},
		{
			name:    "missing expiry",
			token:   hmacToken(t, "s3cret", jwt.RegisteredClaims{Subject: "user-1"}),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   hmacToken(t, "s3cret", validClaims("")),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := v.VerifyToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				assert.Empty(t, sub)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestJWTVerifier_RejectsAlgorithmConfusion(t *testing.T) {
	v, err := NewJWTVerifier(context.Background(), config.AuthConfig{JWTSecret: "s3cret"}, logging.Discard())
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims("user-1")).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = v.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTVerifier_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := NewJWTVerifier(ctx, config.AuthConfig{JWKSURL: srv.URL, JWTSecret: "ignored"}, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, v)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user-42"))
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	sub, err := v.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	// An HMAC token must not pass just because a secret is also configured.
	_, err = v.VerifyToken(hmacToken(t, "ignored", validClaims("user-42")))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
