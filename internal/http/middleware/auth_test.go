package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"docflow/internal/auth"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyToken(token string) (string, error) {
	if sub, ok := s[token]; ok {
		return sub, nil
	}
	return "", auth.ErrUnauthorized
}

func ownerApp(v auth.Verifier) *fiber.App {
	app := fiber.New()
	app.Use(Auth(v))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(OwnerID(c))
	})
	return app
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		verifier   auth.Verifier
		headers    map[string]string
		wantStatus int
		wantOwner  string
	}{
		{
			name:       "valid bearer token",
			verifier:   stubVerifier{"good": "user-1"},
			headers:    map[string]string{"Authorization": "Bearer good"},
			wantStatus: fiber.StatusOK,
			wantOwner:  "user-1",
		},
		{
			name:       "invalid bearer token",
			verifier:   stubVerifier{"good": "user-1"},
			headers:    map[string]string{"Authorization": "Bearer bad"},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "missing bearer token",
			verifier:   stubVerifier{"good": "user-1"},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "dev header ignored when a verifier is configured",
			verifier:   stubVerifier{"good": "user-1"},
			headers:    map[string]string{UserIDHeader: "user-2"},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "dev header without verifier",
			headers:    map[string]string{UserIDHeader: "user-2"},
			wantStatus: fiber.StatusOK,
			wantOwner:  "user-2",
		},
		{
			name:       "no identity without verifier",
			wantStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := ownerApp(tt.verifier).Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantOwner != "" {
				buf := new(bytes.Buffer)
				buf.ReadFrom(resp.Body)
				assert.Equal(t, tt.wantOwner, buf.String())
			}
		})
	}
}

func TestCallbackAuth(t *testing.T) {
	newApp := func(token string) *fiber.App {
		app := fiber.New()
		app.Use(CallbackAuth(token))
		app.Get("/cb", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
		return app
	}

	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"matching token", "worker-secret", "worker-secret", fiber.StatusOK},
		{"wrong token", "worker-secret", "nope", fiber.StatusUnauthorized},
		{"missing token", "worker-secret", "", fiber.StatusUnauthorized},
		{"unconfigured rejects everything", "", "", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/cb", nil)
			if tt.sent != "" {
				req.Header.Set(CallbackTokenHeader, tt.sent)
			}
			resp, err := newApp(tt.configured).Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

