package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"docflow/internal/auth"
)

const (
	// OwnerIDLocalKey holds the authenticated owner id in Fiber's context locals.
	OwnerIDLocalKey = "owner_id"
	// UserIDHeader identifies the caller when no token verifier is configured.
	UserIDHeader = "X-User-ID"
	// CallbackTokenHeader carries the shared secret of the processing worker.
	CallbackTokenHeader = "X-Callback-Token"
)

// Auth resolves the owner id from a bearer token. With a nil verifier it trusts
// the X-User-ID header instead, which is only meant for local development.
func Auth(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var owner string
		if v == nil {
			owner = strings.TrimSpace(c.Get(UserIDHeader))
		} else {
			raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
			if !ok || raw == "" {
				return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
			}
			sub, err := v.VerifyToken(strings.TrimSpace(raw))
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			owner = sub
		}
		if owner == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user identity")
		}

		c.Locals(OwnerIDLocalKey, utils.CopyString(owner))
		return c.Next()
	}
}

// OwnerID returns the id stored by Auth, or "".
func OwnerID(c *fiber.Ctx) string {
	id, _ := c.Locals(OwnerIDLocalKey).(string)
	return id
}

// CallbackAuth guards worker callbacks with a shared token. An empty token rejects everything.
func CallbackAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(CallbackTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid callback token")
		}
		return c.Next()
	}
}
