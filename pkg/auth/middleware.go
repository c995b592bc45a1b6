package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
)

// AdminAuth validates the X-Admin-Secret header for session issuance
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminSecret := c.Get("X-Admin-Secret")
		if adminSecret == "" {
			return router.ResponseUnauthorized(c, "Missing X-Admin-Secret header")
		}

		if OperatorSecretKey == "" {
			return router.ResponseInternalError(c, "Operator secret key not configured")
		}

		if subtle.ConstantTimeCompare([]byte(adminSecret), []byte(OperatorSecretKey)) != 1 {
			return router.ResponseUnauthorized(c, "Invalid operator secret")
		}

		return c.Next()
	}
}

// OperatorAuth guards local API routes. Accepts either the static
// X-API-Key or a Bearer session token; passes everything through when
// authentication is not configured.
func OperatorAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Enabled() {
			return c.Next()
		}

		if apiKey := c.Get("X-API-Key"); apiKey != "" && LocalAPIKey != "" {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(LocalAPIKey)) == 1 {
				c.Locals("operator", "api-key")
				return c.Next()
			}
			return router.ResponseUnauthorized(c, "Invalid API key")
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return router.ResponseUnauthorized(c, "Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return router.ResponseUnauthorized(c, "Invalid Authorization header format. Use: Bearer <token>")
		}

		claims, err := ValidateOperatorToken(parts[1])
		if err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}

		c.Locals("operator", claims.Operator)
		return c.Next()
	}
}
