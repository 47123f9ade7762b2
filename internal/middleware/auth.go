// Package middleware provides request-scoped HTTP middleware: authentication,
// rate limiting, structured logging, and tracing.
package middleware

import (
	"strconv"
	"strings"

	"hushfeed/internal/config"
	"hushfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired rejects requests without a valid bearer token. Tokens are
// issued elsewhere; this only verifies them and stores the subject as
// c.Locals("userID").
func AuthRequired(c *fiber.Ctx) error {
	userID, err := authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.Locals("userID", userID)
	WithUserID(c, userID)
	return c.Next()
}

// OptionalAuth resolves the viewer when a valid token is present and lets
// anonymous readers through otherwise.
func OptionalAuth(c *fiber.Ctx) error {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		if userID, err := authenticate(header); err == nil {
			c.Locals("userID", userID)
			WithUserID(c, userID)
		}
	}
	return c.Next()
}

func authenticate(authHeader string) (uint, error) {
	if authHeader == "" {
		return 0, models.NewUnauthenticatedError("Authorization header required")
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, models.NewUnauthenticatedError("Invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, models.NewUnauthenticatedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, models.NewUnauthenticatedError("Invalid token claims")
	}

	// Subject carries the user id as a decimal string (RFC 7519).
	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, models.NewUnauthenticatedError("Invalid token subject")
	}

	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userIDVal == 0 {
		return 0, models.NewUnauthenticatedError("Invalid user ID in token")
	}

	return uint(userIDVal), nil
}

// CurrentUserID returns the authenticated user, or 0 for anonymous readers.
func CurrentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}
