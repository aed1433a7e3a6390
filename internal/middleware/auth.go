// Package middleware provides the HTTP middleware chain: logging context,
// authentication, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"bookshare/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is how long an issued access token stays valid.
const TokenTTL = 24 * time.Hour

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// IssueToken signs an HS256 access token whose subject is the user ID.
func IssueToken(userID uint) (string, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		ID:        uuid.NewString(),
		Issuer:    "bookshare",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return unauthorized(c, "Invalid authorization header format")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid or expired token")
	}

	if claims.Subject == "" {
		return unauthorized(c, "Invalid token structure - missing subject")
	}

	userIDVal, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userIDVal == 0 {
		return unauthorized(c, "Invalid user ID in token")
	}

	c.Locals("userID", uint(userIDVal))
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, uint(userIDVal)))

	return c.Next()
}

// AdminRequired rejects requests from users that are not admins. It must run
// after AuthRequired.
func AdminRequired(isAdmin func(ctx context.Context, userID uint) (bool, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return unauthorized(c, "Authentication required")
		}

		admin, err := isAdmin(c.UserContext(), userID)
		if err != nil {
			Logger.ErrorContext(c.UserContext(), "admin check failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
				"code":  "INTERNAL_ERROR",
			})
		}
		if !admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
				"code":  "FORBIDDEN",
			})
		}
		return c.Next()
	}
}
