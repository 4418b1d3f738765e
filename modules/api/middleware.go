package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserIDKey is the Fiber locals key holding the authenticated user ID.
const UserIDKey = "userID"

// AuthMiddleware validates the caller's JWT. The token is read from the
// Authorization header, or from the token query parameter for WebSocket
// clients that cannot set headers.
func AuthMiddleware(verifier *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid authorization header format. Use: Bearer <token>",
				})
			}
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization token is required",
			})
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, ErrExpiredToken) {
				message = "Token has expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: message,
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		return c.Next()
	}
}

// userIDFrom returns the authenticated user ID stored by AuthMiddleware.
func userIDFrom(c *fiber.Ctx) int64 {
	userID, _ := c.Locals(UserIDKey).(int64)
	return userID
}
