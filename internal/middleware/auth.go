package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ContextKey: identity.LocalsKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// OptionalJWT attaches the caller's token when a valid bearer token is sent
// and lets anonymous requests through untouched.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	key := []byte(cfg.JWTSecret)
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		raw, found := strings.CutPrefix(auth, "Bearer ")
		if !found || raw == "" {
			return c.Next()
		}
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err == nil && token.Valid {
			c.Locals(identity.LocalsKey, token)
		}
		return c.Next()
	}
}
