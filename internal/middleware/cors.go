package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the configured origins to call the API. Credentials stay off so
// "*" remains a valid origin list; auth travels in the Authorization header.
func CORS(cfg *config.Config) fiber.Handler {
	origins := strings.TrimSpace(cfg.CORSOrigins)
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  "GET, POST, PUT, OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Authorization, Accept, X-Admin-Token, X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        600,
	})
}
