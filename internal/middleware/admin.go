package middleware

import (
	"slices"
	"strings"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminRequired admits a caller when any of these hold:
// 1. X-Admin-Token matches the configured token
// 2. the email or user id is in the configured admin lists
// 3. the stored user has the admin role and is active
func AdminRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken {
			return c.Next()
		}

		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		email := strings.ToLower(identity.GetEmail(c))
		if slices.Contains(adminEmails, email) || slices.Contains(adminUserIDs, userID.String()) {
			return c.Next()
		}

		// The role claim alone is not trusted: roles can be revoked before the
		// token expires.
		var user models.User
		if err := db.WithContext(c.UserContext()).Select("role", "account_status").
			First(&user, "id = ?", userID).Error; err == nil {
			if user.Role == models.RoleAdmin && user.AccountStatus == models.AccountActive {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
