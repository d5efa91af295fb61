package handlers

import (
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AccountHandler serves the /api/me views.
type AccountHandler struct {
	users  *services.UserService
	streak *services.StreakService
}

func NewAccountHandler(users *services.UserService, streak *services.StreakService) *AccountHandler {
	return &AccountHandler{users: users, streak: streak}
}

func (h *AccountHandler) Profile(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.Profile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	resp, err := h.users.UpdateProfile(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) LoginHistory(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.LoginHistory(c.UserContext(), userID, c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) Wallet(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.Wallet(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) Transactions(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.Transactions(c.UserContext(), userID, c.QueryInt("page", 1), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) Referrals(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.Referrals(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) ReadingStats(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.users.ReadingStats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AccountHandler) EvaluateStreak(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.streak.EvaluateStreak(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}
