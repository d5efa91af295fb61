package handlers

import (
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type RedeemHandler struct {
	redeem *services.RedeemService
}

func NewRedeemHandler(redeem *services.RedeemService) *RedeemHandler {
	return &RedeemHandler{redeem: redeem}
}

func (h *RedeemHandler) GiftCards(c *fiber.Ctx) error {
	cards, err := h.redeem.ListGiftCards(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"gift_cards": cards})
}

func (h *RedeemHandler) Create(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.CreateRedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	cardID, err := uuid.Parse(req.GiftCardID)
	if err != nil {
		return badRequest(c, "gift_card_id must be a valid id")
	}

	request, err := h.redeem.CreateRedeemRequest(c.UserContext(), userID, cardID, req.DeliveryEmail)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

func (h *RedeemHandler) History(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.redeem.History(c.UserContext(), userID, c.QueryInt("page", 1), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}
