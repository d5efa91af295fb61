package handlers

import (
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/news"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	pipeline      *news.Pipeline
	articles      *news.ArticleService
	retention     *services.RetentionService
	redeem        *services.RedeemService
	referrals     *services.ReferralService
	referralBonus int64
}

func NewAdminHandler(
	pipeline *news.Pipeline,
	articles *news.ArticleService,
	retention *services.RetentionService,
	redeem *services.RedeemService,
	referrals *services.ReferralService,
	referralBonus int64,
) *AdminHandler {
	return &AdminHandler{
		pipeline:      pipeline,
		articles:      articles,
		retention:     retention,
		redeem:        redeem,
		referrals:     referrals,
		referralBonus: referralBonus,
	}
}

func (h *AdminHandler) SyncNews(c *fiber.Ctx) error {
	result, err := h.pipeline.SyncAllCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *AdminHandler) RefreshCategory(c *fiber.Ctx) error {
	var req dto.RefreshCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	result, err := h.pipeline.SyncCategory(c.UserContext(), req.Category)
	if err != nil && result == nil {
		return respondError(c, err)
	}
	if err != nil {
		result.Error = err.Error()
	}
	return c.JSON(result)
}

func (h *AdminHandler) NewsStats(c *fiber.Ctx) error {
	stats, err := h.articles.FetchStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) CleanupDaily(c *fiber.Ctx) error {
	result, err := h.retention.CleanupDaily(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *AdminHandler) CleanupMonthly(c *fiber.Ctx) error {
	result, err := h.retention.CleanupMonthly(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *AdminHandler) ListRedeems(c *fiber.Ctx) error {
	resp, err := h.redeem.AdminList(c.UserContext(), c.Query("status"), c.QueryInt("page", 1), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AdminHandler) RedeemStats(c *fiber.Ctx) error {
	stats, err := h.redeem.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) ResolveRedeem(c *fiber.Ctx) error {
	requestID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid request id")
	}
	// Token-only admin calls carry no user; they are recorded as the nil id.
	adminID, _ := identity.GetUserID(c)

	var req dto.ResolveRedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	request, err := h.redeem.ResolveRedeemRequest(c.UserContext(), requestID, adminID, req.Status, req.GiftCode, req.AdminNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(request)
}

func (h *AdminHandler) CreateGiftCard(c *fiber.Ctx) error {
	var req dto.CreateGiftCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	card, err := h.redeem.CreateGiftCard(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

// GrantReferrerBonus credits a referral's referrer; the amount defaults to the
// configured referral bonus.
func (h *AdminHandler) GrantReferrerBonus(c *fiber.Ctx) error {
	referralID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid referral id")
	}
	var req dto.GrantReferrerBonusRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	amount := req.Amount
	if amount == 0 {
		amount = h.referralBonus
	}

	referral, err := h.referrals.GrantReferrerBonus(c.UserContext(), referralID, amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(referral)
}
