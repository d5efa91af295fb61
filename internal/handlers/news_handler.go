package handlers

import (
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/news"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type NewsHandler struct {
	articles *news.ArticleService
	rewards  *services.RewardService
}

func NewNewsHandler(articles *news.ArticleService, rewards *services.RewardService) *NewsHandler {
	return &NewsHandler{articles: articles, rewards: rewards}
}

// List serves GET /api/news?category=&page=&limit=.
func (h *NewsHandler) List(c *fiber.Ctx) error {
	resp, err := h.articles.ListArticles(
		c.UserContext(),
		c.Query("category", news.CategoryAll),
		identity.OptionalUserID(c),
		c.QueryInt("page", 1),
		c.QueryInt("limit", 20),
	)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *NewsHandler) Get(c *fiber.Ctx) error {
	article, err := h.articles.GetArticle(c.UserContext(), c.Params("articleId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(article)
}

// Read records a reading event for the caller.
func (h *NewsHandler) Read(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.ReadArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.rewards.RecordReading(c.UserContext(), userID, c.Params("articleId"), req.TimeSpent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
