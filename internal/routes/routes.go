package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Handlers groups every HTTP handler mounted under /api.
type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	News    *handlers.NewsHandler
	Account *handlers.AccountHandler
	Redeem  *handlers.RedeemHandler
	Admin   *handlers.AdminHandler
}

func Setup(app *fiber.App, cfg *config.Config, db *gorm.DB, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/google", h.Auth.GoogleSignIn)
	auth.Post("/verify-email", h.Auth.VerifyEmail)
	auth.Post("/resend-verification", h.Auth.ResendVerification)
	auth.Post("/forgot-password", h.Auth.ForgotPassword)
	auth.Post("/reset-password", h.Auth.ResetPassword)

	jwt := middleware.JWTProtected(cfg)
	api.Post("/auth/logout", jwt, h.Auth.Logout)
	api.Get("/auth/me", jwt, h.Auth.Me)

	// News is public; a valid token hides articles already rewarded today.
	api.Get("/news", middleware.OptionalJWT(cfg), h.News.List)
	api.Get("/news/:articleId", h.News.Get)
	api.Post("/news/:articleId/read", jwt, h.News.Read)

	me := api.Group("/me", jwt)
	me.Get("", h.Account.Profile)
	me.Put("", h.Account.UpdateProfile)
	me.Get("/login-history", h.Account.LoginHistory)
	me.Get("/wallet", h.Account.Wallet)
	me.Get("/transactions", h.Account.Transactions)
	me.Get("/referrals", h.Account.Referrals)
	me.Get("/reading-stats", h.Account.ReadingStats)
	me.Post("/streak/evaluate", h.Account.EvaluateStreak)

	api.Get("/gift-cards", h.Redeem.GiftCards)
	api.Post("/redeem", jwt, h.Redeem.Create)
	api.Get("/redeem/history", jwt, h.Redeem.History)

	admin := api.Group("/admin", jwt, middleware.AdminRequired(db, cfg))
	admin.Post("/news/sync", h.Admin.SyncNews)
	admin.Post("/news/refresh", h.Admin.RefreshCategory)
	admin.Get("/news/stats", h.Admin.NewsStats)
	admin.Post("/cleanup/daily", h.Admin.CleanupDaily)
	admin.Post("/cleanup/monthly", h.Admin.CleanupMonthly)
	admin.Get("/redeem", h.Admin.ListRedeems)
	admin.Get("/redeem/stats", h.Admin.RedeemStats)
	admin.Put("/redeem/:id", h.Admin.ResolveRedeem)
	admin.Post("/gift-cards", h.Admin.CreateGiftCard)
	admin.Post("/referrals/:id/grant", h.Admin.GrantReferrerBonus)
}
