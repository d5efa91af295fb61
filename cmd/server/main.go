package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/routes"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsrewards",
		Short:         "News rewards API server and maintenance jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return serve() },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the job scheduler",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve() },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := connect(); err != nil {
					return err
				}
				slog.Info("migrations applied")
				return database.Close()
			},
		},
		&cobra.Command{
			Use:   "sync-news",
			Short: "Fetch every configured news category once",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runJob(cmd.Context(), jobNewsSync)
			},
		},
		&cobra.Command{
			Use:       "cleanup daily|monthly",
			Short:     "Run a retention cleanup once",
			Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
			ValidArgs: []string{"daily", "monthly"},
			RunE: func(cmd *cobra.Command, args []string) error {
				if args[0] == "monthly" {
					return runJob(cmd.Context(), jobMonthlyCleanup)
				}
				return runJob(cmd.Context(), jobDailyCleanup)
			},
		},
	)
	return root
}

// runJob runs one scheduled job outside the server under the shared job lock.
func runJob(ctx context.Context, name string) error {
	cfg, err := connect()
	if err != nil {
		return err
	}
	defer database.Close()

	a, err := newApp(cfg, database.DB)
	if err != nil {
		return err
	}
	defer a.close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.scheduler.RunNow(ctx, name)
}

func serve() error {
	cfg, err := connect()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.Attach(database.DB)

	a, err := newApp(cfg, database.DB)
	if err != nil {
		pgLogHandler.Stop()
		return err
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	server := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	server.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	server.Use(middleware.CORS(cfg))
	server.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(server, cfg, database.DB, a.handlers)

	a.scheduler.Start()
	for name, next := range a.scheduler.Next() {
		slog.Info("job scheduled", "job", name, "next", next)
	}
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	syncDone := make(chan struct{})
	if cfg.NewsSyncOnStart {
		go func() {
			defer close(syncDone)
			if err := a.scheduler.RunNow(syncCtx, jobNewsSync); err != nil {
				slog.Warn("startup news sync failed", "error", err)
			}
		}()
	} else {
		close(syncDone)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancelSync()
	<-syncDone
	a.close()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: message})
}
