package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/news"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/scheduler"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	jobNewsSync       = "news-sync"
	jobDailyCleanup   = "daily-cleanup"
	jobMonthlyCleanup = "monthly-cleanup"
	jobLogRetention   = "system-log-retention"
)

// app holds the wired services shared by every command.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	redis     *redis.Client
	pipeline  *news.Pipeline
	retention *services.RetentionService
	scheduler *scheduler.Scheduler
	handlers  routes.Handlers
}

// connect loads configuration and opens the migrated database.
func connect() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	if err := database.Migrate(database.DB); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cfg *config.Config, db *gorm.DB) (*app, error) {
	loc := cfg.Location()

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SendGridAPIKey != "" {
		notifier = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.FrontendURL)
	}

	streak := services.NewStreakService(db, cfg)
	rewards := services.NewRewardService(db, cfg, streak)
	referrals := services.NewReferralService(db, cfg)
	auth := services.NewAuthService(db, cfg, referrals, services.NewGoogleVerifier(cfg.GoogleAudiences()), notifier)
	users := services.NewUserService(db, loc)
	redeem := services.NewRedeemService(db, notifier)
	retention := services.NewRetentionService(db)

	keys := cfg.NewsAPIKeys()
	if len(keys) == 0 {
		slog.Warn("no news provider keys configured, sync will fail")
	}
	pipeline := news.NewPipeline(db, news.NewClient(cfg, news.NewKeyRotator(keys)), news.OptionsFromConfig(cfg))
	articles := news.NewArticleService(db, loc)

	a := &app{
		cfg:       cfg,
		db:        db,
		pipeline:  pipeline,
		retention: retention,
		handlers: routes.Handlers{
			Health:  handlers.NewHealthHandler(db),
			Auth:    handlers.NewAuthHandler(auth),
			News:    handlers.NewNewsHandler(articles, rewards),
			Account: handlers.NewAccountHandler(users, streak),
			Redeem:  handlers.NewRedeemHandler(redeem),
			Admin:   handlers.NewAdminHandler(pipeline, articles, retention, redeem, referrals, int64(cfg.ReferralSignupBonus)),
		},
	}

	locker, err := a.locker()
	if err != nil {
		return nil, err
	}
	a.scheduler = scheduler.New(loc, locker)
	if err := a.registerJobs(); err != nil {
		return nil, err
	}
	return a, nil
}

// locker uses Redis when REDIS_ADDR is set so that several replicas never run
// the same job at once.
func (a *app) locker() (scheduler.Locker, error) {
	if a.cfg.RedisAddr == "" {
		return scheduler.NewLocalLocker(), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", a.cfg.RedisAddr, err)
	}
	slog.Info("redis job locks enabled", "addr", a.cfg.RedisAddr)
	return scheduler.NewRedisLocker(a.redis, time.Hour), nil
}

func (a *app) registerJobs() error {
	jobs := []scheduler.Job{
		{
			Name:    jobNewsSync,
			Spec:    a.cfg.ScheduleNewsSync,
			Timeout: 25 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := a.pipeline.SyncAllCategories(ctx)
				return err
			},
		},
		{
			Name:    jobDailyCleanup,
			Spec:    a.cfg.ScheduleDailyCleanup,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := a.retention.CleanupDaily(ctx)
				return err
			},
		},
		{
			Name:    jobMonthlyCleanup,
			Spec:    a.cfg.ScheduleMonthlyCleanup,
			Timeout: 30 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := a.retention.CleanupMonthly(ctx)
				return err
			},
		},
		{
			Name:    jobLogRetention,
			Spec:    a.cfg.ScheduleLogRetention,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				n, err := logging.PruneSystemLogs(ctx, a.db, time.Now(), logging.SystemLogRetention)
				if err == nil && n > 0 {
					slog.Info("system logs pruned", "deleted", n)
				}
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := a.scheduler.Register(job); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) close() {
	a.scheduler.Stop()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
}
