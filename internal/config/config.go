package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	// Embedded zoneinfo so TIMEZONE resolves on hosts without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	// Database
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	// JWT
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTAccessExpiry  time.Duration `mapstructure:"JWT_ACCESS_EXPIRY"`
	JWTRefreshExpiry time.Duration `mapstructure:"JWT_REFRESH_EXPIRY"`

	// Password logins are refused until the mailed code is confirmed
	RequireEmailVerification bool `mapstructure:"REQUIRE_EMAIL_VERIFICATION"`

	// Google sign-in (comma separated OAuth client IDs)
	GoogleClientIDs string `mapstructure:"GOOGLE_CLIENT_IDS"`

	// Admin
	AdminEmails  string `mapstructure:"ADMIN_EMAILS"`
	AdminUserIDs string `mapstructure:"ADMIN_USER_IDS"`
	AdminToken   string `mapstructure:"ADMIN_TOKEN"`

	// Server
	Port        string `mapstructure:"PORT"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	Timezone    string `mapstructure:"TIMEZONE"`
	AppEnv      string `mapstructure:"APP_ENV"`
	SentryDSN   string `mapstructure:"SENTRY_DSN"`

	// Job locks; empty means in-process locks
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Mail
	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	MailFrom       string `mapstructure:"MAIL_FROM"`
	FrontendURL    string `mapstructure:"FRONTEND_URL"`

	// News provider
	NewsDataAPIKeys   string        `mapstructure:"NEWSDATA_API_KEYS"`
	NewsDataBaseURL   string        `mapstructure:"NEWSDATA_BASE_URL"`
	NewsCountry       string        `mapstructure:"NEWS_COUNTRY"`
	NewsLanguage      string        `mapstructure:"NEWS_LANGUAGE"`
	NewsPageSize      int           `mapstructure:"NEWS_PAGE_SIZE"`
	NewsTimeout       time.Duration `mapstructure:"NEWS_TIMEOUT"`
	NewsMaxPages      int           `mapstructure:"NEWS_MAX_PAGES"`
	NewsPageDelay     time.Duration `mapstructure:"NEWS_PAGE_DELAY"`
	NewsCategoryDelay time.Duration `mapstructure:"NEWS_CATEGORY_DELAY"`
	NewsRetention     int           `mapstructure:"NEWS_RETENTION_COUNT"`
	NewsCategories    string        `mapstructure:"NEWS_CATEGORIES"`
	NewsSyncOnStart   bool          `mapstructure:"NEWS_SYNC_ON_START"`

	// Schedules (cron syntax, evaluated in Timezone)
	ScheduleNewsSync       string `mapstructure:"SCHEDULE_NEWS_SYNC"`
	ScheduleDailyCleanup   string `mapstructure:"SCHEDULE_DAILY_CLEANUP"`
	ScheduleMonthlyCleanup string `mapstructure:"SCHEDULE_MONTHLY_CLEANUP"`
	ScheduleLogRetention   string `mapstructure:"SCHEDULE_LOG_RETENTION"`

	// Rewards
	MinReadSeconds      int `mapstructure:"MIN_READ_SECONDS"`
	ArticleCoins        int `mapstructure:"ARTICLE_COINS"`
	StreakMilestone     int `mapstructure:"STREAK_MILESTONE"`
	StreakBonus         int `mapstructure:"STREAK_BONUS"`
	SignupBonus         int `mapstructure:"SIGNUP_BONUS"`
	ReferralSignupBonus int `mapstructure:"REFERRAL_SIGNUP_BONUS"`
	DailyReadLimit      int `mapstructure:"DAILY_READ_LIMIT"`
}

var defaults = map[string]any{
	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "postgres",
	"DB_PASSWORD": "",
	"DB_NAME":     "newsrewards_db",
	"DB_SSLMODE":  "disable",

	"JWT_SECRET":         "",
	"JWT_ACCESS_EXPIRY":  "15m",
	"JWT_REFRESH_EXPIRY": "168h",

	"REQUIRE_EMAIL_VERIFICATION": false,

	"GOOGLE_CLIENT_IDS": "",

	"ADMIN_EMAILS":   "",
	"ADMIN_USER_IDS": "",
	"ADMIN_TOKEN":    "",

	"PORT":         "8080",
	"CORS_ORIGINS": "*",
	"TIMEZONE":     "Asia/Kolkata",
	"APP_ENV":      "development",
	"SENTRY_DSN":   "",

	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",

	"SENDGRID_API_KEY": "",
	"MAIL_FROM":        "no-reply@newsrewards.app",
	"FRONTEND_URL":     "http://localhost:3000",

	"NEWSDATA_API_KEYS":    "",
	"NEWSDATA_BASE_URL":    "https://newsdata.io/api/1/latest",
	"NEWS_COUNTRY":         "in",
	"NEWS_LANGUAGE":        "en",
	"NEWS_PAGE_SIZE":       10,
	"NEWS_TIMEOUT":         "10s",
	"NEWS_MAX_PAGES":       5,
	"NEWS_PAGE_DELAY":      "1500ms",
	"NEWS_CATEGORY_DELAY":  "3s",
	"NEWS_RETENTION_COUNT": 100,
	"NEWS_CATEGORIES":      "all,sports,politics,technology,business,entertainment,health,crime",
	"NEWS_SYNC_ON_START":   true,

	"SCHEDULE_NEWS_SYNC":       "*/30 * * * *",
	"SCHEDULE_DAILY_CLEANUP":   "0 0 * * *",
	"SCHEDULE_MONTHLY_CLEANUP": "1 0 1 * *",
	"SCHEDULE_LOG_RETENTION":   "30 3 * * *",

	"MIN_READ_SECONDS":      30,
	"ARTICLE_COINS":         10,
	"STREAK_MILESTONE":      7,
	"STREAK_BONUS":          50,
	"SIGNUP_BONUS":          100,
	"REFERRAL_SIGNUP_BONUS": 100,
	"DAILY_READ_LIMIT":      0,
}

// maxNumberedKeys bounds the NEWSDATA_API_KEY_<n> scan.
const maxNumberedKeys = 10

// Load reads configuration from the environment, optionally layered over an
// app.env file in path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}
	for i := 1; i <= maxNumberedKeys; i++ {
		_ = v.BindEnv(fmt.Sprintf("NEWSDATA_API_KEY_%d", i))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// FromDefaults builds a configuration from the built-in defaults alone,
// ignoring the environment and any app.env file.
func FromDefaults() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	keys := splitList(cfg.NewsDataAPIKeys)
	for i := 1; i <= maxNumberedKeys; i++ {
		if k := strings.TrimSpace(v.GetString(fmt.Sprintf("NEWSDATA_API_KEY_%d", i))); k != "" {
			keys = append(keys, k)
		}
	}
	cfg.NewsDataAPIKeys = strings.Join(keys, ",")

	return &cfg, nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func (c *Config) NewsAPIKeys() []string {
	return splitList(c.NewsDataAPIKeys)
}

func (c *Config) Categories() []string {
	return splitList(c.NewsCategories)
}

func (c *Config) GoogleAudiences() []string {
	return splitList(c.GoogleClientIDs)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
