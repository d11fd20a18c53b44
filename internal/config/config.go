package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Session
	SessionMaxAge        int
	SessionRetentionDays int

	// Timezone: タイムゾーン指定のない日時入力に付与するゾーン
	Timezone string

	// Identity sync
	IdentitySyncSecret string
	AdminGroupName     string
	ElevateStaff       bool
	ElevateSuperuser   bool
	DefaultGroupName   string

	// Web surface
	WebDeleteRoles []string

	// Event bus
	EventBusURL  string
	EventBusName string

	// Scheduler
	SchedulerAPIURL  string
	SchedulerAPIKey  string
	SchedulerTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数が優先）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発用。無ければ黙って無視する。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 7)
	cfg.Timezone = getEnvString("APP_TIMEZONE", "Europe/Berlin")

	cfg.IdentitySyncSecret = os.Getenv("IDENTITY_SYNC_SECRET")
	cfg.AdminGroupName = getEnvString("ADMIN_GROUP_NAME", "Admin")
	cfg.ElevateStaff = getEnvBool("ELEVATE_ADMINS_TO_STAFF", true)
	cfg.ElevateSuperuser = getEnvBool("ELEVATE_ADMINS_TO_SUPERUSER", false)
	cfg.DefaultGroupName = getEnvString("DEFAULT_GROUP_NAME", "users")

	cfg.WebDeleteRoles = splitList(getEnvString("WEB_DELETE_ROLES", "Admins,dev"))

	cfg.EventBusURL = os.Getenv("EVENT_BUS_URL")
	cfg.EventBusName = getEnvString("EVENT_BUS_NAME", "domain-events-bus")

	cfg.SchedulerAPIURL = os.Getenv("SCHEDULER_API_URL")
	cfg.SchedulerAPIKey = os.Getenv("SCHEDULER_API_KEY")
	cfg.SchedulerTimeout = getEnvDuration("SCHEDULER_TIMEOUT", 10*time.Second)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// Location は設定されたタイムゾーンのtime.Locationを返す。
// 不正な名前の場合はエラーを返す。
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitList はカンマ区切りの設定値を空白トリムして分割する。
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
