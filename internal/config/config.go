package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity Provider
	IdentityURL    string
	IdentityAPIKey string

	// Object Storage
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageBucket        string
	StoragePublicBaseURL string
	StorageUseSSL        bool
	StorageUploadMode    string // "direct" または "signed"

	// Session
	SessionMaxAge int

	// Upload
	UploadMaxSizeKB int
	UploadQuality   float64

	// Contact
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	ContactRecipient string

	// Blog
	BlogFeedURL      string
	BlogSyncInterval time.Duration

	// GitHub
	GitHubToken           string
	StarsRefreshInterval  time.Duration
	StarsTTL              time.Duration
	StarsMaxCallsPerCycle int

	// Rate Limit
	RateLimitGeneral int
	RateLimitContact int

	// Retention
	MessageRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdentityURL = os.Getenv("IDENTITY_URL")
	if cfg.IdentityURL == "" {
		missing = append(missing, "IDENTITY_URL")
	}

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	if cfg.StorageEndpoint == "" {
		missing = append(missing, "STORAGE_ENDPOINT")
	}

	cfg.StorageAccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	if cfg.StorageAccessKey == "" {
		missing = append(missing, "STORAGE_ACCESS_KEY")
	}

	cfg.StorageSecretKey = os.Getenv("STORAGE_SECRET_KEY")
	if cfg.StorageSecretKey == "" {
		missing = append(missing, "STORAGE_SECRET_KEY")
	}

	cfg.StorageBucket = os.Getenv("STORAGE_BUCKET")
	if cfg.StorageBucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}

	cfg.StoragePublicBaseURL = os.Getenv("STORAGE_PUBLIC_BASE_URL")
	if cfg.StoragePublicBaseURL == "" {
		missing = append(missing, "STORAGE_PUBLIC_BASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.IdentityAPIKey = getEnvString("IDENTITY_API_KEY", "")
	cfg.StorageUseSSL = getEnvBool("STORAGE_USE_SSL", true)
	cfg.StorageUploadMode = getEnvString("STORAGE_UPLOAD_MODE", "direct")
	if cfg.StorageUploadMode != "direct" && cfg.StorageUploadMode != "signed" {
		return nil, fmt.Errorf("STORAGE_UPLOAD_MODE must be \"direct\" or \"signed\", got %q", cfg.StorageUploadMode)
	}
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.UploadMaxSizeKB = getEnvInt("UPLOAD_MAX_SIZE_KB", 100)
	cfg.UploadQuality = getEnvFloat("UPLOAD_QUALITY", 0.8)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.ContactRecipient = getEnvString("CONTACT_RECIPIENT", "")
	cfg.BlogFeedURL = getEnvString("BLOG_FEED_URL", "")
	cfg.BlogSyncInterval = getEnvDuration("BLOG_SYNC_INTERVAL", 1*time.Hour)
	cfg.GitHubToken = getEnvString("GITHUB_TOKEN", "")
	cfg.StarsRefreshInterval = getEnvDuration("STARS_REFRESH_INTERVAL", 30*time.Minute)
	cfg.StarsTTL = getEnvDuration("STARS_TTL", 6*time.Hour)
	cfg.StarsMaxCallsPerCycle = getEnvInt("STARS_MAX_CALLS_PER_CYCLE", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitContact = getEnvInt("RATE_LIMIT_CONTACT", 5)
	cfg.MessageRetentionDays = getEnvInt("MESSAGE_RETENTION_DAYS", 365)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
