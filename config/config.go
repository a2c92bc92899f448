// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret string
	JWTExpiry time.Duration

	AllowedOrigins []string
	BodyLimitMB    int

	// R2 / S3 blob storage for payment proofs. Empty bucket means local uploads/ dir.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	SeedAdminEmail    string
	SeedAdminPassword string

	TelegramToken       string
	TelegramAdminChatID int64

	GoogleServiceAccountJSON string
	GoogleSheetsID           string
	SheetsSyncInterval       time.Duration

	JudgeLoginPerMinute int
}

// FromEnv reads configuration after godotenv has populated the environment.
func FromEnv() (Config, error) {
	var c Config

	c.Port = envOr("PORT", "5200")
	c.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if c.DatabaseURL == "" {
		return c, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	c.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if c.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	expiry, err := time.ParseDuration(envOr("JWT_EXPIRY", "72h"))
	if err != nil {
		return c, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}
	c.JWTExpiry = expiry

	originsEnv := os.Getenv("ALLOWED_ORIGINS")
	if originsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		originsEnv = "http://localhost:3000"
	}
	for _, origin := range strings.Split(originsEnv, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, origin)
		}
	}

	c.BodyLimitMB = envInt("BODY_LIMIT_MB", 10)

	c.R2AccountID = strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID"))
	c.R2AccessKeyID = strings.TrimSpace(os.Getenv("R2_ACCESS_KEY_ID"))
	c.R2AccessKeySecret = strings.TrimSpace(os.Getenv("R2_ACCESS_KEY_SECRET"))
	c.R2Bucket = strings.TrimSpace(os.Getenv("R2_BUCKET_NAME"))
	c.CDNBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("CDN_BASE_URL")), "/")

	c.SeedAdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	c.SeedAdminPassword = os.Getenv("ADMIN_PASSWORD")

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_ADMIN_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		c.TelegramAdminChatID = id
	}

	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	c.GoogleSheetsID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_ID"))
	interval, err := time.ParseDuration(envOr("SHEETS_SYNC_INTERVAL", "10m"))
	if err != nil {
		return c, fmt.Errorf("invalid SHEETS_SYNC_INTERVAL: %w", err)
	}
	c.SheetsSyncInterval = interval

	c.JudgeLoginPerMinute = envInt("JUDGE_LOGIN_RPM", 20)

	return c, nil
}

func (c Config) R2Enabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != ""
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramAdminChatID != 0
}

func (c Config) SheetsEnabled() bool {
	return c.GoogleServiceAccountJSON != "" && c.GoogleSheetsID != ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("⚠️  %s=%q is not a positive integer, using %d", key, raw, def)
		return def
	}
	return n
}
