package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	// Postgres connection string
	DatabaseURL string
	UseMockDB   bool

	// Intake API
	IntakeAPIKey   string
	MediaChannelID int64

	AdminChatID int64
	MediaSettle time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"
	if !config.UseMockDB {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
		}
	}

	// Intake API key is optional; without it the intake endpoint rejects
	// everything, which is the safe default.
	config.IntakeAPIKey = os.Getenv("INTAKE_API_KEY")

	var err error
	if config.MediaChannelID, err = int64Env("MEDIA_CHANNEL_ID"); err != nil {
		return nil, err
	}
	if config.AdminChatID, err = int64Env("ADMIN_CHAT_ID"); err != nil {
		return nil, err
	}

	settleMS := os.Getenv("MEDIA_SETTLE_MS")
	if settleMS != "" {
		ms, err := strconv.Atoi(settleMS)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid MEDIA_SETTLE_MS: %s", settleMS)
		}
		config.MediaSettle = time.Duration(ms) * time.Millisecond
	}

	return config, nil
}

func int64Env(name string) (int64, error) {
	s := os.Getenv(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, s)
	}
	return v, nil
}
