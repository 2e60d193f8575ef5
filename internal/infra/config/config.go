package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	ChannelConsole  = "console"
	ChannelDesktop  = "desktop"
	ChannelTelegram = "telegram"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	Environment string
	LogLevel    string
	UserID      string // profile the delivery log is attributed to

	StoreDriver     string
	SQLitePath      string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration

	Channel            string
	TelegramToken      string
	TelegramChatID     int64
	TelegramRatePerSec float64

	AppBaseURL string
	HTTPAddr   string // empty disables the control API

	WakeCronSpec     string
	MissedFireGrace  time.Duration
	CatchUpTolerance time.Duration
	DefaultsOnStart  bool

	CacheDir  string
	CacheName string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.UserID = getEnv("USER_ID", "local")

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite))
	switch cfg.StoreDriver {
	case StoreSQLite:
		cfg.SQLitePath = getEnv("SQLITE_PATH", "habit_notifier.db")
	case StorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StoreMongo:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is not set")
		}
		cfg.MongoDatabase = getEnv("MONGODB_DATABASE", "habit_notifier")
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = getDuration("DELIVERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.Channel = strings.ToLower(getEnv("CHANNEL", ChannelConsole))
	switch cfg.Channel {
	case ChannelConsole, ChannelDesktop:
	case ChannelTelegram:
		cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
		if cfg.TelegramToken == "" {
			return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
		}
		chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
		if chatIDStr == "" {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID is not set")
		}
		cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramRatePerSec, err = strconv.ParseFloat(getEnv("TELEGRAM_RATE_PER_SEC", "1"), 64)
		if err != nil || cfg.TelegramRatePerSec <= 0 {
			return nil, fmt.Errorf("invalid TELEGRAM_RATE_PER_SEC %q", os.Getenv("TELEGRAM_RATE_PER_SEC"))
		}
	default:
		return nil, fmt.Errorf("unsupported CHANNEL %q", cfg.Channel)
	}

	cfg.AppBaseURL = strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", "127.0.0.1:8787")

	cfg.WakeCronSpec = getEnv("WAKE_CRON_SPEC", "* * * * *") // every minute
	if cfg.MissedFireGrace, err = getDuration("MISSED_FIRE_GRACE", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CatchUpTolerance, err = getDuration("CATCHUP_TOLERANCE", time.Minute); err != nil {
		return nil, err
	}
	cfg.DefaultsOnStart, err = strconv.ParseBool(getEnv("DEFAULTS_ON_START", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULTS_ON_START: %w", err)
	}

	cfg.CacheDir = getEnv("CACHE_DIR", ".cache/habit_notifier")
	cfg.CacheName = getEnv("CACHE_NAME", "habit-tracker-v1")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}
