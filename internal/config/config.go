package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrMissingToken    = errors.New("BOT_TOKEN is required")
	ErrUnknownDriver   = errors.New("unknown STORE_DRIVER")
	ErrMissingRedisURL = errors.New("REDIS_URL or REDIS_URL_FILE is required for the redis driver")
)

type Config struct {
	// Telegram
	BotToken    string
	BotUsername string

	// Logging
	LogLevel string

	// Store
	StoreDriver  string
	DBPath       string
	RedisURL     string
	RedisURLFile string

	// Retry / timeouts
	RetryAttempts  int
	RetryBaseDelay time.Duration
	StoreTimeout   time.Duration
	ScanTimeout    time.Duration

	// Broadcasts
	PromoInterval   time.Duration
	PromoFirstRun   time.Duration
	RankingInterval time.Duration
	RankingFirstRun time.Duration

	// Ledger
	OptimisticBalances bool

	// Payout
	PayoutRequirePrompt bool
	PayoutPromptTTL     time.Duration
	PayoutAcceptTON     bool

	// Menu
	MinerURL         string
	SupportURL       string
	WelcomePhotoURL  string
	WelcomeMenuDelay time.Duration

	// Health / tracing
	HealthPort      int
	TracingEnabled  bool
	TracingEndpoint string

	// Supervision
	RestartDelay time.Duration
}

func Load() *Config {
	cfg := &Config{
		// Telegram
		BotToken:    getEnv("BOT_TOKEN", ""),
		BotUsername: strings.TrimPrefix(getEnv("BOT_USERNAME", "Believeminerbot"), "@"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Store
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		DBPath:       getEnv("DB_PATH", "./referrals.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisURLFile: getEnv("REDIS_URL_FILE", ""),

		// Retry / timeouts
		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", time.Second),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 30*time.Second),
		ScanTimeout:    getEnvDuration("SCAN_TIMEOUT", 60*time.Second),

		// Broadcasts
		PromoInterval:   getEnvDuration("PROMO_INTERVAL", 12*time.Hour),
		PromoFirstRun:   getEnvDuration("PROMO_FIRST_RUN", time.Minute),
		RankingInterval: getEnvDuration("RANKING_INTERVAL", 7*24*time.Hour),
		RankingFirstRun: getEnvDuration("RANKING_FIRST_RUN", 2*time.Minute),

		OptimisticBalances: getEnvBool("OPTIMISTIC_BALANCES", true),

		// Payout
		PayoutRequirePrompt: getEnvBool("PAYOUT_REQUIRE_PROMPT", false),
		PayoutPromptTTL:     getEnvDuration("PAYOUT_PROMPT_TTL", 10*time.Minute),
		PayoutAcceptTON:     getEnvBool("PAYOUT_ACCEPT_TON", false),

		// Menu
		MinerURL:         getEnv("MINER_URL", "https://believe-miner.surge.sh"),
		SupportURL:       getEnv("SUPPORT_URL", "https://t.me/Suporte20260"),
		WelcomePhotoURL:  getEnv("WELCOME_PHOTO_URL", "https://cdn.jornaldebrasilia.com.br/wp-content/uploads/2024/04/30134427/WhatsApp-Image-2024-04-30-at-12.45.15.jpeg"),
		WelcomeMenuDelay: getEnvDuration("WELCOME_MENU_DELAY", 3*time.Second),

		// Health / tracing
		HealthPort:      getEnvInt("HEALTH_PORT", 8080),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),

		RestartDelay: getEnvDuration("RESTART_DELAY", 5*time.Second),
	}

	return cfg
}

// Validate checks required settings and resolves the Redis URL from its
// credential file when only REDIS_URL_FILE is set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}

	switch c.StoreDriver {
	case "sqlite", "memory":
		return nil
	case "redis":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StoreDriver)
	}

	if c.RedisURL == "" && c.RedisURLFile != "" {
		data, err := os.ReadFile(c.RedisURLFile)
		if err != nil {
			return fmt.Errorf("read redis url file: %w", err)
		}
		c.RedisURL = strings.TrimSpace(string(data))
	}
	if c.RedisURL == "" {
		return ErrMissingRedisURL
	}
	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
