package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

type Config struct {
	ProjectID   string
	Port        string
	Environment string

	TelegramBotToken     string
	NotificationsEnabled bool
	NotificationDelay    time.Duration

	CatalogURL      string
	CategoryURL     string
	StoreLocatorURL string
	LanguageCode    string
	PageSize        int
	StoreIDs        []string

	RequestDelayMin       time.Duration
	RequestDelayMax       time.Duration
	ThrottleWaitMin       time.Duration
	ThrottleWaitMax       time.Duration
	UserAgentRotateChance float64
	HTTPTimeout           time.Duration

	CategoryDelay time.Duration
	ProductDelay  time.Duration

	SyncSchedule string
	SyncTimeout  time.Duration

	LogLevel string
	LogFile  string
}

// IsProduction reports whether notifications go out for real. Any other
// environment only logs message previews.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	environment := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if environment == "" {
		environment = EnvironmentDevelopment
	}

	notificationsEnabled, err := boolEnv("NOTIFICATIONS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		if notificationsEnabled && environment == EnvironmentProduction {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when notifications are enabled in production")
		}
		slog.Warn("TELEGRAM_BOT_TOKEN not set, notifications will only be previewed")
	}

	catalogURL := stringEnv("CATALOG_URL", "https://web-api.example-retail.com/circular/public/offers/regular")
	categoryURL := stringEnv("CATEGORY_URL", "https://web-api.example-retail.com/circular/public/categories")

	pageSize, err := intEnv("CATALOG_PAGE_SIZE", 32)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("invalid CATALOG_PAGE_SIZE %d: must be positive", pageSize)
	}

	cfg := &Config{
		ProjectID:            projectID,
		Port:                 port,
		Environment:          environment,
		TelegramBotToken:     botToken,
		NotificationsEnabled: notificationsEnabled,
		CatalogURL:           catalogURL,
		CategoryURL:          categoryURL,
		StoreLocatorURL:      os.Getenv("STORE_LOCATOR_URL"),
		LanguageCode:         stringEnv("LANGUAGE_CODE", "en"),
		PageSize:             pageSize,
		StoreIDs:             listEnv("STORE_IDS"),
		SyncSchedule:         os.Getenv("SYNC_SCHEDULE"),
		LogLevel:             stringEnv("LOG_LEVEL", "info"),
		LogFile:              os.Getenv("LOG_FILE"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"NOTIFICATION_DELAY", "100ms", &cfg.NotificationDelay},
		{"REQUEST_DELAY_MIN", "1s", &cfg.RequestDelayMin},
		{"REQUEST_DELAY_MAX", "3s", &cfg.RequestDelayMax},
		{"THROTTLE_WAIT_MIN", "30s", &cfg.ThrottleWaitMin},
		{"THROTTLE_WAIT_MAX", "60s", &cfg.ThrottleWaitMax},
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
		{"SYNC_TIMEOUT", "30m", &cfg.SyncTimeout},
	}
	for _, d := range durations {
		v, err := durationEnv(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}
	if cfg.RequestDelayMax < cfg.RequestDelayMin {
		return nil, fmt.Errorf("REQUEST_DELAY_MAX (%s) must not be below REQUEST_DELAY_MIN (%s)", cfg.RequestDelayMax, cfg.RequestDelayMin)
	}
	if cfg.ThrottleWaitMax < cfg.ThrottleWaitMin {
		return nil, fmt.Errorf("THROTTLE_WAIT_MAX (%s) must not be below THROTTLE_WAIT_MIN (%s)", cfg.ThrottleWaitMax, cfg.ThrottleWaitMin)
	}

	// The delay knobs are plain milliseconds.
	categoryDelayMs, err := intEnv("CATEGORY_DELAY_MS", 0)
	if err != nil {
		return nil, err
	}
	productDelayMs, err := intEnv("PRODUCT_DELAY_MS", 0)
	if err != nil {
		return nil, err
	}
	if categoryDelayMs < 0 || productDelayMs < 0 {
		return nil, fmt.Errorf("CATEGORY_DELAY_MS and PRODUCT_DELAY_MS must not be negative")
	}
	cfg.CategoryDelay = time.Duration(categoryDelayMs) * time.Millisecond
	cfg.ProductDelay = time.Duration(productDelayMs) * time.Millisecond

	chance := 0.1
	if v := os.Getenv("USER_AGENT_ROTATE_CHANCE"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, fmt.Errorf("invalid USER_AGENT_ROTATE_CHANCE %q: want a number between 0 and 1", v)
		}
		chance = parsed
	}
	cfg.UserAgentRotateChance = chance

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
