package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ad_kill_switch/internal/domain/decision"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	MetaAccessToken string
	MetaAdAccountID string
	MetaAPIVersion  string

	DatabaseURL string

	SlackWebhookURL string
	TelegramToken   string
	TelegramChatID  int64

	LogLevel    string
	Environment string

	MonitorInterval     time.Duration
	MonitorWorkers      int
	CycleTimeout        time.Duration
	HTTPTimeout         time.Duration
	CronSpecDailyReport string

	Thresholds decision.Thresholds
	ScaleRate  float64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing
	// .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.MetaAccessToken = os.Getenv("META_ACCESS_TOKEN")
	if cfg.MetaAccessToken == "" {
		return nil, fmt.Errorf("META_ACCESS_TOKEN is not set")
	}

	cfg.MetaAdAccountID = os.Getenv("META_AD_ACCOUNT_ID")
	if cfg.MetaAdAccountID == "" {
		return nil, fmt.Errorf("META_AD_ACCOUNT_ID is not set")
	}

	cfg.MetaAPIVersion = os.Getenv("META_API_VERSION")
	if cfg.MetaAPIVersion == "" {
		cfg.MetaAPIVersion = "v21.0"
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	// Notification sinks are optional; with neither configured the monitor
	// runs silently (log lines only).
	cfg.SlackWebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = chatID
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is set but TELEGRAM_CHAT_ID is not")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	var err error
	intervalSeconds, err := envInt64("MONITOR_INTERVAL_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(intervalSeconds) * time.Second

	workers, err := envInt64("MONITOR_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("MONITOR_WORKERS must be at least 1")
	}
	cfg.MonitorWorkers = int(workers)

	cycleTimeoutSeconds, err := envInt64("CYCLE_TIMEOUT_SECONDS", 1200)
	if err != nil {
		return nil, err
	}
	cfg.CycleTimeout = time.Duration(cycleTimeoutSeconds) * time.Second

	httpTimeoutSeconds, err := envInt64("HTTP_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = time.Duration(httpTimeoutSeconds) * time.Second

	cfg.CronSpecDailyReport = os.Getenv("CRON_SPEC_DAILY_REPORT")
	if cfg.CronSpecDailyReport == "" {
		cfg.CronSpecDailyReport = "0 9 * * *" // 09:00 daily
	}

	if cfg.Thresholds, err = loadThresholds(); err != nil {
		return nil, err
	}

	if cfg.ScaleRate, err = envFloat("WINNER_BUDGET_SCALE_RATE", 1.5); err != nil {
		return nil, err
	}
	if cfg.ScaleRate <= 1.0 {
		return nil, fmt.Errorf("WINNER_BUDGET_SCALE_RATE must be greater than 1.0")
	}

	return cfg, nil
}

// loadThresholds overlays env overrides on the stock tier thresholds. The
// tier order itself is fixed in the decision engine.
func loadThresholds() (decision.Thresholds, error) {
	th := decision.Default()
	var err error

	if th.MinImpressionsForClickCheck, err = envInt64("KILL_MIN_IMPRESSIONS", th.MinImpressionsForClickCheck); err != nil {
		return th, err
	}
	if th.CTRCheckImpressions, err = envInt64("KILL_CTR_CHECK_IMPRESSIONS", th.CTRCheckImpressions); err != nil {
		return th, err
	}
	if th.MinCTRPercent, err = envFloat("KILL_MIN_CTR_PERCENT", th.MinCTRPercent); err != nil {
		return th, err
	}
	if th.CPCCheckSpend, err = envFloat("KILL_CPC_CHECK_SPEND", th.CPCCheckSpend); err != nil {
		return th, err
	}
	if th.MaxCPC, err = envFloat("KILL_MAX_CPC", th.MaxCPC); err != nil {
		return th, err
	}
	if th.ROASCheckSpend, err = envFloat("KILL_ROAS_CHECK_SPEND", th.ROASCheckSpend); err != nil {
		return th, err
	}
	if th.MinROAS, err = envFloat("KILL_MIN_ROAS", th.MinROAS); err != nil {
		return th, err
	}
	if th.WinnerMinCTR, err = envFloat("WINNER_MIN_CTR", th.WinnerMinCTR); err != nil {
		return th, err
	}
	if th.WinnerMinROAS, err = envFloat("WINNER_MIN_ROAS", th.WinnerMinROAS); err != nil {
		return th, err
	}
	return th, nil
}

func envInt64(name string, def int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func envFloat(name string, def float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
