package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/secrets"
)

// ReportsBackend selects where exported reports are written
type ReportsBackend string

const (
	ReportsNone ReportsBackend = "none"
	ReportsFile ReportsBackend = "file"
	ReportsS3   ReportsBackend = "s3"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string
	LogLevel    string
	LogFormat   string // json, text or auto

	// Database (empty DSN disables persistence)
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Analysis
	ScoringProfilePath string
	DefaultLookback    time.Duration
	ScheduledSlugs     []string
	AnalysisWorkers    int

	// Reports
	ReportsBackend   ReportsBackend
	ReportsFileRoot  string
	ReportsIndexKey  string
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3Prefix         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool

	// Locks (empty address keeps locks in-process)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Alerts
	AlertMode          string // comma-separated: log, discord, smtp
	AlertMinLabel      model.Label
	AlertCooldownMins  int
	AlertRPS           float64
	DiscordWebhookURLs []string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string

	// Metrics textfile written after each batch
	MetricsTextfile string
}

// Load reads configuration from the environment, after applying any .env
// file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	lookback, err := ParseLookback(getEnv("DEFAULT_LOOKBACK", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LOOKBACK: %w", err)
	}

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "auto"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		ScoringProfilePath:  getEnv("SCORING_PROFILE_PATH", ""),
		DefaultLookback:     lookback,
		ScheduledSlugs:      parseCSV(getEnv("SCHEDULED_SLUGS", "")),
		AnalysisWorkers:     getEnvInt("ANALYSIS_WORKERS", 4),
		ReportsBackend:      ReportsBackend(strings.ToLower(getEnv("REPORTS_BACKEND", "file"))),
		ReportsFileRoot:     getEnv("REPORTS_FILE_ROOT", "reports"),
		ReportsIndexKey:     getEnv("REPORTS_INDEX_KEY", "index.json"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3Prefix:            getEnv("S3_PREFIX", ""),
		S3ForcePathStyle:    getEnvBool("S3_FORCE_PATH_STYLE", false),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		LockTTL:             time.Duration(getEnvInt("LOCK_TTL_SEC", 300)) * time.Second,
		AlertMode:           getEnv("ALERT_MODE", "log"),
		AlertMinLabel:       model.Label(strings.ToLower(getEnv("ALERT_MIN_LABEL", string(model.LabelSuspicious)))),
		AlertCooldownMins:   getEnvInt("ALERT_COOLDOWN_MINS", 60),
		AlertRPS:            getEnvFloat("ALERT_RPS", 1.0),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPFrom:            getEnv("SMTP_FROM", "polywatch@example.com"),
		SMTPTo:              parseCSV(getEnv("SMTP_TO", "")),
		MetricsTextfile:     getEnv("METRICS_TEXTFILE", ""),
	}

	secretValues := []struct {
		key  string
		dest *string
	}{
		{"DATABASE_DSN", &cfg.DatabaseDSN},
		{"S3_ACCESS_KEY", &cfg.S3AccessKey},
		{"S3_SECRET_KEY", &cfg.S3SecretKey},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"SMTP_PASSWORD", &cfg.SMTPPassword},
	}
	for _, s := range secretValues {
		value, err := secrets.Get(s.key, "")
		if err != nil {
			return nil, err
		}
		*s.dest = value
	}

	// Settings that become mandatory once their backend is selected
	bucket := secrets.Get
	if cfg.ReportsBackend == ReportsS3 {
		bucket = required
	}
	if cfg.S3Bucket, err = bucket("S3_BUCKET", ""); err != nil {
		return nil, fmt.Errorf("load S3_BUCKET: %w", err)
	}

	webhook := secrets.Get
	if slices.Contains(cfg.AlertModes(), "discord") {
		webhook = required
	}
	webhooks, err := webhook("DISCORD_WEBHOOK_URLS", "")
	if err != nil {
		return nil, fmt.Errorf("load DISCORD_WEBHOOK_URLS: %w", err)
	}
	cfg.DiscordWebhookURLs = parseCSV(webhooks)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func required(key, _ string) (string, error) {
	return secrets.Required(key)
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.AnalysisWorkers < 1 {
		return fmt.Errorf("ANALYSIS_WORKERS must be at least 1, got %d", c.AnalysisWorkers)
	}

	switch c.LogFormat {
	case "json", "text", "auto":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json, text, or auto)", c.LogFormat)
	}

	switch c.ReportsBackend {
	case ReportsNone:
	case ReportsFile:
		if c.ReportsFileRoot == "" {
			return fmt.Errorf("REPORTS_FILE_ROOT is required when REPORTS_BACKEND is file")
		}
	case ReportsS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when REPORTS_BACKEND is s3")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
	default:
		return fmt.Errorf("invalid REPORTS_BACKEND: %s (must be none, file, or s3)", c.ReportsBackend)
	}

	if c.AlertMinLabel.Rank() < 0 {
		return fmt.Errorf("invalid ALERT_MIN_LABEL: %s (must be normal, watch, or suspicious)", c.AlertMinLabel)
	}
	if c.AlertRPS <= 0 {
		return fmt.Errorf("ALERT_RPS must be positive, got %.2f", c.AlertRPS)
	}

	hasDiscord := false
	hasSMTP := false
	for _, mode := range c.AlertModes() {
		switch mode {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && len(c.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
	}
	if hasSMTP && (c.SMTPHost == "" || len(c.SMTPTo) == 0) {
		return fmt.Errorf("SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE")
	}

	return nil
}

// AlertModes returns the configured alert channels
func (c *Config) AlertModes() []string {
	return parseCSV(c.AlertMode)
}

// PersistenceEnabled reports whether a database is configured
func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseDSN != ""
}

var lookbackPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseLookback parses windows such as 90s, 15m, 2h or 1d
func ParseLookback(value string) (time.Duration, error) {
	match := lookbackPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0, fmt.Errorf("lookback must be like 15m, 2h, 1d: %q", value)
	}
	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lookback %q: %w", value, err)
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[match[2]]
	return time.Duration(amount) * unit, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
