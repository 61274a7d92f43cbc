package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	RedisPrefix        string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	AccessCookieName   string
	CookieSecure       bool
	CookieSameSite     http.SameSite

	ClientUsername     string
	ClientName         string
	ClientPasswordHash string
	AdminUsername      string
	AdminPasswordHash  string

	CurrencyCode string
	VATRateBPS   int

	LockTTL           time.Duration
	IdempotencyTTL    time.Duration
	CallsCacheTTL     time.Duration
	LoginRateMax      int
	LoginRateWindow   time.Duration
	BodyLimitBytes    int64
	ReminderWindow    int
	ReminderCron      string
	ReminderDedupTTL  time.Duration
	WorkerConcurrency int

	LogFormat string
	LogLevel  string

	OTelEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64
	MetricsEnabled  bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		RedisPrefix:        valueOrDefault(k.String("REDIS_PREFIX"), "vo:"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "1h"),
		AccessCookieName:   valueOrDefault(k.String("ACCESS_COOKIE_NAME"), "vo_access"),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),

		ClientUsername:     valueOrDefault(k.String("DEMO_USERNAME"), "client"),
		ClientName:         valueOrDefault(k.String("DEMO_NAME"), "Demo Client"),
		ClientPasswordHash: strings.TrimSpace(k.String("DEMO_PASSWORD_HASH")),
		AdminUsername:      valueOrDefault(k.String("DEMO_ADMIN_USERNAME"), "admin"),
		AdminPasswordHash:  strings.TrimSpace(k.String("DEMO_ADMIN_PASSWORD_HASH")),

		CurrencyCode: valueOrDefault(k.String("CURRENCY_CODE"), "GBP"),
		VATRateBPS:   parseInt(k.String("VAT_RATE_BPS"), 2000),

		LockTTL:           parseDuration(k.String("LOCK_TTL"), "5s"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		CallsCacheTTL:     parseDuration(k.String("CALLS_CACHE_TTL"), "0s"),
		LoginRateMax:      parseInt(k.String("LOGIN_RATE_LIMIT_MAX"), 10),
		LoginRateWindow:   parseDuration(k.String("LOGIN_RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		ReminderWindow:    parseInt(k.String("REMINDER_WINDOW"), 7),
		ReminderCron:      strings.TrimSpace(k.String("REMINDER_CRON")),
		ReminderDedupTTL:  parseDuration(k.String("REMINDER_DEDUP_TTL"), "192h"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),

		LogFormat: valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),

		OTelEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelServiceName: valueOrDefault(k.String("OTEL_SERVICE_NAME"), "virtual-office-api"),
		OTelSampleRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),
		MetricsEnabled:  !strings.EqualFold(strings.TrimSpace(k.String("METRICS_ENABLED")), "false"),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.ClientPasswordHash == "" && cfg.AdminPasswordHash == "" {
		return nil, errors.New("DEMO_PASSWORD_HASH or DEMO_ADMIN_PASSWORD_HASH is required")
	}
	if cfg.VATRateBPS != 2000 {
		return nil, fmt.Errorf("VAT_RATE_BPS must be 2000, got %d", cfg.VATRateBPS)
	}
	if !strings.EqualFold(cfg.CurrencyCode, "GBP") {
		return nil, fmt.Errorf("CURRENCY_CODE must be GBP, got %s", cfg.CurrencyCode)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
