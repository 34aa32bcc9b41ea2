package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketing-backend/internal/outbound"
)

const (
	WindowBackendMemory = "memory"
	WindowBackendRedis  = "redis"

	aiTimeoutMargin = 5 * time.Second
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	AdminEmail    string
	AdminPassword string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	OutboundMaxAttempts int
	OutboundBaseDelay   time.Duration
	OutboundMaxDelay    time.Duration
	OutboundTimeout     time.Duration
	AIRateLimit         int
	AIRateWindow        time.Duration
	EmailRateLimit      int
	EmailRateWindow     time.Duration
	RateWindowBackend   string
	RedisURL            string

	AIAPIURL string
	AIAPIKey string
	AIModel  string

	EmailAPIURL  string
	EmailAPIKey  string
	EmailFrom    string
	EmailAdminTo string
	// EmailReplyWait bounds how long a request waits for a best-effort email
	// before answering without it.
	EmailReplyWait time.Duration

	SiteName  string
	SiteURL   string
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:  getDuration("JWT_ACCESS_TTL", time.Hour),
		JWTRefreshTTL: getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),

		OutboundMaxAttempts: getInt("OUTBOUND_MAX_ATTEMPTS", 3),
		OutboundBaseDelay:   getDuration("OUTBOUND_BASE_DELAY", time.Second),
		OutboundMaxDelay:    getDuration("OUTBOUND_MAX_DELAY", 30*time.Second),
		OutboundTimeout:     getDuration("OUTBOUND_TIMEOUT", 30*time.Second),
		AIRateLimit:         getInt("AI_RATE_LIMIT", 60),
		AIRateWindow:        getDuration("AI_RATE_WINDOW", time.Minute),
		EmailRateLimit:      getInt("EMAIL_RATE_LIMIT", 100),
		EmailRateWindow:     getDuration("EMAIL_RATE_WINDOW", time.Minute),
		RateWindowBackend:   strings.ToLower(getEnv("RATE_WINDOW_BACKEND", WindowBackendMemory)),
		RedisURL:            strings.TrimSpace(os.Getenv("REDIS_URL")),

		AIAPIURL: getEnv("AI_API_URL", "https://api.openai.com/v1"),
		AIAPIKey: strings.TrimSpace(os.Getenv("AI_API_KEY")),
		AIModel:  getEnv("AI_MODEL", "gpt-4o-mini"),

		EmailAPIURL:  getEnv("EMAIL_API_URL", "https://api.resend.com"),
		EmailAPIKey:  strings.TrimSpace(os.Getenv("EMAIL_API_KEY")),
		EmailFrom:    getEnv("EMAIL_FROM", "noreply@example.com"),
		EmailAdminTo: strings.TrimSpace(os.Getenv("EMAIL_ADMIN_TO")),

		EmailReplyWait: getDuration("EMAIL_REPLY_WAIT", 5*time.Second),

		SiteName:  getEnv("SITE_NAME", "Marketing Site"),
		SiteURL:   getEnv("SITE_URL", "http://localhost:3000"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.JWTAccessTTL >= c.JWTRefreshTTL {
		return fmt.Errorf("JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}

	if c.OutboundMaxAttempts < 1 {
		return fmt.Errorf("OUTBOUND_MAX_ATTEMPTS must be at least 1")
	}

	if c.OutboundBaseDelay <= 0 || c.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_BASE_DELAY and OUTBOUND_TIMEOUT must be positive")
	}

	if c.AIRateLimit < 1 || c.EmailRateLimit < 1 {
		return fmt.Errorf("AI_RATE_LIMIT and EMAIL_RATE_LIMIT must be at least 1")
	}

	if c.AIRateWindow <= 0 || c.EmailRateWindow <= 0 {
		return fmt.Errorf("AI_RATE_WINDOW and EMAIL_RATE_WINDOW must be positive")
	}

	switch c.RateWindowBackend {
	case WindowBackendMemory:
	case WindowBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_WINDOW_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_WINDOW_BACKEND must be %q or %q", WindowBackendMemory, WindowBackendRedis)
	}

	if c.EmailReplyWait <= 0 || c.EmailReplyWait >= c.RequestTimeout {
		return fmt.Errorf("EMAIL_REPLY_WAIT must be positive and shorter than REQUEST_TIMEOUT")
	}

	if c.ServerWriteTimeout <= c.AIRouteTimeout() {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed the AI route timeout (%s) derived from the OUTBOUND_* settings", c.ServerWriteTimeout, c.AIRouteTimeout())
	}

	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

func (c *Config) OutboundPolicy() outbound.Policy {
	return outbound.Policy{
		MaxAttempts: c.OutboundMaxAttempts,
		BaseDelay:   c.OutboundBaseDelay,
		MaxDelay:    c.OutboundMaxDelay,
		Timeout:     c.OutboundTimeout,
	}
}

// AIRouteTimeout covers a generation request that spends the executor's whole
// retry budget.
func (c *Config) AIRouteTimeout() time.Duration {
	return c.OutboundPolicy().WorstCaseLatency() + aiTimeoutMargin
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
