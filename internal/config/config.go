package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries settings for both sides of the repo: the client facade
// (ledgerctl) and the stub backend it talks to in development.
type Config struct {
	// Client.
	APIBaseURL         string
	HTTPTimeout        time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	SessionTimeout     time.Duration
	SessionWarningLead time.Duration
	StateDBPath        string
	PermissionsFile    string
	UserAgent          string

	// Stub server.
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	JWTSecret          string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	CORSOrigins        []string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	UsersFile          string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:8080"),
		HTTPTimeout:        getDuration("HTTP_TIMEOUT", 30*time.Second),
		RetryMaxAttempts:   getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:     getDuration("RETRY_BASE_DELAY", 250*time.Millisecond),
		RetryMaxDelay:      getDuration("RETRY_MAX_DELAY", 4*time.Second),
		SessionTimeout:     getDuration("SESSION_TIMEOUT", 30*time.Minute),
		SessionWarningLead: getDuration("SESSION_WARNING_LEAD", 5*time.Minute),
		StateDBPath:        getEnv("STATE_DB_PATH", "./state/client.db"),
		PermissionsFile:    strings.TrimSpace(os.Getenv("PERMISSIONS_FILE")),
		UserAgent:          getEnv("USER_AGENT", "ledgerctl/1.0"),

		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		UsersFile:          getEnv("USERS_FILE", "./users.json"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS cannot be negative")
	}

	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}

	if c.SessionWarningLead <= 0 || c.SessionWarningLead >= c.SessionTimeout {
		return fmt.Errorf("SESSION_WARNING_LEAD must be positive and shorter than SESSION_TIMEOUT")
	}

	if strings.TrimSpace(c.StateDBPath) == "" {
		return fmt.Errorf("STATE_DB_PATH cannot be empty")
	}

	return nil
}

// ValidateServer covers the fields only the stub server needs, so ledgerctl
// can run without a JWT secret.
func (c *Config) ValidateServer() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT token TTLs must be positive")
	}

	return nil
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
