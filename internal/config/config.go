package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads, resolved once at startup and
// passed into constructors. Nothing below reads the environment after Load.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	DBMaxConns  int32

	JWTSecret       string
	JWTAlgorithm    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	RateLimitRequests    int
	RateLimitWindow      time.Duration
	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	SentryDSN string

	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string

	CronSecret          string
	SessionRetention    time.Duration
	CommandLogRetention time.Duration
	CleanupBatchSize    int
}

// Load reads the configuration from the environment. When loadDotEnv is set
// a .env file in the working directory is merged in first (missing file is
// not an error).
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv: envOrDefault("APP_ENV", "development"),
		Port:   envOrDefault("PORT", "8000"),

		DatabaseURL: databaseURL,
		DBMaxConns:  int32(envIntOrDefault("DB_MAX_CONNS", 10)),

		JWTSecret:       jwtSecret,
		JWTAlgorithm:    envOrDefault("JWT_ALGORITHM", "HS256"),
		AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 30),
		RefreshTokenTTL: envDaysOrDefault("REFRESH_TOKEN_TTL_DAYS", 7),

		LockoutThreshold: envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LockoutDuration:  envMinutesOrDefault("LOGIN_LOCK_MINUTES", 30),

		RateLimitRequests:    envIntOrDefault("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:      envSecondsOrDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		SentryDSN: os.Getenv("SENTRY_DSN"),

		MQTTBrokerURL: strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:  envOrDefault("MQTT_CLIENT_ID", "voicecontrol-server"),
		MQTTUsername:  os.Getenv("MQTT_USERNAME"),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),

		CronSecret:          os.Getenv("CRON_SECRET"),
		SessionRetention:    envDaysOrDefault("SESSION_RETENTION_DAYS", 14),
		CommandLogRetention: envDaysOrDefault("COMMAND_LOG_RETENTION_DAYS", 30),
		CleanupBatchSize:    envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	}, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
