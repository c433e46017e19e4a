// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Options struct {
	// LoadDotEnv reads a .env file from the working directory before the
	// environment is consulted. A missing file is not an error.
	LoadDotEnv bool
}

type Config struct {
	Port           string
	AppEnv         string
	AppName        string
	SentryDSN      string
	MetricsEnabled bool
	// Release tags Sentry events. Empty lets the SDK detect it from the
	// deploy environment.
	Release string
	// TrustProxyHeaders makes X-Forwarded-For the client address. Enable it
	// only when a proxy that overwrites the header fronts every request.
	TrustProxyHeaders bool

	DB          DB
	Auth        Auth
	Maintenance Maintenance
	Storage     Storage
}

type DB struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RunMigrations   bool
}

type Auth struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	MaxAttempts     int
	LockDuration    time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	AdminUsername   string
	AdminPassword   string
	AdminCityID     int64
}

type Maintenance struct {
	CronSecret            string
	LoginAttemptRetention time.Duration
	BatchSize             int
}

// Storage configures the S3 compatible bucket behind file downloads.
// An empty Bucket disables file storage.
type Storage struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (s Storage) Enabled() bool {
	return s.Bucket != ""
}

func Load(options Options) (Config, error) {
	if options.LoadDotEnv {
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

	adminCityID, err := envInt64OrDefault("ADMIN_CITY_ID", -1)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:              envOrDefault("PORT", "8080"),
		AppEnv:            envOrDefault("APP_ENV", "development"),
		AppName:           envOrDefault("APP_NAME", "cityinfo"),
		Release:           strings.TrimSpace(os.Getenv("APP_RELEASE")),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		MetricsEnabled:    EnvBoolOrDefault("METRICS_ENABLED", true),
		TrustProxyHeaders: EnvBoolOrDefault("TRUST_PROXY_HEADERS", false),
		DB: DB{
			URL:             databaseURL,
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
			RunMigrations:   EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		},
		Auth: Auth{
			JWTSecret:       jwtSecret,
			JWTIssuer:       envOrDefault("JWT_ISSUER", "cityinfo"),
			JWTAudience:     envOrDefault("JWT_AUDIENCE", "cityinfoapi"),
			AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 60),
			MaxAttempts:     envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
			LockDuration:    envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
			RateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
			RateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
			AdminUsername:   os.Getenv("ADMIN_USERNAME"),
			AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
			AdminCityID:     adminCityID,
		},
		Maintenance: Maintenance{
			CronSecret:            strings.TrimSpace(os.Getenv("CRON_SECRET")),
			LoginAttemptRetention: envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
			BatchSize:             envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
		},
		Storage: Storage{
			Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:    envOrDefault("S3_REGION", "us-east-1"),
			Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
	}, nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
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

// envInt64OrDefault accepts any integer, negative included, and reports
// garbage instead of silently falling back.
func envInt64OrDefault(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return parsed, nil
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
