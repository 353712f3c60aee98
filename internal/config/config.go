package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	GeminiAPIKey string
	GeminiModel  string

	AuthJWTSecret string

	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
	CheckoutOrigin      string

	OTLPEndpoint string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "themeleon"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		GeminiAPIKey: strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),

		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),

		StripeSecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
		StripePriceID:       strings.TrimSpace(getenv("STRIPE_PRICE_ID", "")),
		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		CheckoutOrigin:      getenv("CHECKOUT_ORIGIN", "https://theme-leon.com"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
		RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "themeleon"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
	}
}

// ErrMisconfigured is surfaced to callers when a required secret is absent.
// It deliberately carries no detail about which one.
var ErrMisconfigured = errors.New("service misconfigured")

var (
	ErrMissingGeminiKey     = errors.New("GEMINI_API_KEY is required")
	ErrMissingJWTSecret     = errors.New("AUTH_JWT_SECRET is required")
	ErrMissingStripeKey     = errors.New("STRIPE_SECRET_KEY is required")
	ErrMissingStripePrice   = errors.New("STRIPE_PRICE_ID is required")
	ErrMissingWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
)

// Validate reports missing required secrets. The server refuses requests that
// depend on an absent secret rather than failing at startup, so a partially
// configured instance can still serve the endpoints it has secrets for.
func (c Config) Validate() []error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, ErrMissingGeminiKey)
	}
	if c.AuthJWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, ErrMissingStripeKey)
	}
	if c.StripePriceID == "" {
		errs = append(errs, ErrMissingStripePrice)
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingWebhookSecret)
	}
	return errs
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
