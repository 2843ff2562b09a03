// Package config loads service configuration from environment variables
// with development-safe defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the server binary needs to wire the pipeline.
type Config struct {
	ListenAddr string
	LogLevel   string

	// Persistence
	DatabaseURL string
	DBSchema    string
	RedisURL    string

	// Payment provider
	ProviderAPIKey       string
	ProviderAPIBase      string
	WebhookSigningSecret string

	// Object storage
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Bucket    string

	// Pipeline tuning
	DownloadURLTTL         time.Duration
	CheckoutReservationTTL time.Duration
	Currency               string

	// Token verification
	AuthIssuer   string
	AuthAudience string
	AuthJWKSURL  string
	AuthHSSecret string // HS256 shared secret, dev only

	// Public frontend base URL for provider redirect targets
	PublicBaseURL string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		DatabaseURL: getenv("DATABASE_URL", ""),
		DBSchema:    getenv("DB_SCHEMA", "purchases"),
		RedisURL:    getenv("REDIS_URL", ""),

		ProviderAPIKey:       getenv("PROVIDER_API_KEY", ""),
		ProviderAPIBase:      getenv("PROVIDER_API_BASE", "https://api.payments.example.com"),
		WebhookSigningSecret: getenv("WEBHOOK_SIGNING_SECRET", ""),

		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3AccessKey: getenv("S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("S3_SECRET_KEY", ""),
		S3Region:    getenv("S3_REGION", "us-east-1"),
		S3UseSSL:    getenvBool("S3_USE_SSL", true),
		S3Bucket:    getenv("S3_BUCKET", "items-full"),

		DownloadURLTTL:         time.Duration(getenvInt("DOWNLOAD_URL_TTL_SECONDS", 3600)) * time.Second,
		CheckoutReservationTTL: time.Duration(getenvInt("CHECKOUT_RESERVATION_TTL_MINUTES", 30)) * time.Minute,
		Currency:               getenv("CURRENCY", "usd"),

		AuthIssuer:   getenv("AUTH_ISSUER", ""),
		AuthAudience: getenv("AUTH_AUDIENCE", ""),
		AuthJWKSURL:  getenv("AUTH_JWKS_URL", ""),
		AuthHSSecret: getenv("AUTH_HS_SECRET", ""),

		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:3000"),
	}
}
