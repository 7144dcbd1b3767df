package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Meta Graph API
	WhatsAppAPIURL     string
	WhatsAppAPIVersion string
	WhatsAppAppID      string
	WhatsAppAppSecret  string

	// Fallback credentials shared across accounts of the same business.
	// phone_number_id is never configured globally; every phone number
	// carries its own id on the account record.
	WhatsAppAPIToken   string
	WhatsAppBusinessID string

	// Webhook verification
	WebhookVerifyToken string
	WebhookSecret      string

	// OAuth flow
	OAuthRedirectURI string
	OAuthSessionTTL  time.Duration

	// Default send options
	PreviewURL bool

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppAPIURL:     getEnv("WHATSAPP_API_URL", ""),
		WhatsAppAPIVersion: getEnv("WHATSAPP_API_VERSION", "v21.0"),
		WhatsAppAppID:      getEnv("WHATSAPP_APP_ID", ""),
		WhatsAppAppSecret:  getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAPIToken:   getEnv("WHATSAPP_API_TOKEN", ""),
		WhatsAppBusinessID: getEnv("WHATSAPP_BUSINESS_ID", ""),

		WebhookVerifyToken: getEnv("WHATSAPP_WEBHOOK_VERIFY_TOKEN", ""),
		WebhookSecret:      getEnv("WHATSAPP_WEBHOOK_SECRET", ""),

		OAuthRedirectURI: getEnv("WHATSAPP_OAUTH_REDIRECT_URI", ""),
		OAuthSessionTTL:  getEnvAsDuration("WHATSAPP_OAUTH_SESSION_TTL", 15*time.Minute),

		PreviewURL: getEnvAsBool("WHATSAPP_PREVIEW_URL", true),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
