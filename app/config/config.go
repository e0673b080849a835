// Package config loads service configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server      ServerConfig
	DB          PostgresConfig
	Quota       QuotaConfig
	RateLimit   RateLimitConfig
	Abuse       AbuseConfig
	Fingerprint FingerprintConfig
	Classifier  ClassifierConfig
	Stripe      StripeConfig
}

type ServerConfig struct {
	Port string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Name     string
}

type QuotaConfig struct {
	// FreeWeeklyLimit is the number of free checks per Monday-anchored week.
	FreeWeeklyLimit int
	// Disabled records usage without enforcing any limit.
	Disabled bool
}

type RateLimitConfig struct {
	// ChecksPerHour caps check requests per identifier within a rolling hour.
	ChecksPerHour int
}

type AbuseConfig struct {
	MaxWeeklyPerIP int
	MaxWeeklyPerUA int
	MaxAgentsPerIP int
}

type FingerprintConfig struct {
	IPSalt string
	UASalt string
}

type ClassifierConfig struct {
	OpenAIKey   string
	VisionModel string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			Name:     getEnv("POSTGRES_DB", "fakechecker"),
		},
		Quota: QuotaConfig{
			FreeWeeklyLimit: getEnvInt("FREE_WEEKLY_LIMIT", 3),
			Disabled:        getEnvBool("FREEMIUM_DISABLED", false),
		},
		RateLimit: RateLimitConfig{
			ChecksPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 100),
		},
		Abuse: AbuseConfig{
			MaxWeeklyPerIP: getEnvInt("ABUSE_MAX_WEEKLY_PER_IP", 50),
			MaxWeeklyPerUA: getEnvInt("ABUSE_MAX_WEEKLY_PER_UA", 40),
			MaxAgentsPerIP: getEnvInt("ABUSE_MAX_AGENTS_PER_IP", 10),
		},
		Fingerprint: FingerprintConfig{
			IPSalt: getEnv("IP_HASH_SALT", "default-salt-change-in-production"),
			UASalt: getEnv("UA_HASH_SALT", "default-salt-change-in-production"),
		},
		Classifier: ClassifierConfig{
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			VisionModel: getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}
