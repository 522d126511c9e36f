package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingWebhookSecret = errors.New("GITHUB_WEBHOOK_SECRET is required in production")

type Config struct {
	Env             string
	LogLevel        string
	GatewayPort     string
	DataServicePort string
	DatabaseURL     string

	FrontendURL    string
	GatewayBaseURL string
	DataServiceURL string

	CrossServiceSecret   string
	CrossServiceTokenTTL time.Duration

	Session    SessionConfig
	Onboarding OnboardingConfig
	GitHub     GitHubConfig
}

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
}

type OnboardingConfig struct {
	CookieName   string
	TTL          time.Duration
	WaitAttempts int
	WaitInitial  time.Duration
}

type GitHubConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	AppSlug       string
	WebhookSecret string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		GatewayPort:     getEnv("GATEWAY_PORT", "8080"),
		DataServicePort: getEnv("DATASERVICE_PORT", "8081"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:8080"),
		DataServiceURL: getEnv("DATASERVICE_URL", "http://localhost:8081"),

		CrossServiceSecret:   getEnvOrPanic("CROSS_SERVICE_SECRET"),
		CrossServiceTokenTTL: getDuration("CROSS_SERVICE_TOKEN_TTL", 15*time.Minute),

		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "shipyard_session"),
			TTL:        getDuration("SESSION_TTL", 168*time.Hour),
		},
		Onboarding: OnboardingConfig{
			CookieName:   getEnv("ONBOARDING_COOKIE_NAME", "shipyard_onboarding"),
			TTL:          getDuration("ONBOARDING_TTL", 15*time.Minute),
			WaitAttempts: getInt("ONBOARDING_WAIT_ATTEMPTS", 5),
			WaitInitial:  getDuration("ONBOARDING_WAIT_INITIAL", 250*time.Millisecond),
		},
		GitHub: GitHubConfig{
			ClientID:      getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret:  getEnv("GITHUB_CLIENT_SECRET", ""),
			RedirectURL:   getEnv("GITHUB_REDIRECT_URL", ""),
			AppSlug:       getEnv("GITHUB_APP_SLUG", ""),
			WebhookSecret: getEnv("GITHUB_WEBHOOK_SECRET", ""),
		},
	}

	if cfg.GitHub.WebhookSecret == "" && cfg.IsProduction() {
		return nil, ErrMissingWebhookSecret
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Warnings lists non-fatal configuration problems for the caller to log
// once a logger exists.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.GitHub.WebhookSecret == "" {
		warnings = append(warnings, "GITHUB_WEBHOOK_SECRET is not set; all webhook deliveries will be rejected")
	}
	if c.GitHub.AppSlug == "" {
		warnings = append(warnings, "GITHUB_APP_SLUG is not set; new users cannot be sent to the app installation page")
	}
	return warnings
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
