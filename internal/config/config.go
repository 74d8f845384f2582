package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	TwoFactor TwoFactorConfig
	Email     EmailConfig
	OAuth     OAuthConfig
	Sentry    SentryConfig
	Venue     VenueConfig
	Captcha   CaptchaConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	FrontendOrigin string
}

type AuthConfig struct {
	AccessSecret     string
	RefreshSecret    string
	EmailTokenSecret string

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	EmailVerifyExpiry  time.Duration
	PasswordResetExpiry time.Duration

	// Lockout policy
	MaxFailedAttempts int           // failures before a temporary lock
	LockDuration      time.Duration // length of a temporary lock
	MaxTemporaryLocks int           // temporary locks before a permanent block

	CleanupInterval time.Duration
}

type TwoFactorConfig struct {
	CodeExpiry     time.Duration
	ResendCooldown time.Duration
	MaxResends     int
	RedisAddr      string // empty = process-local in-memory store
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

type SentryConfig struct {
	DSN string
}

// CaptchaConfig holds the bot-challenge secret. Empty disables the check.
type CaptchaConfig struct {
	RecaptchaSecret string
}

// VenueConfig describes the operating hours used by the availability grid.
// Hours are in the venue's local day, closeHour exclusive.
type VenueConfig struct {
	OpenHour  int
	CloseHour int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	accessSecret := getEnv("JWT_ACCESS_SECRET", "")
	refreshSecret := getEnv("JWT_REFRESH_SECRET", "")
	emailSecret := getEnv("EMAIL_TOKEN_SECRET", "")
	if accessSecret == "" || refreshSecret == "" || emailSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET, JWT_REFRESH_SECRET and EMAIL_TOKEN_SECRET are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bowling"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		},
		Auth: AuthConfig{
			AccessSecret:        accessSecret,
			RefreshSecret:       refreshSecret,
			EmailTokenSecret:    emailSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:  getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			EmailVerifyExpiry:   getEnvAsDuration("EMAIL_VERIFY_EXPIRY", 24*time.Hour),
			PasswordResetExpiry: getEnvAsDuration("PASSWORD_RESET_EXPIRY", 15*time.Minute),
			MaxFailedAttempts:   getEnvAsInt("MAX_FAILED_ATTEMPTS", 4),
			LockDuration:        getEnvAsDuration("LOCK_DURATION", 5*time.Minute),
			MaxTemporaryLocks:   getEnvAsInt("MAX_TEMPORARY_LOCKS", 3),
			CleanupInterval:     getEnvAsDuration("TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
		},
		TwoFactor: TwoFactorConfig{
			CodeExpiry:     getEnvAsDuration("TWOFA_CODE_EXPIRY", 5*time.Minute),
			ResendCooldown: getEnvAsDuration("TWOFA_RESEND_COOLDOWN", 60*time.Second),
			MaxResends:     getEnvAsInt("TWOFA_MAX_RESENDS", 5),
			RedisAddr:      getEnv("TWOFA_REDIS_ADDR", ""),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@pittsbowling.com"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", ""),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Venue: VenueConfig{
			OpenHour:  getEnvAsInt("VENUE_OPEN_HOUR", 10),
			CloseHour: getEnvAsInt("VENUE_CLOSE_HOUR", 22),
		},
		Captcha: CaptchaConfig{
			RecaptchaSecret: getEnv("RECAPTCHA_SECRET", ""),
		},
	}

	if cfg.Venue.OpenHour < 0 || cfg.Venue.CloseHour > 24 || cfg.Venue.OpenHour >= cfg.Venue.CloseHour {
		return nil, fmt.Errorf("VENUE_OPEN_HOUR..VENUE_CLOSE_HOUR must be a valid window within 0..24")
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	for _, secret := range []string{accessSecret, refreshSecret, emailSecret} {
		if err := validateSecret(secret, env); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validateSecret enforces minimum security standards for signing secrets
func validateSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("signing secrets must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("signing secret cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
