package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string
	// AppURL is the public base URL used in emailed links. When empty the
	// scheme and host of the incoming request are used instead.
	AppURL string
	// MetricsAPIKey guards /metrics. Empty leaves it open.
	MetricsAPIKey string
	// AllowAdminSignup lets public signup request the admin role.
	AllowAdminSignup bool

	// Database
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	MigrationsPath string

	// JWT
	JWTSecret        string
	JWTIssuer        string
	JWTExpirationDur time.Duration

	// Email
	EmailEnabled  bool
	EmailHost     string
	EmailPort     int
	EmailUsername string
	EmailPassword string
	EmailFrom     string
	EmailUseTLS   bool
	EmailTimeout  time.Duration
}

const devJWTSecret = "fallback-secret-key-for-dev-only"

// Load loads configuration from environment variables. It is meant to be
// called once at startup; the result is passed to constructors explicitly.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		Env:    getEnv("ENV", "development"),
		AppURL: getEnv("APP_URL", ""),

		MetricsAPIKey:    getEnv("METRICS_API_KEY", ""),
		AllowAdminSignup: getEnvBool("ALLOW_ADMIN_SIGNUP", false),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "natours"),
		DBPassword:     getEnv("DB_PASSWORD", "natours"),
		DBName:         getEnv("DB_NAME", "natours"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		JWTSecret: getEnv("JWT_SECRET", devJWTSecret),
		JWTIssuer: getEnv("JWT_ISSUER", "natours-api"),

		EmailEnabled:  getEnvBool("EMAIL_ENABLED", false),
		EmailHost:     getEnv("EMAIL_HOST", ""),
		EmailPort:     getEnvInt("EMAIL_PORT", 587),
		EmailUsername: getEnv("EMAIL_USERNAME", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "Natours <no-reply@natours.dev>"),
		EmailUseTLS:   getEnvBool("EMAIL_USE_TLS", false),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "2160h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil || expDur <= 0 {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 2160h\n", expStr)
		expDur = 90 * 24 * time.Hour
	}
	cfg.JWTExpirationDur = expDur

	timeoutStr := getEnv("EMAIL_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		log.Printf("Warning: invalid EMAIL_TIMEOUT value '%s', falling back to 10s\n", timeoutStr)
		timeout = 10 * time.Second
	}
	cfg.EmailTimeout = timeout

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	if len(c.JWTSecret) < 32 && c.IsProduction() {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, value, defaultValue)
		return defaultValue
	}
	return b
}
