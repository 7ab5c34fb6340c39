package config

import (
	"errors"  // Validation errors
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // Splitting list values
	"time"    // Durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	DBDSN      string // Full DSN, overrides the parts above when set

	JWTSecret  string        // Secret used to sign session and anti-forgery tokens
	SessionTTL time.Duration // Session token lifetime
	CSRFTTL    time.Duration // Anti-forgery cookie lifetime

	RedisAddr string        // Redis server address, empty disables caching
	RedisPass string        // Redis password
	RedisDB   int           // Redis database number
	CacheTTL  time.Duration // Cache entry lifetime

	IsProd     bool   // Is production environment
	CORSOrigin string // Allowed browser origin

	AdminEmail    string // Bootstrap admin email, cannot be deleted
	AdminPassword string // Bootstrap admin password

	PayPalClientID     string // PayPal REST client id
	PayPalClientSecret string // PayPal REST client secret
	PayPalBaseURL      string // PayPal API base URL
	PayPalCurrency     string // Currency code for orders
	PayPalBrandName    string // Brand shown on the PayPal approval page
	PayPalLocale       string // Locale of the PayPal approval page
	PayPalReturnURL    string // Redirect after approval
	PayPalCancelURL    string // Redirect after cancellation

	CatalogBaseURL string        // Open Food Facts base URL
	HTTPTimeout    time.Duration // Timeout for outbound HTTP calls

	ReconcileInterval    time.Duration // Capture outbox polling interval
	ReconcileMaxAttempts int           // Attempts before an outbox row is given up

	SeedScanCodes []string // Scan codes fetched into the catalog by the migrate tool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "trinity"),
		DBDSN:      os.Getenv("DB_DSN"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		SessionTTL: getDuration("SESSION_TTL", time.Hour),
		CSRFTTL:    getDuration("CSRF_TTL", time.Hour),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   redisDB,
		CacheTTL:  getDuration("CACHE_TTL", 60*time.Second),

		IsProd:     os.Getenv("IS_PROD") == "true",
		CORSOrigin: getEnv("FRONTEND_URL", "http://localhost:5173"),

		AdminEmail:    strings.ToLower(getEnv("DEFAULT_ADMIN_EMAIL", "admin@gmail.com")),
		AdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", "testpassword"),

		PayPalClientID:     os.Getenv("CLIENT_ID"),
		PayPalClientSecret: os.Getenv("CLIENT_SECRET"),
		PayPalBaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalCurrency:     getEnv("PAYPAL_CURRENCY", "EUR"),
		PayPalBrandName:    getEnv("PAYPAL_BRAND_NAME", "Levrette"),
		PayPalLocale:       getEnv("PAYPAL_LOCALE", "fr-FR"),
		PayPalReturnURL:    getEnv("PAYPAL_RETURN_URL", "mobilescanner://paypal-success"),
		PayPalCancelURL:    getEnv("PAYPAL_CANCEL_URL", "mobilescanner://paypal-success"),

		CatalogBaseURL: getEnv("CATALOG_BASE_URL", "https://world.openfoodfacts.org"),
		HTTPTimeout:    getDuration("HTTP_TIMEOUT", 10*time.Second),

		ReconcileInterval:    getDuration("RECONCILE_INTERVAL", 30*time.Second),
		ReconcileMaxAttempts: getInt("RECONCILE_MAX_ATTEMPTS", 10),

		SeedScanCodes: splitList(os.Getenv("SEED_SCAN_CODES")),
	}
}

// Validate reports configuration that would make the server unusable
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

// DSN returns the MySQL data source name
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// splitList parses a comma separated list, dropping blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
