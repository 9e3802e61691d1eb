package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Pagination  PaginationConfig
	Email       EmailConfig
	Redis       RedisConfig
	Google      GoogleConfig
	PayPal      PayPalConfig
	Frontend    FrontendConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	CORSOrigins  []string
	StaticDir    string
	UploadDir    string

	// TrustedProxies may set X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []string
}

type DatabaseConfig struct {
	URI  string
	Name string
}

type JWTConfig struct {
	SecretKey string
	TTL       int // in hours
}

// PaginationConfig holds the customer and admin page sizes.
type PaginationConfig struct {
	Limit      int
	AdminLimit int
}

type EmailConfig struct {
	Provider       string
	SendgridAPIKey string
	PostmarkToken  string
	Sender         string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type GoogleConfig struct {
	ClientID string
}

type PayPalConfig struct {
	ClientID string
}

type FrontendConfig struct {
	BaseURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", getEnv("NODE_ENV", "development")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			StaticDir:      getEnv("STATIC_DIR", "frontend/build"),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			URI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Name: getEnv("MONGO_DB", "ecommerce"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", defaultJWTSecret),
			TTL:       getEnvAsInt("JWT_TTL_HOURS", 720), // 30 days
		},
		Pagination: PaginationConfig{
			Limit:      getEnvAsInt("PAGINATION_LIMIT", 8),
			AdminLimit: getEnvAsInt("PAGINATION_LIMIT_ADMIN", 10),
		},
		Email: EmailConfig{
			Provider:       getEnv("MAIL_PROVIDER", "log"),
			SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			PostmarkToken:  getEnv("POSTMARK_API_TOKEN", ""),
			Sender:         getEnv("EMAIL_SENDER", "no-reply@sastobazaar.com"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Google: GoogleConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		PayPal: PayPalConfig{
			ClientID: getEnv("PAYPAL_CLIENT_ID", ""),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.IsProduction() && c.JWT.SecretKey == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive, got %d", c.JWT.TTL)
	}
	if c.Pagination.Limit <= 0 || c.Pagination.AdminLimit <= 0 {
		return fmt.Errorf("pagination limits must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JWT.TTL) * time.Hour
}

// MailAPIKey returns the credential for the configured mail provider.
func (c *Config) MailAPIKey() string {
	switch strings.ToLower(c.Email.Provider) {
	case "sendgrid":
		return c.Email.SendgridAPIKey
	case "postmark":
		return c.Email.PostmarkToken
	}
	return ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
