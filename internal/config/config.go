package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	CORSOrigin   string        `mapstructure:"CORS_ORIGIN"`
	CookieSecure bool          `mapstructure:"COOKIE_SECURE"`
	TokenTTL     time.Duration `mapstructure:"TOKEN_TTL"`

	// Optional collaborators. Empty means disabled.
	RedisURL string `mapstructure:"REDIS_URL"`
	NATSURL  string `mapstructure:"NATS_URL"`

	EventQueueSize      int           `mapstructure:"EVENT_QUEUE_SIZE"`
	EventPublishTimeout time.Duration `mapstructure:"EVENT_PUBLISH_TIMEOUT"`

	BooksAPIURL     string        `mapstructure:"BOOKS_API_URL"`
	BooksAPIKey     string        `mapstructure:"BOOKS_API_KEY"`
	BooksAPITimeout time.Duration `mapstructure:"BOOKS_API_TIMEOUT"`
	SearchCacheTTL  time.Duration `mapstructure:"SEARCH_CACHE_TTL"`

	// Seeded on startup when AdminUsername is set.
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

var AppConfig *Config

var defaults = map[string]any{
	"DATABASE_URL":          "",
	"JWT_SECRET":            "",
	"HTTP_ADDR":             ":8080",
	"LOG_LEVEL":             "info",
	"CORS_ORIGIN":           "http://localhost:5173",
	"COOKIE_SECURE":         false,
	"TOKEN_TTL":             "168h",
	"REDIS_URL":             "",
	"NATS_URL":              "",
	"EVENT_QUEUE_SIZE":      256,
	"EVENT_PUBLISH_TIMEOUT": "5s",
	"BOOKS_API_URL":         "https://www.googleapis.com/books/v1/volumes",
	"BOOKS_API_KEY":         "",
	"BOOKS_API_TIMEOUT":     "10s",
	"SEARCH_CACHE_TTL":      "10m",
	"ADMIN_USERNAME":        "",
	"ADMIN_EMAIL":           "",
	"ADMIN_PASSWORD":        "",
}

// Load reads the configuration from a .env file in dir (if present) and the environment.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// AutomaticEnv only resolves keys viper already knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("config: EVENT_QUEUE_SIZE must be positive")
	}
	if c.AdminUsername != "" && (c.AdminEmail == "" || c.AdminPassword == "") {
		return fmt.Errorf("config: ADMIN_EMAIL and ADMIN_PASSWORD are required with ADMIN_USERNAME")
	}
	return nil
}

// LoadConfig loads the configuration from a .env file and environment variables
// into AppConfig.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		log.Fatalf("Unable to load config, %v", err)
	}
	AppConfig = cfg
}
