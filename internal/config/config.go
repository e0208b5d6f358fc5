package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Channels accepted by CHANNEL
const (
	ChannelTwilio = "twilio"
	ChannelMeta   = "meta"
	ChannelLog    = "log"
)

// MaxCatalogPageSize keeps menu index 9 free for "create new"
const MaxCatalogPageSize = 8

type Config struct {
	// HTTP Server
	Port        string
	Environment string

	// Database
	UseMemoryStore         bool
	DatabaseURL            string
	DBHost                 string
	DBPort                 string
	DBUser                 string
	DBPass                 string
	DBName                 string
	InstanceConnectionName string

	// Dialog
	Timezone        string
	HomeCurrency    string
	SessionTimeout  time.Duration
	CatalogPageSize int

	// Channel selection
	Channel                  string
	DisableWebhookValidation bool

	// Twilio
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	// Meta Cloud API
	WhatsAppToken   string
	PhoneNumberID   string
	AppSecret       string
	VerifyToken     string
	GraphAPIVersion string

	// AMQP
	AMQPURL      string
	AMQPExchange string

	// Jobs
	RetentionDays int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		UseMemoryStore:         getEnvBool("USE_MEMORY_STORE", false),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "postgres"),
		DBPass:                 getEnv("DB_PASS", ""),
		DBName:                 getEnv("DB_NAME", "gastos"),
		InstanceConnectionName: getEnv("INSTANCE_CONNECTION_NAME", ""),

		Timezone:        getEnv("TZ", "America/Argentina/Buenos_Aires"),
		HomeCurrency:    strings.ToUpper(getEnv("HOME_CURRENCY", "ARS")),
		SessionTimeout:  getEnvDuration("SESSION_TIMEOUT", 2*time.Minute),
		CatalogPageSize: getEnvInt("CATALOG_PAGE_SIZE", 5),

		Channel:                  strings.ToLower(getEnv("CHANNEL", ChannelTwilio)),
		DisableWebhookValidation: getEnvBool("DISABLE_WEBHOOK_VALIDATION", false),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),

		WhatsAppToken:   getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:   getEnv("PHONE_NUMBER_ID", ""),
		AppSecret:       getEnv("APP_SECRET", ""),
		VerifyToken:     getEnv("VERIFY_TOKEN", ""),
		GraphAPIVersion: getEnv("GRAPH_API_VERSION", "v20.0"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gastos"),

		RetentionDays: getEnvInt("RETENTION_DAYS", 30),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate dialog settings
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if len(c.HomeCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid home currency '%s': must be a 3-letter code", c.HomeCurrency))
	}
	if c.SessionTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid session timeout %v: must be positive", c.SessionTimeout))
	}
	if c.CatalogPageSize < 1 || c.CatalogPageSize > MaxCatalogPageSize {
		errors = append(errors, fmt.Sprintf("invalid catalog page size %d: must be between 1 and %d", c.CatalogPageSize, MaxCatalogPageSize))
	}

	// Validate database configuration unless the memory store is used
	if !c.UseMemoryStore && c.DatabaseURL == "" && c.InstanceConnectionName == "" {
		if c.DBHost == "" {
			errors = append(errors, "DB_HOST is required when DATABASE_URL is not set")
		}
		if c.DBName == "" {
			errors = append(errors, "DB_NAME is required when DATABASE_URL is not set")
		}
	}

	// Validate channel credentials
	switch c.Channel {
	case ChannelTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
			errors = append(errors, "TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM are required for the twilio channel")
		}
	case ChannelMeta:
		if c.WhatsAppToken == "" || c.PhoneNumberID == "" {
			errors = append(errors, "WHATSAPP_TOKEN and PHONE_NUMBER_ID are required for the meta channel")
		}
		if c.VerifyToken == "" {
			errors = append(errors, "VERIFY_TOKEN is required for the meta channel")
		}
		if c.AppSecret == "" && !c.DisableWebhookValidation {
			errors = append(errors, "APP_SECRET is required for the meta channel unless webhook validation is disabled")
		}
	case ChannelLog:
	default:
		errors = append(errors, fmt.Sprintf("invalid channel '%s': must be one of [%s %s %s]", c.Channel, ChannelTwilio, ChannelMeta, ChannelLog))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RetentionDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid retention days %d: must be at least 1", c.RetentionDays))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN builds the Postgres connection string. DATABASE_URL wins; a
// Cloud SQL instance name selects the unix socket under /cloudsql.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.InstanceConnectionName, c.DBUser, c.DBPass, c.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
