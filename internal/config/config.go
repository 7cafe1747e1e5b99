package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"carepulse-server/internal/apperr"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origins              []string
	Environment          string
	LogLevel             string
	JWTSecret            string
	JWTExpirationMinutes int
	AdminPasskeyHash     string
	Database             DatabaseConfig
	Cache                CacheConfig
	Storage              StorageConfig
	SMS                  SMSConfig
	Scheduling           SchedulingConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// CacheConfig configures the appointment list cache. An empty RedisURL
// selects the in-process cache.
type CacheConfig struct {
	RedisURL string
	ListTTL  time.Duration
}

// StorageConfig configures identification document storage.
type StorageConfig struct {
	Driver        string // "s3" or "none"
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	URLExpiry     time.Duration // lifetime of presigned document URLs
}

// SMSConfig selects the outbound SMS transport.
type SMSConfig struct {
	Transport    string // "log", "sqs" or "kafka"
	QueueName    string
	Region       string
	Endpoint     string
	KafkaBrokers []string
	KafkaTopic   string
}

// SchedulingConfig holds appointment product settings.
type SchedulingConfig struct {
	// UpdateConfirms makes a generic edit move the appointment to scheduled.
	UpdateConfirms  bool
	DisplayTimeZone string
	WriteTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("ORIGIN", "http://localhost:3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_NAME", "carepulse")
	v.SetDefault("CACHE_LIST_TTL", "5m")
	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("S3_URL_EXPIRY", "168h")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SMS_TRANSPORT", "log")
	v.SetDefault("KAFKA_SMS_TOPIC", "carepulse-sms")
	v.SetDefault("UPDATE_CONFIRMS_APPOINTMENT", true)
	v.SetDefault("DISPLAY_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("WRITE_TIMEOUT", "10s")

	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		Username: v.GetString("DB_USERNAME"),
		Password: v.GetString("DB_PASSWORD"),
		Name:     v.GetString("DB_NAME"),
		DSN:      v.GetString("DB_DSN"),
	}
	if dbConfig.Port == "" {
		dbConfig.Port = "3306"
		if dbConfig.Driver == "postgres" {
			dbConfig.Port = "5432"
		}
	}
	if dbConfig.DSN == "" {
		dbConfig.DSN = buildDSN(dbConfig)
	}

	listTTL, err := time.ParseDuration(v.GetString("CACHE_LIST_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_LIST_TTL: %w", err)
	}
	writeTimeout, err := time.ParseDuration(v.GetString("WRITE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	urlExpiry, err := time.ParseDuration(v.GetString("S3_URL_EXPIRY"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_URL_EXPIRY: %w", err)
	}

	region := v.GetString("AWS_REGION")
	return &Config{
		Port:                 v.GetString("PORT"),
		Origins:              splitList(v.GetString("ORIGIN")),
		Environment:          v.GetString("APP_ENV"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTExpirationMinutes: v.GetInt("JWT_EXPIRATION_MINUTES"),
		AdminPasskeyHash:     v.GetString("ADMIN_PASSKEY_HASH"),
		Database:             dbConfig,
		Cache: CacheConfig{
			RedisURL: v.GetString("REDIS_URL"),
			ListTTL:  listTTL,
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Bucket:        v.GetString("S3_BUCKET"),
			Region:        region,
			Endpoint:      v.GetString("S3_ENDPOINT"),
			PublicBaseURL: v.GetString("S3_PUBLIC_URL"),
			URLExpiry:     urlExpiry,
		},
		SMS: SMSConfig{
			Transport:    strings.ToLower(v.GetString("SMS_TRANSPORT")),
			QueueName:    v.GetString("SMS_QUEUE_NAME"),
			Region:       region,
			Endpoint:     v.GetString("SQS_ENDPOINT"),
			KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_SMS_TOPIC"),
		},
		Scheduling: SchedulingConfig{
			UpdateConfirms:  v.GetBool("UPDATE_CONFIRMS_APPOINTMENT"),
			DisplayTimeZone: v.GetString("DISPLAY_TIMEZONE"),
			WriteTimeout:    writeTimeout,
		},
	}, nil
}

// Validate fails fast with a ConfigurationError when a setting required by
// the selected adapters is absent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return apperr.Configuration("JWT_SECRET", "is required")
	}
	if c.AdminPasskeyHash == "" {
		return apperr.Configuration("ADMIN_PASSKEY_HASH", "is required")
	}
	if c.JWTExpirationMinutes <= 0 {
		return apperr.Configuration("JWT_EXPIRATION_MINUTES", "must be positive")
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return apperr.Configuration("DB_DRIVER", fmt.Sprintf("must be mysql or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" || c.Database.Name == "" {
		return apperr.Configuration("DB_NAME", "is required")
	}

	switch c.Storage.Driver {
	case "s3":
		if c.Storage.Bucket == "" {
			return apperr.Configuration("S3_BUCKET", "is required when STORAGE_DRIVER is s3")
		}
		if c.Storage.URLExpiry <= 0 || c.Storage.URLExpiry > 7*24*time.Hour {
			return apperr.Configuration("S3_URL_EXPIRY", "must be between 1s and 168h")
		}
	case "none":
	default:
		return apperr.Configuration("STORAGE_DRIVER", fmt.Sprintf("must be s3 or none, got %q", c.Storage.Driver))
	}

	switch c.SMS.Transport {
	case "log":
	case "sqs":
		if c.SMS.QueueName == "" {
			return apperr.Configuration("SMS_QUEUE_NAME", "is required when SMS_TRANSPORT is sqs")
		}
	case "kafka":
		if len(c.SMS.KafkaBrokers) == 0 {
			return apperr.Configuration("KAFKA_BROKERS", "is required when SMS_TRANSPORT is kafka")
		}
		if c.SMS.KafkaTopic == "" {
			return apperr.Configuration("KAFKA_SMS_TOPIC", "is required when SMS_TRANSPORT is kafka")
		}
	default:
		return apperr.Configuration("SMS_TRANSPORT", fmt.Sprintf("must be log, sqs or kafka, got %q", c.SMS.Transport))
	}

	if c.Scheduling.WriteTimeout <= 0 {
		return apperr.Configuration("WRITE_TIMEOUT", "must be positive")
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Environment == "development"
}

func buildDSN(db DatabaseConfig) string {
	if db.Driver == "postgres" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			db.Host, db.Username, db.Password, db.Name, db.Port)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		db.Username, db.Password, db.Host, db.Port, db.Name)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
