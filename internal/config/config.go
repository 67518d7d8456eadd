// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"APP_ENV"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBHost                 string        `mapstructure:"DB_HOST"`
	DBPort                 string        `mapstructure:"DB_PORT"`
	DBUser                 string        `mapstructure:"DB_USER"`
	DBPassword             string        `mapstructure:"DB_PASSWORD"`
	DBName                 string        `mapstructure:"DB_NAME"`
	DBSSLMode              string        `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns         int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns         int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBSchemaMode           string        `mapstructure:"DB_SCHEMA_MODE"`
	DBConnectRetryInterval time.Duration `mapstructure:"DB_CONNECT_RETRY_INTERVAL"`
	DBConnectMaxWait       time.Duration `mapstructure:"DB_CONNECT_MAX_WAIT"`
	RedisURL               string        `mapstructure:"REDIS_URL"`
	AllowedOrigins         string        `mapstructure:"ALLOWED_ORIGINS"`
	UploadDir              string        `mapstructure:"UPLOAD_DIR"`
	MediaMaxFileSizeMB     int           `mapstructure:"MEDIA_MAX_FILE_SIZE_MB"`
	StaticDir              string        `mapstructure:"STATIC_DIR"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
	TracingEnabled         bool          `mapstructure:"TRACING_ENABLED"`
	TracingExporter        string        `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint           string        `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio     float64       `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables alone are enough.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "3002")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "xclone")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "")
	viper.SetDefault("DB_CONNECT_RETRY_INTERVAL", 5*time.Second)
	viper.SetDefault("DB_CONNECT_MAX_WAIT", time.Duration(0))
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("MEDIA_MAX_FILE_SIZE_MB", 50)
	viper.SetDefault("STATIC_DIR", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MediaMaxFileSize returns the per-file upload limit in bytes.
func (c *Config) MediaMaxFileSize() int64 {
	return int64(c.MediaMaxFileSizeMB) * 1024 * 1024
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DatabaseURL == "" && (c.DBHost == "" || c.DBName == "") {
		return errors.New("DATABASE_URL or DB_HOST and DB_NAME are required")
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return errors.New("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	switch c.DBSchemaMode {
	case "", "sql", "auto":
	default:
		return fmt.Errorf("unsupported DB_SCHEMA_MODE %q", c.DBSchemaMode)
	}
	if c.DBConnectRetryInterval <= 0 {
		return errors.New("DB_CONNECT_RETRY_INTERVAL must be positive")
	}
	if c.DBConnectMaxWait < 0 {
		return errors.New("DB_CONNECT_MAX_WAIT must not be negative")
	}
	if c.UploadDir == "" {
		return errors.New("UPLOAD_DIR is required")
	}
	if c.MediaMaxFileSizeMB <= 0 {
		return errors.New("MEDIA_MAX_FILE_SIZE_MB must be positive")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.DatabaseURL == "" && (c.DBPassword == "postgres" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DatabaseURL == "" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.DBSchemaMode == "auto" {
			return errors.New("DB_SCHEMA_MODE=auto is not allowed in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
