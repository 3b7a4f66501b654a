// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`
	ClientURL      string `mapstructure:"CLIENT_URL"`

	// Content classifier (OpenAI-compatible chat-completions endpoint)
	ClassifierEndpoint string `mapstructure:"CLASSIFIER_ENDPOINT"`
	ClassifierModel    string `mapstructure:"CLASSIFIER_MODEL"`
	ClassifierAPIKey   string `mapstructure:"CLASSIFIER_API_KEY"`

	// Outbound mail
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	// Job engine
	EngineWorkers   int `mapstructure:"ENGINE_WORKERS"`
	EngineQueueSize int `mapstructure:"ENGINE_QUEUE_SIZE"`
	EngineRetries   int `mapstructure:"ENGINE_RETRIES"`
	EngineBackoffMS int `mapstructure:"ENGINE_BACKOFF_MS"`

	// Anti-spam gate
	SpamSimilarityThreshold float64 `mapstructure:"SPAM_SIMILARITY_THRESHOLD"`
	SpamRecentWindow        int     `mapstructure:"SPAM_RECENT_WINDOW"`
	SpamMinIntervalSeconds  int     `mapstructure:"SPAM_MIN_INTERVAL_SECONDS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	// Set default values for development
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "intelliblog")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("CLIENT_URL", "http://localhost:3000")

	viper.SetDefault("CLASSIFIER_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("CLASSIFIER_MODEL", "gpt-4o-mini")
	viper.SetDefault("CLASSIFIER_API_KEY", "")

	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", "587")
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("MAIL_FROM", "no-reply@intelliblog.local")

	viper.SetDefault("ENGINE_WORKERS", 4)
	viper.SetDefault("ENGINE_QUEUE_SIZE", 256)
	viper.SetDefault("ENGINE_RETRIES", 2)
	viper.SetDefault("ENGINE_BACKOFF_MS", 1000)

	viper.SetDefault("SPAM_SIMILARITY_THRESHOLD", 0.8)
	viper.SetDefault("SPAM_RECENT_WINDOW", 5)
	viper.SetDefault("SPAM_MIN_INTERVAL_SECONDS", 15)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.EngineWorkers < 1 {
		return errors.New("ENGINE_WORKERS must be at least 1")
	}
	if c.EngineRetries < 0 {
		return errors.New("ENGINE_RETRIES must not be negative")
	}
	if c.SpamSimilarityThreshold < 0 || c.SpamSimilarityThreshold > 1 {
		return errors.New("SPAM_SIMILARITY_THRESHOLD must be within [0,1]")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.ClassifierAPIKey == "" {
			log.Println("WARNING: CLASSIFIER_API_KEY is empty; comment moderation jobs will fail until it is set.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
