package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-level settings. Tenant webhook configuration
// lives in the tenants file, not here.
type Config struct {
	Port          string `mapstructure:"PORT"`
	TenantsFile   string `mapstructure:"TENANTS_FILE"`
	QueueEnabled  bool   `mapstructure:"QUEUE_ENABLED"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	Workers       int    `mapstructure:"WORKERS"`

	// DeliveryTimeoutSeconds bounds one HTTP delivery attempt
	DeliveryTimeoutSeconds int `mapstructure:"DELIVERY_TIMEOUT_SECONDS"`
}

// GetConfig reads configuration from the environment, with an optional
// .env file for local development
func GetConfig() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("TENANTS_FILE", "tenants.yaml")
	viper.SetDefault("QUEUE_ENABLED", true)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("WORKERS", 5)
	viper.SetDefault("DELIVERY_TIMEOUT_SECONDS", 30)

	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// The .env file is optional; env vars and defaults still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	return &config, nil
}

// DeliveryTimeout returns the per-attempt timeout as a duration
func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}
