/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisReferencePrefix  string `mapstructure:"REDIS_REFERENCE_PREFIX"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	PaystackWebhookSecret string `mapstructure:"PAYSTACK_WEBHOOK_SECRET"`
	JWKSURL               string `mapstructure:"JWKS_URL"`
	LedgerServiceURL      string `mapstructure:"LEDGER_SERVICE_URL"`
	LedgerInternalAPIKey  string `mapstructure:"LEDGER_SERVICE_INTERNAL_API_KEY"`
	InternalAPIKey        string `mapstructure:"INTERNAL_API_KEY"`
	SyncMaxAttempts       int    `mapstructure:"SYNC_MAX_ATTEMPTS"`
	SyncBackoffSeconds    int    `mapstructure:"SYNC_BACKOFF_SECONDS"`
	SyncBatchSize         int    `mapstructure:"SYNC_BATCH_SIZE"`
	SyncPollIntervalMs    int    `mapstructure:"SYNC_POLL_INTERVAL_MS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_REFERENCE_PREFIX", "kudipay:webhook_ref")
	viper.SetDefault("SYNC_MAX_ATTEMPTS", 4)
	viper.SetDefault("SYNC_BACKOFF_SECONDS", 5)
	viper.SetDefault("SYNC_BATCH_SIZE", 50)
	viper.SetDefault("SYNC_POLL_INTERVAL_MS", 2000)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_REFERENCE_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYSTACK_WEBHOOK_SECRET", "PAYSTACK_WEBHOOK_SECRET", "PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("LEDGER_SERVICE_URL")
	_ = viper.BindEnv("LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "WALLET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SYNC_MAX_ATTEMPTS")
	_ = viper.BindEnv("SYNC_BACKOFF_SECONDS")
	_ = viper.BindEnv("SYNC_BATCH_SIZE")
	_ = viper.BindEnv("SYNC_POLL_INTERVAL_MS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("WALLET_SERVICE_INTERNAL_API_KEY"))
	}
	if strings.TrimSpace(config.PaystackWebhookSecret) == "" {
		config.PaystackWebhookSecret = strings.TrimSpace(os.Getenv("PAYSTACK_SECRET_KEY"))
	}
	config.LedgerInternalAPIKey = strings.TrimSpace(config.LedgerInternalAPIKey)
	if config.LedgerInternalAPIKey == "" {
		config.LedgerInternalAPIKey = config.InternalAPIKey
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisReferencePrefix = strings.TrimSpace(config.RedisReferencePrefix)
	if config.RedisReferencePrefix == "" {
		config.RedisReferencePrefix = "kudipay:webhook_ref"
	}

	if config.SyncMaxAttempts <= 0 {
		config.SyncMaxAttempts = 4
	}
	if config.SyncBackoffSeconds <= 0 {
		config.SyncBackoffSeconds = 5
	}
	if config.SyncBatchSize <= 0 {
		config.SyncBatchSize = 50
	}
	if config.SyncPollIntervalMs <= 0 {
		config.SyncPollIntervalMs = 2000
	}

	return
}
