package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"lototrak/internal/email"
)

// Pixel size of generated lock QR code images.
const QR_IMAGE_SIZE = 300

type RBACConfig struct {
	PolicyFile string `mapstructure:"policy_file"` // Optional path to a policy override file
}

type Config struct {
	// Secret key for signing auth tokens. Must be set in production.
	Secret string `mapstructure:"secret"`

	NonceStore string `mapstructure:"nonce_store"`
	LogLevel   string `mapstructure:"log_level"`

	RBAC RBACConfig `mapstructure:"rbac"`

	// User authentication TTL in days.
	UserAuthTTL uint `mapstructure:"user_auth_ttl"`

	// Base URL for the application. May be relative, e.g. /lototrak/, or absolute.
	BaseURL string `mapstructure:"base_url"`

	Storage Storage `mapstructure:"storage"`

	// SMTP settings for account notification emails. Optional.
	Email email.SMTPConfig `mapstructure:"email"`
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from file and environment variables and
// returns a Config struct.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvPrefix("")

	if len(configFile) > 0 {
		for _, path := range configFile {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	// Convert relative sqlite path to absolute instance folder
	if cfg.Storage.SQLite != nil {
		if cfg.Storage.SQLite.Path == ":memory:" {
			// In-memory database, do nothing
		} else if !os.IsPathSeparator(cfg.Storage.SQLite.Path[0]) {
			cfg.Storage.SQLite.Path = fmt.Sprintf("%s/%s", getConfigPath(), cfg.Storage.SQLite.Path)
		}
	}

	// Warn if secret is missing - this is a critical security setting for production
	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("SECRET configuration variable is required in production")
		} else {
			slog.Warn("Secret is not set. Do not use in production.")
		}
	}

	Cfg = &cfg
	return Cfg, nil
}
