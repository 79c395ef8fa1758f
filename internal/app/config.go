package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
)

type Config struct {
	APIBase         string        // Base URL of the Wishkro API
	RequestTimeout  time.Duration // Per-request timeout (default: 20s)
	CredentialsFile string        // Path to the SQLite credential store (default: ~/.wishkro/credentials.db)
	MasterKeyFile   string        // Optional: path to the at-rest encryption key file
	RequestsPerMin  int           // Optional: client-side request pacing, 0 disables
	Env             string        // Environment (dev, staging, prod) (default: dev)
	LogLevel        string        // Log level (debug, info, warn, error) (default: info)
	LogFormat       string        // Log format (json, text) (default: text)
}

// LoadConfig resolves configuration from, in increasing precedence: built-in
// defaults, an optional wishkro.env file in the working directory or
// ~/.wishkro/, and WISHKRO_-prefixed environment variables.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("api_base", apiclient.DefaultBaseURL)
	v.SetDefault("request_timeout", apiclient.DefaultTimeout)
	v.SetDefault("credentials_file", defaultCredentialsFile())
	v.SetDefault("master_key_file", "")
	v.SetDefault("requests_per_min", 0)
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigName("wishkro")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".wishkro"))
	}
	if err := v.ReadInConfig(); err != nil {
		// The file is optional; anything else is a real problem.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("WISHKRO")
	v.AutomaticEnv()

	cfg := Config{
		APIBase:         v.GetString("api_base"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		CredentialsFile: v.GetString("credentials_file"),
		MasterKeyFile:   v.GetString("master_key_file"),
		RequestsPerMin:  v.GetInt("requests_per_min"),
		Env:             v.GetString("env"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}

	if cfg.APIBase == "" {
		return Config{}, fmt.Errorf("api_base must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = apiclient.DefaultTimeout
	}
	if cfg.RequestsPerMin < 0 {
		return Config{}, fmt.Errorf("requests_per_min must not be negative")
	}

	return cfg, nil
}

func defaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wishkro-credentials.db"
	}
	return filepath.Join(home, ".wishkro", "credentials.db")
}
