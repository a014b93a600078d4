// Package config loads program settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the program reads.
type Config struct {
	// DBPath is the local SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// RemoteURL is the Postgres connection string for the remote replica.
	// Empty disables remote sync entirely.
	RemoteURL string `mapstructure:"remote_url"`

	// Account identifies the owner of remote rows.
	Account string `mapstructure:"account"`

	// CatalogPath points at the category YAML file.
	CatalogPath string `mapstructure:"catalog_path"`

	// SyncInterval is the auto-sync ticker period.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// ProbeAddr is the host:port the reachability probe dials. Empty
	// derives it from RemoteURL at wiring time.
	ProbeAddr string `mapstructure:"probe_addr"`

	// ProbeInterval is how often the reachability probe dials.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// LogFile, when set, mirrors log output into a rotating file.
	LogFile string `mapstructure:"log_file"`

	// DashboardPort is the WebSocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// Debug gates the admin command surface.
	Debug bool `mapstructure:"debug"`
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ledger")
}

// Load reads configuration from the given file, or from the default
// locations when path is empty. Environment variables prefixed LEDGER_
// override file values (LEDGER_DB_PATH, LEDGER_REMOTE_URL, ...). A missing
// config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", filepath.Join(DefaultDir(), "ledger.db"))
	v.SetDefault("catalog_path", filepath.Join(DefaultDir(), "categories.yaml"))
	v.SetDefault("sync_interval", 5*time.Second)
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("dashboard_port", 8080)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
