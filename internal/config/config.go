// Package config loads treelist settings from flags, TREELIST_* environment
// variables and an optional treelist.{yaml,json} file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends.
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config is the resolved configuration.
type Config struct {
	Backend     string
	DB          string
	Fields      string
	LockDir     string
	LockTimeout time.Duration
	LogLevel    string
	LogFormat   string
	Listen      string
	Dynamo      Dynamo
}

// Dynamo configures the DynamoDB backend.
type Dynamo struct {
	ItemsTable  string
	OwnersTable string
	Region      string
	Endpoint    string
}

// New returns a viper instance with defaults, environment binding and config
// file discovery set up. TREELIST_CONFIG names an explicit config file.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("db", "")
	v.SetDefault("fields", "")
	v.SetDefault("lock_dir", "")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("listen", ":8080")
	v.SetDefault("dynamo.items_table", "treelist_items")
	v.SetDefault("dynamo.owners_table", "treelist_owners")
	v.SetDefault("dynamo.region", "")
	v.SetDefault("dynamo.endpoint", "")

	if configFile := os.Getenv("TREELIST_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("treelist")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.treelist")
		v.AddConfigPath("/etc/treelist")
	}

	v.SetEnvPrefix("TREELIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile reads the config file if one is found. A missing file is not an
// error; a malformed one is.
func ReadFile(v *viper.Viper) error {
	// An explicitly named file must exist.
	if explicit := v.ConfigFileUsed(); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

// Load resolves the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Backend:     strings.ToLower(v.GetString("backend")),
		DB:          v.GetString("db"),
		Fields:      v.GetString("fields"),
		LockDir:     v.GetString("lock_dir"),
		LockTimeout: v.GetDuration("lock_timeout"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		Listen:      v.GetString("listen"),
		Dynamo: Dynamo{
			ItemsTable:  v.GetString("dynamo.items_table"),
			OwnersTable: v.GetString("dynamo.owners_table"),
			Region:      v.GetString("dynamo.region"),
			Endpoint:    v.GetString("dynamo.endpoint"),
		},
	}

	switch cfg.Backend {
	case BackendSQLite, BackendDynamoDB:
	default:
		return nil, fmt.Errorf("invalid backend %q (use %s or %s)", cfg.Backend, BackendSQLite, BackendDynamoDB)
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("lock_timeout must be positive, got %s", v.GetString("lock_timeout"))
	}
	return cfg, nil
}
