// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/canonical/sqlbind"
	"github.com/canonical/sqlbind/format"
)

const (
	maxWalkDepth = 25
)

// configNames are the file names looked for during auto-discovery, in order.
var configNames = []string{"sqlbind.yaml", "sqlbind.yml"}

// Config represents the sqlbind configuration from sqlbind.yaml.
type Config struct {
	// Encoding is the text encoding used to scrub string values.
	Encoding string `mapstructure:"encoding" json:"encoding"`

	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Format   FormatConfig   `mapstructure:"format" json:"format"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn"`
}

// FormatConfig holds the settings of the date/time and size formatters.
type FormatConfig struct {
	Times    bool   `mapstructure:"times" json:"times"`
	Timezone string `mapstructure:"timezone" json:"timezone"`
	Sizes    bool   `mapstructure:"sizes" json:"sizes"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SQLBIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("encoding", "utf-8")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", ":memory:")

	v.SetDefault("format.times", true)
	v.SetDefault("format.timezone", "UTC")
	v.SetDefault("format.sizes", true)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for sqlbind.yaml or sqlbind.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repository root.
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// BinderOptions returns the sqlbind options described by the configuration.
func (c *Config) BinderOptions() ([]sqlbind.Option, error) {
	var opts []sqlbind.Option
	if c.Encoding != "" {
		opts = append(opts, sqlbind.WithEncoding(c.Encoding))
	}
	if c.Format.Times {
		loc := time.UTC
		if c.Format.Timezone != "" {
			var err error
			loc, err = time.LoadLocation(c.Format.Timezone)
			if err != nil {
				return nil, fmt.Errorf("format.timezone: %w", err)
			}
		}
		opts = append(opts, sqlbind.WithTimeFormatter(format.Time{Location: loc}))
	}
	if c.Format.Sizes {
		opts = append(opts, sqlbind.WithSizeFormatter(format.Size{}))
	}
	return opts, nil
}

// Binder returns a Binder built from the configuration.
func (c *Config) Binder() (*sqlbind.Binder, error) {
	opts, err := c.BinderOptions()
	if err != nil {
		return nil, err
	}
	return sqlbind.NewBinder(opts...)
}
