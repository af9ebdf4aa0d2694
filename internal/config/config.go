// Package config loads nexusd configuration from file, environment, and
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved nexusd configuration.
type Config struct {
	// DataDir holds the local store database and related state.
	DataDir string `mapstructure:"data_dir"`

	// RemoteURL is the sync server endpoint (ws://host:port/sync).
	// Empty disables cloud sync entirely.
	RemoteURL string `mapstructure:"remote_url"`

	// RemoteTimeout bounds individual remote calls.
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`

	// ImportDir is the file-drop import directory. Empty disables the
	// import bridge.
	ImportDir string `mapstructure:"import_dir"`

	// ImportDebounce batches rapid rewrites of dropped files.
	ImportDebounce time.Duration `mapstructure:"import_debounce"`

	// ListenAddr is the serve command's listen address.
	ListenAddr string `mapstructure:"listen_addr"`

	// LogFile, when set, routes logs to a rotated file instead of stderr.
	LogFile string `mapstructure:"log_file"`
}

// Load reads configuration from the given file (empty means search the
// default locations), applies NEXUS_* environment overrides, and fills in
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_timeout", 15*time.Second)
	v.SetDefault("import_dir", "")
	v.SetDefault("import_debounce", 100*time.Millisecond)
	v.SetDefault("listen_addr", ":8787")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("nexus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".nexus"))
		}
		if err := v.ReadInConfig(); err != nil {
			// Missing config is fine, defaults apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// StorePath returns the local store database path.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "nexus.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nexus"
	}
	return filepath.Join(home, ".nexus")
}
