// Package config loads sharezone settings from flags, environment, .env and an
// optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SHAREZONE"

// Config holds the client-level configuration.
type Config struct {
	Server              string        `mapstructure:"server"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes"`
	StateDir            string        `mapstructure:"state_dir"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFormat           string        `mapstructure:"log_format"`
	DownloadDir         string        `mapstructure:"download_dir"`
	WebAddr             string        `mapstructure:"web_addr"`
	DeleteRedirectDelay time.Duration `mapstructure:"delete_redirect_delay"`
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"server":    "server",
	"timeout":   "timeout",
	"log-level": "log_level",
	"state-dir": "state_dir",
}

// DefaultStateDir is ~/.sharezone, overridable with SHAREZONE_STATE_DIR.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sharezone"
	}
	return filepath.Join(home, ".sharezone")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://127.0.0.1:3333")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_upload_bytes", int64(20*1024*1024))
	v.SetDefault("state_dir", DefaultStateDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("download_dir", ".")
	v.SetDefault("web_addr", "127.0.0.1:8080")
	v.SetDefault("delete_redirect_delay", time.Second)
}

// Load resolves the configuration. path may be empty, in which case
// <state_dir>/config.yaml is read when it exists. fs may be nil.
func Load(fs *pflag.FlagSet, path string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		path = filepath.Join(v.GetString("state_dir"), "config.yaml")
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises and checks the loaded values.
func (c *Config) Validate() error {
	c.Server = strings.TrimRight(strings.TrimSpace(c.Server), "/")
	if c.Server == "" {
		return errors.New("config: server is empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max_upload_bytes must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	if strings.TrimSpace(c.StateDir) == "" {
		c.StateDir = DefaultStateDir()
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: invalid log_format %q (expected text|json)", c.LogFormat)
	}
	return nil
}
