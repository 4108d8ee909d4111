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

// Config holds every setting taskr reads at start-up.
type Config struct {
	DBPath       string             `mapstructure:"db_path"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Log          LogConfig          `mapstructure:"log"`
	Presets      bool               `mapstructure:"presets"`
}

type RemoteConfig struct {
	// DSN is a MySQL data source name. Empty disables the remote store.
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type ConnectivityConfig struct {
	// ProbeAddr is dialed to decide whether the remote store is reachable.
	// Empty derives it from the DSN.
	ProbeAddr     string        `mapstructure:"probe_addr"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type LogConfig struct {
	File    string `mapstructure:"file"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Dir returns $XDG_CONFIG_HOME/taskr.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "taskr")
}

// DefaultPath returns the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("connectivity.probe_addr", "")
	v.SetDefault("connectivity.probe_interval", 15*time.Second)
	v.SetDefault("log.file", filepath.Join(Dir(), "logs", "taskr.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
	v.SetDefault("presets", true)
}

// Load reads path (or the default path when empty), then applies TASKR_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("taskr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Remote.DSN != "" && cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required when remote.dsn is set")
	}
	return &cfg, nil
}

// RemoteEnabled reports whether a remote store is configured.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.DSN != ""
}

// ProbeAddr returns the address used by the reachability probe: the
// configured one, or host:port parsed from a "tcp(host:port)" DSN.
func (c *Config) ProbeAddr() string {
	if c.Connectivity.ProbeAddr != "" {
		return c.Connectivity.ProbeAddr
	}
	dsn := c.Remote.DSN
	start := strings.Index(dsn, "tcp(")
	if start < 0 {
		return ""
	}
	rest := dsn[start+len("tcp("):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}
	return rest[:end]
}
