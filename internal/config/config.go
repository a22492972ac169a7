// Package config loads and validates the taskmand configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	defaultBind           = "127.0.0.1:7470"
	defaultDBPath         = "~/.local/share/taskmand/taskmand.db"
	defaultTokenTTL       = 15
	defaultBcryptCost     = 10
	defaultLogLevel       = "info"
	defaultShutdownGraceS = 30
)

// Server contains bind address and storage settings.
type Server struct {
	Bind           string `toml:"bind"`
	DBPath         string `toml:"db_path"`
	ShutdownGraceS int    `toml:"shutdown_grace_seconds"`
}

// Auth contains the access control gate settings. SecretKey signs the
// bearer tokens and must be set before the daemon will start.
type Auth struct {
	SecretKey       string `toml:"secret_key"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"`
	BcryptCost      int    `toml:"bcrypt_cost"`
}

// Logging contains log output settings.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config encapsulates all configuration values for taskmand.
type Config struct {
	Server  Server  `toml:"server"`
	Auth    Auth    `toml:"auth"`
	Logging Logging `toml:"logging"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:           defaultBind,
			DBPath:         defaultDBPath,
			ShutdownGraceS: defaultShutdownGraceS,
		},
		Auth: Auth{
			TokenTTLMinutes: defaultTokenTTL,
			BcryptCost:      defaultBcryptCost,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}

// DefaultConfigPath returns the absolute path to the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/taskmand/config.toml")
}

// Load parses and validates the configuration file at path. An empty
// path means the default location; a missing file at the default
// location yields the defaults (with validation still applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	usedDefault := false
	if strings.TrimSpace(path) == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
		usedDefault = true
	} else {
		p, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && usedDefault:
		// No config file yet; run on defaults.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets the secret come from the environment so it
// never has to live in the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKMAND_SECRET_KEY"); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := os.Getenv("TASKMAND_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("TASKMAND_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
}

func (c *Config) normalize() {
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = defaultDBPath
	}
	if c.Server.ShutdownGraceS <= 0 {
		c.Server.ShutdownGraceS = defaultShutdownGraceS
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		c.Auth.TokenTTLMinutes = defaultTokenTTL
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = defaultBcryptCost
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if p, err := expandPath(c.Server.DBPath); err == nil {
		c.Server.DBPath = p
	}
	if c.Logging.File != "" {
		if p, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = p
		}
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/taskmand/config.toml"
		}
		return fmt.Errorf("auth.secret_key is required. Set TASKMAND_SECRET_KEY env var or edit %s (create with 'taskmand config init')", defaultPath)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 4 and 31")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// TokenTTL returns the configured token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// ShutdownGrace returns the graceful shutdown window.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceS) * time.Second
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	p, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("config file already exists at %s", p)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(p, []byte(sampleConfig), 0o600)
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
