// Package clientconfig loads the kanban CLI settings from a TOML file.
package clientconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const appName = "kanban"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Editing EditingConfig `toml:"editing"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	URL            string   `toml:"url"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type EditingConfig struct {
	Debounce Duration `toml:"debounce"`
}

type SessionConfig struct {
	TokenPath string `toml:"token_path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration reads values like "500ms" or "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Paths are the default file locations for the current user.
type Paths struct {
	ConfigPath string
	TokenPath  string
}

func DefaultPaths() (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		if v := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); v != "" {
			dataDir = v
		} else if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".local", "share")
		}
	}
	return PathsFor(configDir, dataDir), nil
}

func PathsFor(configDir, dataDir string) Paths {
	return Paths{
		ConfigPath: filepath.Join(configDir, appName, "config.toml"),
		TokenPath:  filepath.Join(dataDir, appName, "token"),
	}
}

func Default(tokenPath string) Config {
	return Config{
		Server: ServerConfig{
			URL:            "http://localhost:3000",
			RequestTimeout: Duration{10 * time.Second},
		},
		Editing: EditingConfig{
			Debounce: Duration{500 * time.Millisecond},
		},
		Session: SessionConfig{
			TokenPath: tokenPath,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads path over defaults. A missing or empty file keeps the defaults.
// KANBAN_SERVER_URL and KANBAN_TOKEN_PATH override the file.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		case len(content) > 0:
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode toml: %w", err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("KANBAN_SERVER_URL")); v != "" {
		cfg.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_TOKEN_PATH")); v != "" {
		cfg.Session.TokenPath = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.Server.URL))
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server.url: %q", c.Server.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https: %q", c.Server.URL)
	}
	if c.Server.RequestTimeout.Duration <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if c.Editing.Debounce.Duration <= 0 {
		return errors.New("editing.debounce must be positive")
	}
	if strings.TrimSpace(c.Session.TokenPath) == "" {
		return errors.New("session.token_path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	return nil
}

// Save writes cfg to path, creating its directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
