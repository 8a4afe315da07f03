// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"zippyst/internal/extract"
	"zippyst/internal/httputil"
)

// Output modes for printed links.
const (
	OutputFull  = "full"
	OutputShort = "short"
)

// MaxConcurrency caps parallel resolutions.
const MaxConcurrency = 32

// Config holds all application configuration.
type Config struct {
	UserAgent   string   `toml:"user_agent"`
	Timeout     int      `toml:"timeout"` // seconds
	Concurrency int      `toml:"concurrency"`
	Schemes     []string `toml:"schemes"`
	Output      string   `toml:"output"`
	History     bool     `toml:"history"`
	DownloadDir string   `toml:"download_dir"`
	Debug       bool     `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		UserAgent:   httputil.DefaultUserAgent,
		Timeout:     30,
		Concurrency: 4,
		Schemes:     extract.SchemeNames(),
		Output:      OutputFull,
		History:     true,
		DownloadDir: "~/Downloads/zippyst",
		Debug:       false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zippyst"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "zippyst"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if len(c.Schemes) == 0 {
		return fmt.Errorf("scheme list cannot be empty")
	}
	if _, err := extract.LookupSchemes(c.Schemes); err != nil {
		return err
	}

	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	if c.Output != OutputFull && c.Output != OutputShort {
		return fmt.Errorf("unsupported output %q (valid: full, short)", c.Output)
	}

	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency %d out of range (1-%d)", c.Concurrency, MaxConcurrency)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// Resolver builds a resolver using the configured scheme inventory.
func (c *Config) Resolver(opts ...extract.Option) (*extract.Resolver, error) {
	schemes, err := extract.LookupSchemes(c.Schemes)
	if err != nil {
		return nil, err
	}
	return extract.New(append([]extract.Option{extract.WithSchemes(schemes...)}, opts...)...), nil
}

// ClientOptions returns the HTTP client settings.
func (c *Config) ClientOptions() httputil.Options {
	return httputil.Options{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.Timeout) * time.Second,
	}
}

// ExpandDownloadDir resolves ~ in the download directory path.
func (c *Config) ExpandDownloadDir() (string, error) {
	return expandHome(c.DownloadDir)
}

func expandHome(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the history file.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "zippyst", "history.tsv"), nil
}
