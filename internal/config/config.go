// Package config loads tada's settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/ui"
)

// Config is the full configuration tree.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Cache   CacheConfig   `koanf:"cache"`
	Log     LogConfig     `koanf:"log"`
	UI      UIConfig      `koanf:"ui"`
	Session SessionConfig `koanf:"session"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// AcceptAny2xx treats every 2xx mutation response as success.
	// Off by default: the API answers 200 for every call the client makes.
	AcceptAny2xx bool `koanf:"accept_any_2xx"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	// File receives logs while the interactive list owns the terminal.
	File string `koanf:"file"`
}

type UIConfig struct {
	Theme string `koanf:"theme"`
}

type SessionConfig struct {
	// Dir holds session.json. Empty means ~/.tada.
	Dir string `koanf:"dir"`
}

const (
	DefaultBaseURL = "http://localhost:1337/api"
	DefaultTimeout = 10 * time.Second
	DefaultTTL     = 5 * time.Minute
)

func applyDefaults(cfg *Config, home string) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultTimeout
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" && home != "" {
		cfg.Log.File = filepath.Join(home, ".tada", "tada.log")
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "classic"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.API.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("api.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		errs = append(errs, fmt.Errorf("api.base_url: want an absolute http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, fmt.Errorf("api.timeout: must not be negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl: must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !slices.Contains(ui.Themes, strings.ToLower(c.UI.Theme)) {
		errs = append(errs, fmt.Errorf("ui.theme: unknown theme %q", c.UI.Theme))
	}
	return errors.Join(errs...)
}
