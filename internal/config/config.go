// Package config loads classiflow settings from a YAML file and the
// environment. Precedence is: environment over file over defaults.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/koustreak/classiflow/internal/selection"
	"go.yaml.in/yaml/v3"
)

// Environment variables read by Load.
const (
	EnvAPIURL           = "CLASSIFLOW_API_URL"
	EnvConsoleHost      = "CLASSIFLOW_CONSOLE_HOST"
	EnvToken            = "CLASSIFLOW_TOKEN"
	EnvLogLevel         = "CLASSIFLOW_LOG_LEVEL"
	EnvSelectionBackend = "CLASSIFLOW_SELECTION_BACKEND"
	EnvListen           = "CLASSIFLOW_LISTEN"
)

// APIConfig points at the change-management service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ConsoleConfig is the user-facing console the issue links point at.
type ConsoleConfig struct {
	Host string `yaml:"host"`
}

// ServerConfig configures the JSON API listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full classiflow configuration.
type Config struct {
	API             APIConfig        `yaml:"api"`
	Console         ConsoleConfig    `yaml:"console"`
	Schema          string           `yaml:"schema"`
	NotificationTTL time.Duration    `yaml:"notification_ttl"`
	Selection       selection.Config `yaml:"selection"`
	Server          ServerConfig     `yaml:"server"`
	Log             LogConfig        `yaml:"log"`
}

// DefaultConfig returns a config that talks to a service on localhost.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Console:         ConsoleConfig{Host: "http://localhost:8080"},
		Schema:          metadata.DefaultSchema,
		NotificationTTL: 3 * time.Second,
		Selection:       selection.Config{Backend: selection.BackendMemory},
		Server:          ServerConfig{Listen: ":8090"},
		Log:             LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path on top of DefaultConfig and applies the environment.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse config "+path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.API.BaseURL, EnvAPIURL)
	set(&c.API.Token, EnvToken)
	set(&c.Console.Host, EnvConsoleHost)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Server.Listen, EnvListen)

	var backend string
	set(&backend, EnvSelectionBackend)
	if backend != "" {
		c.Selection.Backend = selection.Backend(backend)
	}
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errs.New(errs.ErrKindInvalidInput, "api.base_url is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.Schema == "" {
		return errs.New(errs.ErrKindInvalidInput, "schema is required")
	}
	if c.NotificationTTL < 0 {
		return errs.New(errs.ErrKindInvalidInput, "notification_ttl must not be negative")
	}

	sel := c.Selection
	if sel.Backend != "" && !sel.Backend.Valid() {
		return errs.Newf(errs.ErrKindInvalidInput, "unknown selection backend %q", sel.Backend)
	}
	switch sel.Backend {
	case selection.BackendFile:
		if sel.Path == "" {
			return errs.New(errs.ErrKindInvalidInput, "selection.path is required for the file backend")
		}
	case selection.BackendObject:
		if sel.Endpoint == "" || sel.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "selection.endpoint and selection.bucket are required for the object backend")
		}
	case selection.BackendSQL:
		if sel.DSN == "" {
			return errs.New(errs.ErrKindInvalidInput, "selection.dsn is required for the sql backend")
		}
	}
	return nil
}

// String renders the config as YAML with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.API.Token = mask(c.API.Token)
	masked.Selection.SecretKey = mask(c.Selection.SecretKey)
	masked.Selection.DSN = mask(c.Selection.DSN)

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
