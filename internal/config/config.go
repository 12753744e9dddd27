package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/tally/internal/constants"
)

// Config is the on-disk client configuration
type Config struct {
	APIURL      string        `yaml:"api_url"`
	Database    string        `yaml:"database"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Debug       bool          `yaml:"debug"`
	MetricsFile string        `yaml:"metrics_file,omitempty"`
	UserAgent   string        `yaml:"user_agent,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() Config {
	return Config{
		APIURL:      constants.DefaultAPIURL,
		Database:    constants.DefaultDBPath,
		Timeout:     constants.DefaultHTTPTimeout,
		MaxAttempts: constants.DefaultMaxAttempts,
		UserAgent:   constants.DefaultUserAgent,
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	cfg.Database = ExpandPath(cfg.Database)
	cfg.MetricsFile = ExpandPath(cfg.MetricsFile)
	return cfg, nil
}

// Save writes cfg to path, creating parent directories
func Save(path string, cfg Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the API URL is usable and limits are positive
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api_url %q: scheme must be http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api_url %q: missing host", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database must not be empty")
	}
	return nil
}

// Dir returns the directory holding the config file, logs and backups
func Dir(path string) string {
	return filepath.Dir(ExpandPath(path))
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(constants.APIURLEnvVar); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(constants.DatabaseEnvVar); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(constants.DebugEnvVar); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", constants.DebugEnvVar, v, err)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
