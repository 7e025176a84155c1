// Package config handles the wv configuration file and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents configuration stored in ~/.config/wordvec/config.yml.
type Config struct {
	EmbeddingsPath string       `yaml:"embeddings_path,omitempty"` // GloVe text file
	DataDir        string       `yaml:"data_dir,omitempty"`        // snapshot and database location
	DefaultTopN    int          `yaml:"default_top_n,omitempty"`
	Server         ServerConfig `yaml:"server"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second, 0 disables
	Burst          int      `yaml:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins"` // empty disables CORS
}

const (
	DefaultTopN      = 5
	MaxTopN          = 1000
	DefaultAddr      = "127.0.0.1:8000"
	DefaultRateLimit = 50
	DefaultBurst     = 100

	CacheDir = "cache"
	DBFile   = "words.db"
)

// DefaultAllowedOrigins lists the browser origins the service accepts by
// default (a local dashboard).
var DefaultAllowedOrigins = []string{"http://localhost:8501", "http://127.0.0.1:8501"}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		DataDir:     DefaultDataDir(),
		DefaultTopN: DefaultTopN,
		Server: ServerConfig{
			Addr:           DefaultAddr,
			RateLimit:      DefaultRateLimit,
			Burst:          DefaultBurst,
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		},
	}
}

// Load reads configuration from path on top of the defaults.
// Returns the defaults (not an error) if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expand()
	return cfg, nil
}

// LoadDefault loads the global config file and applies environment
// overrides.
func LoadDefault() (*Config, error) {
	cfg, err := Load(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// Save writes configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DefaultTopN < 1 || c.DefaultTopN > MaxTopN {
		return fmt.Errorf("default_top_n must be between 1 and %d, got %d", MaxTopN, c.DefaultTopN)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) expand() {
	c.EmbeddingsPath = ExpandPath(c.EmbeddingsPath)
	c.DataDir = ExpandPath(c.DataDir)
}

// DBPath returns the path to the SQLite mirror.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, CacheDir, DBFile)
}

// settable maps config keys to accessors for 'wv config get/set'.
var settable = map[string]struct {
	get func(*Config) string
	set func(*Config, string) error
}{
	"embeddings_path": {
		get: func(c *Config) string { return c.EmbeddingsPath },
		set: func(c *Config, v string) error { c.EmbeddingsPath = ExpandPath(v); return nil },
	},
	"data_dir": {
		get: func(c *Config) string { return c.DataDir },
		set: func(c *Config, v string) error { c.DataDir = ExpandPath(v); return nil },
	},
	"default_top_n": {
		get: func(c *Config) string { return strconv.Itoa(c.DefaultTopN) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("default_top_n must be an integer: %w", err)
			}
			c.DefaultTopN = n
			return nil
		},
	},
	"server.addr": {
		get: func(c *Config) string { return c.Server.Addr },
		set: func(c *Config, v string) error { c.Server.Addr = v; return nil },
	},
	"server.rate_limit": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Server.RateLimit, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("server.rate_limit must be a number: %w", err)
			}
			c.Server.RateLimit = f
			return nil
		},
	},
	"server.burst": {
		get: func(c *Config) string { return strconv.Itoa(c.Server.Burst) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("server.burst must be an integer: %w", err)
			}
			c.Server.Burst = n
			return nil
		},
	},
	"server.allowed_origins": {
		get: func(c *Config) string { return strings.Join(c.Server.AllowedOrigins, ",") },
		set: func(c *Config, v string) error {
			c.Server.AllowedOrigins = []string{}
			for _, o := range strings.Split(v, ",") {
				if o = strings.TrimSpace(o); o != "" {
					c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
				}
			}
			return nil
		},
	},
}

// Keys lists the settable config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settable))
	for k := range settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, error) {
	s, ok := settable[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return s.get(c), nil
}

// Set parses value into key and re-validates.
func (c *Config) Set(key, value string) error {
	s, ok := settable[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := s.set(c, value); err != nil {
		return err
	}
	return c.Validate()
}
