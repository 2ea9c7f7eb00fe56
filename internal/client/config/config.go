package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the storefront reference client.
//
// Fields:
//   - ServerURL: base URL of the identity service HTTP API.
//   - DatabasePath: SQLite file that keeps the session credentials.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	DatabasePath   string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.DatabasePath = "storefront-client.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig builds a Config from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then the JSON file named by -c/-config in args,
// then the flags in args. Later sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
