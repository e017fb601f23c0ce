/*
config.go - Server configuration

PURPOSE:
  Collects every runtime setting in one struct. Values are layered:
  1. Defaults (Default())
  2. Optional TOML file
  3. LEDGER_* environment variables
  4. Command-line flags (applied by cmd/server)

EXAMPLE FILE:
  [server]
  port = 8080

  [store]
  driver = "sqlite"
  path = "./data/ledger.db"

  [ledger]
  default_currency = "INR"
  dedup_policy = "replay"

  [log]
  level = "info"
  format = "json"

SEE ALSO:
  - cmd/server/main.go: Flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Ledger LedgerConfig `toml:"ledger"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type LedgerConfig struct {
	DefaultCurrency string `toml:"default_currency"`
	DedupPolicy     string `toml:"dedup_policy"`
	SeedDefinitions bool   `toml:"seed_definitions"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "ledger.db",
		},
		Ledger: LedgerConfig{
			DefaultCurrency: "INR",
			DedupPolicy:     "replay",
			SeedDefinitions: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load returns defaults overlaid with the TOML file at path (if path is
// non-empty) and then with LEDGER_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LEDGER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("LEDGER_STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := lookup("LEDGER_STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := lookup("LEDGER_DEFAULT_CURRENCY"); ok {
		c.Ledger.DefaultCurrency = v
	}
	if v, ok := lookup("LEDGER_DEDUP_POLICY"); ok {
		c.Ledger.DedupPolicy = v
	}
	if v, ok := lookup("LEDGER_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LEDGER_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Ledger.DedupPolicy {
	case "replay", "strict":
	default:
		return fmt.Errorf("unknown dedup policy %q", c.Ledger.DedupPolicy)
	}
	if strings.TrimSpace(c.Ledger.DefaultCurrency) == "" {
		return fmt.Errorf("ledger.default_currency must not be empty")
	}
	return nil
}
