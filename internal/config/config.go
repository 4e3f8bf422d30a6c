// Package config handles bmp configuration: a TOML file, overridden by
// environment variables, overridden in turn by command-line flags.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultSQLitePath is the database file used when sqlite has no DSN.
const DefaultSQLitePath = "bmp.db"

// Config represents the bmp configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Limits   LimitsConfig   `toml:"limits"`
}

// DatabaseConfig selects the backing store. DSN wins over the individual
// postgres connection fields when both are set.
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// BasePath prefixes every resource route, e.g. "/bmp-api".
	BasePath string `toml:"base_path"`
	// RateLimitPerMinute caps requests per client IP; 0 disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	Burst              int `toml:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LimitsConfig sets default page sizes. A value below 1 returns every row.
type LimitsConfig struct {
	DefaultLimit int            `toml:"default_limit"`
	Resources    map[string]int `toml:"resources"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Host:    "localhost",
			Port:    5432,
			Name:    "gltg_bmp",
			User:    "postgres",
			SSLMode: "disable",
		},
		Server: ServerConfig{
			Addr:               ":8000",
			BasePath:           "/bmp-api",
			RateLimitPerMinute: 600,
			Burst:              50,
		},
		Log:    LogConfig{Level: "INFO", Format: "text"},
		Limits: LimitsConfig{DefaultLimit: 25},
	}
}

// LoadPath loads path, or the default location when path is empty, then
// applies environment overrides. An explicitly named file must exist; a
// missing default file leaves the defaults in place.
func LoadPath(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	} else if def := DefaultPath(); fileExists(def) {
		if err := decodeFile(def, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom loads a specific file over the defaults without consulting the
// environment.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ApplyEnv overrides values from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("DB_HOST", &c.Database.Host)
	str("DB_NAME", &c.Database.Name)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("API_CONTEXT", &c.Server.BasePath)
	str("API_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %q is not a port number", v)
		}
		c.Database.Port = port
	}
	if v, ok := lookup("API_PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("API_PORT: %q is not a port number", v)
		}
		host, _, err := net.SplitHostPort(c.Server.Addr)
		if err != nil {
			host = ""
		}
		c.Server.Addr = net.JoinHostPort(host, v)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or pgx, got %q", c.Database.Driver)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /, got %q", c.Server.BasePath)
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("server rate limits must not be negative")
	}
	return nil
}

// DataSource returns the driver name and DSN to open. For postgres without an
// explicit DSN, a URL is assembled from the connection fields.
func (c *Config) DataSource() (driver, dsn string) {
	db := c.Database
	if db.Driver == "sqlite" {
		if db.DSN == "" {
			return "sqlite", DefaultSQLitePath
		}
		return "sqlite", db.DSN
	}
	if db.DSN != "" {
		return "pgx", db.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return "pgx", u.String()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/bmp/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "bmp", "config.toml")
		if fileExists(xdgPath) {
			return xdgPath
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "bmp", "config.toml")
	}
	return filepath.Join(".", "config.toml")
}
