package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultAddr     = ":8080"
	DefaultDBDriver = "sqlite"
)

// Config holds the daemon configuration, loaded from an optional TOML file
// with environment variables taking precedence.
type Config struct {
	Addr           string   `toml:"addr"`
	DataDir        string   `toml:"data_dir"`
	DBDriver       string   `toml:"db_driver"` // "sqlite" or "postgres"
	DBURL          string   `toml:"db_url"`    // postgres DSN; ignored for sqlite
	JWTSecret      string   `toml:"jwt_secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DefaultDataDir returns ~/.msgd.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".msgd")
}

// DefaultPath returns the default config file location inside the data dir.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load reads the TOML file at path (missing file is not an error), loads a
// .env file from the working directory if present, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	// Best effort, matching how the rest of the platform loads .env files.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported db_driver %q (want sqlite or postgres)", cfg.DBDriver)
	}
	if cfg.DBDriver == "postgres" && cfg.DBURL == "" {
		return nil, fmt.Errorf("db_driver is postgres but no db_url / DB_URL set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret / JWT_ACCESS_SECRET is required")
	}
	return &cfg, nil
}

// Save writes the config to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MSGD_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("MSGD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MSGD_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		c.DBURL = v
	}
	if v := os.Getenv("JWT_ACCESS_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("MSGD_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitOrigins(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.DBDriver == "" {
		c.DBDriver = DefaultDBDriver
	}
}

func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
