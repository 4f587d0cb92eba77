package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "test-secret")
	t.Setenv("DB_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %q, want test-secret", cfg.JWTSecret)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("MSGD_ADDR", "")

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	want := &Config{
		Addr:           ":9090",
		DataDir:        "/tmp/msgd-test",
		DBDriver:       "sqlite",
		JWTSecret:      "file-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Addr != want.Addr {
		t.Errorf("Addr = %q, want %q", got.Addr, want.Addr)
	}
	if got.JWTSecret != want.JWTSecret {
		t.Errorf("JWTSecret = %q, want %q", got.JWTSecret, want.JWTSecret)
	}
	if len(got.AllowedOrigins) != 1 || got.AllowedOrigins[0] != want.AllowedOrigins[0] {
		t.Errorf("AllowedOrigins = %v, want %v", got.AllowedOrigins, want.AllowedOrigins)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{Addr: ":9090", JWTSecret: "file-secret"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MSGD_ADDR", ":7070")
	t.Setenv("JWT_ACCESS_SECRET", "env-secret")
	t.Setenv("MSGD_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070", cfg.Addr)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("JWTSecret = %q, want env-secret", cfg.JWTSecret)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "s")
	t.Setenv("MSGD_DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for postgres driver without DSN")
	}
}

func TestRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "s")
	t.Setenv("MSGD_DB_DRIVER", "mysql")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestEnsureDirs(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join(t.TempDir(), "data")}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.LogDir()); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}
