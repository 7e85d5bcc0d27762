package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range envMappings {
		t.Setenv(strings.ToUpper(key), "")
		os.Unsetenv(strings.ToUpper(key))
	}
	t.Setenv(ConfigPathEnvVar, "")
	os.Unsetenv(ConfigPathEnvVar)
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "crs",
		Password: "secret",
		Name:     "crs",
		SSLMode:  "disable",
	}
	dsn := db.GetDSN()

	expected := "host=localhost port=5432 user=crs password=secret dbname=crs sslmode=disable"
	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestGetURL(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "admin",
		Password: "pw",
		Name:     "draws",
		SSLMode:  "require",
	}
	want := "postgres://admin:pw@db.example.com:5433/draws?sslmode=require"
	if got := db.GetURL(); got != want {
		t.Errorf("GetURL() = %q, want %q", got, want)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	if got := r.Addr(); got != "cache:6380" {
		t.Errorf("Addr() = %q, want %q", got, "cache:6380")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"GEMINI_API_KEY", "forecast.api_key"},
		{"forecast_timeout", "forecast.timeout"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want 6379", cfg.Redis.Port)
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Errorf("CORS.AllowedOrigins = %q, want %q", cfg.CORS.AllowedOrigins, "*")
	}
	if cfg.Forecast.Timeout != 60*time.Second {
		t.Errorf("Forecast.Timeout = %s, want 60s", cfg.Forecast.Timeout)
	}
	if cfg.Forecast.APIKey != "" {
		t.Errorf("Forecast.APIKey = %q, want empty", cfg.Forecast.APIKey)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("DB_HOST", "db.prod")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("FORECAST_TIMEOUT", "15s")
	t.Setenv("GEMINI_API_KEY", "k-123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.prod" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.prod")
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Forecast.Timeout != 15*time.Second {
		t.Errorf("Forecast.Timeout = %s, want 15s", cfg.Forecast.Timeout)
	}
	if cfg.Forecast.APIKey != "k-123" {
		t.Errorf("Forecast.APIKey = %q, want %q", cfg.Forecast.APIKey, "k-123")
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := "server:\n  port: 7000\ndatabase:\n  driver: file\n  data_dir: /srv/data\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SERVER_PORT", "7100")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("env should override file: Server.Port = %d, want 7100", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverFile {
		t.Errorf("Database.Driver = %q, want file", cfg.Database.Driver)
	}
	if cfg.Database.DataDir != "/srv/data" {
		t.Errorf("Database.DataDir = %q, want /srv/data", cfg.Database.DataDir)
	}
}

func TestLoadConfigInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "invalid")

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for invalid SERVER_PORT")
	}
}

func TestLoadConfigInvalidDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mongo")

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for unsupported DB_DRIVER")
	}
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		if err := defaultConfig().Validate(); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
	})

	t.Run("zero timeout rejected", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Forecast.Timeout = 0
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for zero forecast timeout")
		}
	})

	t.Run("unknown ingest sink rejected", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Ingest.Sink = "s3"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown sink")
		}
	})
}
