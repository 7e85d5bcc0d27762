package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	CORS      CORSConfig      `koanf:"cors"`
	Forecast  ForecastConfig  `koanf:"forecast"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Predictor PredictorConfig `koanf:"predictor"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	Name        string `koanf:"name"`
	SSLMode     string `koanf:"sslmode"`
	SQLitePath  string `koanf:"sqlite_path"`
	DataDir     string `koanf:"data_dir"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// GetURL is the pgx connection string used by the ingester.
func (d DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CORSConfig struct {
	AllowedOrigins string `koanf:"allowed_origins"`
}

type ForecastConfig struct {
	APIKey   string        `koanf:"api_key"`
	Model    string        `koanf:"model"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type LogConfig struct {
	Mode string `koanf:"mode"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type PredictorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type IngestConfig struct {
	SourceURL string        `koanf:"source_url"`
	Interval  time.Duration `koanf:"interval"`
	Sink      string        `koanf:"sink"`
	MQTTURL   string        `koanf:"mqtt_url"`
	MQTTTopic string        `koanf:"mqtt_topic"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Database: DatabaseConfig{
			Driver:     DriverPostgres,
			Host:       "localhost",
			Port:       5432,
			User:       "crs",
			Password:   "crs_dev_password",
			Name:       "crs",
			SSLMode:    "disable",
			SQLitePath: "data/crs.db",
			DataDir:    "data",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		CORS:  CORSConfig{AllowedOrigins: "*"},
		Forecast: ForecastConfig{
			Model:    "gemini-2.0-flash",
			BaseURL:  "https://generativelanguage.googleapis.com",
			Timeout:  60 * time.Second,
			CacheTTL: 30 * time.Minute,
		},
		Log:       LogConfig{Mode: "dev"},
		Metrics:   MetricsConfig{Addr: ":9090"},
		Predictor: PredictorConfig{Interval: time.Hour},
		Ingest: IngestConfig{
			SourceURL: "https://www.canada.ca/content/dam/ircc/documents/json/ee_rounds_4_en.json",
			Interval:  24 * time.Hour,
			Sink:      DriverPostgres,
			MQTTTopic: "crs/draws",
		},
	}
}

var envMappings = map[string]string{
	"server_port":          "server.port",
	"gin_mode":             "server.mode",
	"db_driver":            "database.driver",
	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_user":              "database.user",
	"db_password":          "database.password",
	"db_name":              "database.name",
	"db_sslmode":           "database.sslmode",
	"sqlite_path":          "database.sqlite_path",
	"data_dir":             "database.data_dir",
	"db_auto_migrate":      "database.auto_migrate",
	"redis_host":           "redis.host",
	"redis_port":           "redis.port",
	"redis_password":       "redis.password",
	"redis_db":             "redis.db",
	"cors_allowed_origins": "cors.allowed_origins",
	"gemini_api_key":       "forecast.api_key",
	"gemini_model":         "forecast.model",
	"gemini_base_url":      "forecast.base_url",
	"forecast_timeout":     "forecast.timeout",
	"prediction_cache_ttl": "forecast.cache_ttl",
	"log_mode":             "log.mode",
	"metrics_addr":         "metrics.addr",
	"prediction_interval":  "predictor.interval",
	"ircc_draws_url":       "ingest.source_url",
	"ingest_interval":      "ingest.interval",
	"ingest_sink":          "ingest.sink",
	"mqtt_url":             "ingest.mqtt_url",
	"mqtt_topic":           "ingest.mqtt_topic",
}

// envTransformFunc maps flat environment names onto config keys. Unknown
// variables return "" and are skipped by the provider.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// LoadConfig layers defaults, an optional YAML file and the environment,
// in increasing precedence.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want postgres, sqlite or file", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Forecast.Timeout <= 0 {
		return fmt.Errorf("invalid FORECAST_TIMEOUT: %s", c.Forecast.Timeout)
	}
	switch c.Ingest.Sink {
	case DriverPostgres, DriverFile:
	default:
		return fmt.Errorf("invalid INGEST_SINK %q: want postgres or file", c.Ingest.Sink)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
