package config

import (
	"fmt"
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	EnableCORS bool   `mapstructure:"enable_cors"`
	APIKey     string `mapstructure:"api_key"`
	EnableAuth bool   `mapstructure:"enable_auth"`
}

type ScannerConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstSize         int           `mapstructure:"burst_size"`
	Concurrency       int           `mapstructure:"concurrency"`
	BlockPrivateIPs   bool          `mapstructure:"block_private_ips"`
}

type CacheConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Default returns a configuration suitable for running against a local
// sqlite database without telemetry or caching.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "graphaudit.db",
			MaxConnections:  10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			EnableCORS: true,
		},
		Scanner: ScannerConfig{
			Timeout:           40 * time.Second,
			UserAgent:         "graphaudit/1.0",
			RequestsPerSecond: 10.0,
			BurstSize:         5,
			Concurrency:       4,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "graphaudit",
			ExporterType: "otlp",
			SampleRate:   0.1,
		},
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scanner.Timeout < 0 {
		return fmt.Errorf("scanner timeout must not be negative")
	}
	if c.Scanner.RequestsPerSecond < 0 {
		return fmt.Errorf("scanner requests_per_second must not be negative")
	}
	if c.Server.EnableAuth && c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required when auth is enabled")
	}
	return nil
}
