// Package cmd wires the CLI: the server command plus the client commands
// that drive a running server the same way the web dashboard does.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "graphaudit",
	Short: "GraphQL endpoint security testing",
	Long: `GraphAudit - GraphQL Endpoint Security Testing

Audits GraphQL endpoints for common misconfigurations, fingerprints the
engine behind them, and maps their schema through introspection.

USAGE:
  graphaudit serve                               # Start the dashboard and API server
  graphaudit scan https://api.example.com/graphql    # Audit + fingerprint + introspection
  graphaudit analyze https://api.example.com/graphql # Full analysis in one call
  graphaudit query https://api.example.com/graphql -q 'query { __typename }'
  graphaudit reports                             # Stored report history

Only test endpoints you are authorized to assess.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if log != nil {
		_ = log.Sync()
	}
	return err
}

func initConfig() error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	} else {
		viper.SetConfigName("graphaudit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/graphaudit")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config file: %w", err)
			}
		}
	}

	defaults := config.Default()
	cfg = &defaults
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	// The zero defaults on these flags mean "keep the configured value".
	if f := rootCmd.PersistentFlags().Lookup("timeout"); f != nil && f.Changed {
		if d, err := rootCmd.PersistentFlags().GetDuration("timeout"); err == nil && d > 0 {
			cfg.Scanner.Timeout = d
		}
	}
	if f := rootCmd.PersistentFlags().Lookup("rate-limit"); f != nil && f.Changed {
		if rps, err := rootCmd.PersistentFlags().GetFloat64("rate-limit"); err == nil && rps > 0 {
			cfg.Scanner.RequestsPerSecond = rps
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var err error
	log, err = logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

func init() {
	// Assigned here rather than in the composite literal: initConfig reads
	// rootCmd's flags, and referencing it there is an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}

	rootCmd.PersistentFlags().String("config", "", "config file path")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	// Logging configuration
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "GRAPHAUDIT_LOG_LEVEL")
	viper.BindEnv("logger.format", "GRAPHAUDIT_LOG_FORMAT")

	// Server address used by both serve and the client commands
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "graphaudit server URL for client commands")
	viper.BindPFlag("client.server_url", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindEnv("client.server_url", "GRAPHAUDIT_SERVER_URL")

	rootCmd.PersistentFlags().String("api-key", "", "API key for an auth-enabled server")
	viper.BindPFlag("server.api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindEnv("server.api_key", "GRAPHAUDIT_API_KEY")

	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	viper.BindPFlag("client.no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindEnv("client.no_color", "NO_COLOR")

	// Database configuration
	rootCmd.PersistentFlags().String("db-driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "graphaudit.db", "database connection string")
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	viper.BindEnv("database.dsn", "GRAPHAUDIT_DATABASE_DSN", "DATABASE_URL")

	// Redis cache
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for introspection caching (empty disables)")
	viper.BindPFlag("cache.addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	viper.BindEnv("cache.addr", "GRAPHAUDIT_REDIS_ADDR", "REDIS_URL")

	// Scanner behavior
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout against targets (0 uses config default)")
	rootCmd.PersistentFlags().Float64("rate-limit", 0, "requests per second against targets (0 uses config default)")
	viper.BindEnv("scanner.timeout", "GRAPHAUDIT_SCANNER_TIMEOUT")
	viper.BindEnv("scanner.requests_per_second", "GRAPHAUDIT_RATE_LIMIT")

	viper.SetDefault("telemetry.service_name", "graphaudit")
	viper.SetDefault("telemetry.exporter_type", "otlp")
	viper.SetDefault("logger.output_paths", []string{"stdout"})
}
