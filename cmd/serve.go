package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/api"
	"github.com/kestrelsec/graphaudit/internal/cache"
	"github.com/kestrelsec/graphaudit/internal/database"
	"github.com/kestrelsec/graphaudit/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"dashboard"},
	Short:   "Start the web dashboard and API server",
	Long: `Start the HTTP server that hosts the dashboard at / and the scan
endpoints under /api/. Analysis reports are persisted to the configured
database and listed at /api/reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tel, err := telemetry.New(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("initialize telemetry: %w", err)
		}
		defer func() { _ = tel.Close() }()

		introspectionCache, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			log.Warnw("Introspection cache unavailable, continuing without it",
				"addr", cfg.Cache.Addr,
				"error", err,
			)
			introspectionCache = nil
		}
		defer func() {
			if introspectionCache != nil {
				_ = introspectionCache.Close()
			}
		}()

		store, err := database.NewStore(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("initialize report store: %w", err)
		}
		defer func() { _ = store.Close() }()

		an, err := analyzer.New(cfg.Scanner, log, tel, introspectionCache)
		if err != nil {
			return fmt.Errorf("initialize analyzer: %w", err)
		}

		server := api.New(cfg.Server, an, store, log)
		return server.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serveCmd.Flags().Bool("auth", false, "require a Bearer API key on the scan endpoints")
	viper.BindPFlag("server.enable_auth", serveCmd.Flags().Lookup("auth"))

	serveCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		return nil
	}

	rootCmd.AddCommand(serveCmd)
}
