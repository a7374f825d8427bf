package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bnema/parcel/internal/config"
	"github.com/bnema/parcel/internal/httpserve"
	"github.com/bnema/parcel/internal/ingest"
	"github.com/bnema/parcel/internal/metrics"
	"github.com/bnema/parcel/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the registry server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return err
	}

	level, _ := log.ParseLevel(cfg.Server.LogLevel)
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	log.SetLevel(level)

	// A failed migration aborts startup here; individual requests never
	// see a half-migrated schema.
	st, err := store.Open(cfg.Store.DataDir, cfg.Store.MaxConns)
	if err != nil {
		logger.Error("failed to open release store", "error", err)
		return err
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	svc := ingest.New(st, metrics.NewIngest(registry), logger)
	srv := httpserve.New(cfg, svc, registry, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
