package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/garagereg/dataport/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve starts the HTTP API used by the GarageReg backend:

  POST /export           export, payload inline up to the configured limit
  POST /export/download  export, payload streamed as a file
  POST /import           import a payload (format, strategy, org_id, dry_run)
  POST /validate         structural validation only
  POST /compare          diff a payload against the database
  POST /test-round-trip  round-trip verification
  GET  /healthz          liveness and database check

Example:
  dataport serve --config dataport.yaml
  dataport serve --addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default from config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := connectApp(ctx, "", "")
	if err != nil {
		return err
	}
	defer app.close()

	if serveAddr != "" {
		app.cfg.Server.Addr = serveAddr
	}

	server, err := httpapi.NewServer(app.cfg, app.log, app.reg, app.store, app.manager.DB, Version)
	if err != nil {
		return fmt.Errorf("failed to build http server: %w", err)
	}

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
