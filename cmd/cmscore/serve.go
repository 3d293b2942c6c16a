package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/cmscore/bootstrap"
	"github.com/artpar/cmscore/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content API server",
	Long: `Start the cmscore HTTP server.

The server will:
  - Load configuration from cmscore.yaml (or --config)
  - Or load configuration from CMSCORE_* environment variables
  - Open the content store (sqlite or memory)
  - Serve the REST API under /api/v1

When a config file is used, edits to logging.level and the item page
sizes apply without a restart. SIGHUP forces a reload.

Environment variables:
  CMSCORE_DATABASE_DRIVER   - sqlite or memory (default: sqlite)
  CMSCORE_DATABASE_DSN      - Database path (default: cmscore.db)
  CMSCORE_SERVER_PORT       - Server port (default: 8080)
  CMSCORE_LOG_LEVEL         - Log level: debug, info, warn, error
  CMSCORE_WIRE_DEFAULT_FORMAT - json or cbor

Examples:
  cmscore serve
  cmscore serve --config /etc/cmscore/config.yaml
  cmscore serve --hot-reload=false
  CMSCORE_DATABASE_DRIVER=memory cmscore serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	opts := bootstrap.Options{Version: version}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		app, err = bootstrap.NewWithHotReload(cfgFile, opts)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}
		if !hasConfigFile {
			fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		}
		app, err = bootstrap.NewWithOptions(cfg, opts)
	}
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
