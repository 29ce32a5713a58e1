package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"locationproxy/internal/config"
	"locationproxy/internal/gossip"
	"locationproxy/internal/logging"
	"locationproxy/internal/places"
	"locationproxy/internal/registry"
	"locationproxy/internal/server"
)

var placesAPIKeyFlag string

var serveCmd = &cobra.Command{
	Use:   "serve <server-name>",
	Short: "start this federation member",
	Long: `serve takes one positional argument, the server name, which must
be a key of the configured topology. Exit status is 0 on clean
shutdown, non-zero on startup failure (unknown name, port in use).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(args[0])
	},
}

func init() {
	serveCmd.Flags().StringVar(&placesAPIKeyFlag, "places-key", "", "override the configured Places API key")
}

func runServe(serverName string) error {
	cfg, err := config.Load(configPath, serverName)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if placesAPIKeyFlag != "" {
		cfg.Places.APIKey = placesAPIKeyFlag
	}

	sink, err := logging.New(cfg.Self, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("starting log sink: %w", err)
	}

	reg := registry.New()
	engine := gossip.New(cfg.Self, cfg, sink)
	placesClient := places.New(cfg.Places.BaseURL, cfg.Places.APIKey)
	srv := server.New(cfg.Self, cfg, reg, engine, placesClient, sink)

	if err := srv.Serve(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	waitForShutdown(srv)
	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM, then shuts the server down.
// Process termination is the only shutdown protocol.
func waitForShutdown(srv *server.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := srv.Shutdown(); err != nil {
		fmt.Fprintln(os.Stderr, "error during shutdown:", err)
	}
}
