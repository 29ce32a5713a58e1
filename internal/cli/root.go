// Package cli is the command-line surface for locationproxy: a thin
// main.go defers to cobra.Command trees defined here.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "locationproxy",
	Short: "A federated location-proxy server",
	Long: `locationproxy runs one member of a federation of location-proxy
servers. Mobile clients report their location to any one server; other
clients ask any server for points-of-interest near a client's last
reported location. Servers gossip location updates across a fixed
partial-mesh topology so every server converges.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a topology config file (defaults to the built-in reference topology)")
	rootCmd.AddCommand(serveCmd, topologyCmd)
}

// Execute runs the root command, exiting non-zero on startup failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
