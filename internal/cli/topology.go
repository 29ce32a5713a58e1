package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"locationproxy/internal/config"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "print the configured peer adjacency and ports",
	Long: `topology is an operational read-only view, not a protocol
command: it never touches the Registry or the wire protocol, it only
prints the static configuration every server starts from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUnvalidated(configPath, "")
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		names := make([]string, 0, len(cfg.Servers))
		for name := range cfg.Servers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			peers := cfg.Peers(name)
			fmt.Printf("%-10s port=%-6d peers=%v\n", name, cfg.Port(name), peers)
		}
		return nil
	},
}
