package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/internal/tui"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status <config.toml>",
	Short: "Show a running daemon's queue and clone-lease state",
	Long: `status opens a terminal dashboard that polls a running octobot daemon's
GET /healthz endpoint and displays per-repository queue depth and clone
lease pressure. It connects to the port configured in config.toml unless
--addr overrides it; it has no effect on the daemon itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "",
		"override the daemon base URL (default: http://127.0.0.1:<server.port> from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}

	app := tui.NewApp(addr)
	return app.Run()
}
