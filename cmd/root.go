package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "octobot [config file]",
	Short: "Webhook-driven chat, backport, and issue-tracker integration daemon",
	Long: `octobot listens for hosting-platform webhooks and reacts to them: it
posts chat notifications, opens backport pull requests by cherry-picking
merged commits onto release branches, and drives a JIRA-like issue
tracker's state through a pull request's lifecycle.

Get started:
  octobot serve <config.toml>   Run the webhook daemon
  octobot status <config.toml>  Inspect a running daemon's queue/lease state

Running 'octobot <config.toml>' with no subcommand is shorthand for
'octobot serve <config.toml>'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runServe(cmd, args)
	},
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(serveCmd, statusCmd)
}
