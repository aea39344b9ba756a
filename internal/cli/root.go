package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "geoseek",
		Short: "CLI tool for the geoseek session coordinator",
		Long: `geoseek is a CLI tool for interacting with the geoseek session coordinator.

It can create, inspect and list sessions over the JSON API, and join a session
over the realtime endpoint to play from the terminal.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Create HTTP client
			client = NewClient(cfg.ServerURL)
			if cfg.Verbose {
				client.trace = cmd.ErrOrStderr()
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: GEOSEEK_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newSummariesCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
