// Package cmd defines the CLI commands for the jobalert executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobalert-crawler/internal/config"
	"github.com/JakeFAU/jobalert-crawler/internal/server"
)

var cfgFile string

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfg *config.Config) (*server.App, error) {
	return server.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobalert",
		Short: "Scrapes government job listings and notifies subscribers of new postings.",
		Long: `jobalert refreshes the freejobalert.com listing categories on a schedule,
archives each snapshot, tracks which postings are new, and emails or pushes
them to subscribers. It also serves the latest snapshots over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRefreshCmd())
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
