package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/pipeline"
)

// refresher is the subset of the pipeline the refresh command drives.
type refresher interface {
	RefreshCategory(ctx context.Context, category string) pipeline.Result
	RefreshAll(ctx context.Context) []pipeline.Result
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [category...]",
		Short: "Runs one refresh pass and prints the results as JSON",
		Long: `Refreshes the named categories, or every configured category when none
are given, then exits. Exits non-zero if any category failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// One-shot runs never start the background scheduler.
			cfg.Scheduler.Enabled = false
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := app.Close(context.Background()); cerr != nil {
					app.Logger().Warn("close failed", zap.Error(cerr))
				}
			}()
			return runRefresh(cmd.Context(), app.Service(), args, cmd.OutOrStdout())
		},
	}
}

func runRefresh(ctx context.Context, svc refresher, categories []string, out io.Writer) error {
	var results []pipeline.Result
	if len(categories) == 0 {
		results = svc.RefreshAll(ctx)
	} else {
		for _, c := range categories {
			results = append(results, svc.RefreshCategory(ctx, c))
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d categories failed", failed, len(results))
	}
	return nil
}
