package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/config"
	"github.com/spf13/cobra"
)

// NewHistoryCmd prints or clears the per-category history lists.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "history [category...]",
		Short: "Show or clear recent quiz results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			signals, closeSignals, err := openSignals(cmd.Context(), cfg, app.NewID("cli"), "")
			if err != nil {
				return err
			}
			defer closeSignals()

			categories := args
			if len(categories) == 0 {
				categories = app.Categories
			}
			history := app.NewHistoryStore(signals, config.IntOr(cfg.Coordinator.HistoryCap, app.DefaultHistoryCap))
			if clearAll {
				history.Clear(cmd.Context(), categories...)
				fmt.Fprintf(cmd.OutOrStdout(), "cleared history for %d categories\n", len(categories))
				return nil
			}
			printHistory(cmd.Context(), cmd.OutOrStdout(), history, categories)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove the history of the given categories")
	return cmd
}

func printHistory(ctx context.Context, out io.Writer, history *app.HistoryStore, categories []string) {
	for _, category := range categories {
		entries := history.List(ctx, category)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s\n", category)
		for _, e := range entries {
			line := fmt.Sprintf("  %s  %-5s %d/%d correct (%d%%), answered %d",
				time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04"), e.Mode, e.Correct, e.Total, e.Percentage, e.Answered)
			if e.Reason != "" {
				line += "  [" + string(e.Reason) + "]"
			}
			fmt.Fprintln(out, line)
		}
	}
}
