package cli

import (
	"fmt"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/config"
	"github.com/spf13/cobra"
)

// NewStatusCmd reports live tabs and the current quiz lock without joining as a tab.
func NewStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show live tabs and the active quiz lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			origin := app.NewID("cli")
			signals, closeSignals, err := openSignals(ctx, cfg, origin, "")
			if err != nil {
				return err
			}
			defer closeSignals()

			timing := coordinatorTiming(cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "live tabs: %d\n", app.NewHeartbeatRegistry(signals, origin, timing).LiveTabCount(ctx))

			locks := app.NewLockManager(signals, timing)
			rec, ok := locks.Current(ctx)
			if !ok {
				fmt.Fprintln(out, "lock: none")
				return nil
			}
			state := "stale"
			if locks.IsActive(rec) {
				state = "active"
			}
			fmt.Fprintf(out, "lock: %s %s (session %s, tab %s, renewed %s ago)\n",
				state, rec.Category, rec.SessionID, rec.TabID, time.Since(time.UnixMilli(rec.Timestamp)).Round(time.Millisecond))
			return nil
		},
	}
}
