package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"paisa-trader/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading desk",
		Long: `Start the full trading desk: quote feeds for every index, margin
and position feeds for every account, and option book builders for
every account/index pair. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if !utils.IsMarketOpen(utils.NowIST()) {
				output.Warning("Market is closed; feeds will poll but quotes may be stale")
			}

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}
			if err := desk.Start(ctx); err != nil {
				return err
			}
			output.Info("Desk running for accounts: %v", desk.Accounts())
			output.Dim("Press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-ctx.Done():
			}

			output.Println()
			output.Info("Shutting down...")
			desk.Stop()
			output.Success("Desk stopped")
			return nil
		},
	}
}
