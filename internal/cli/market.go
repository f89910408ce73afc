package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
	"paisa-trader/internal/trading"
	"paisa-trader/pkg/utils"
)

// bookWaitTimeout bounds how long one-shot commands wait for the
// first option book to materialize after desk start.
const bookWaitTimeout = 30 * time.Second

func newExpiryCmd(app *App) *cobra.Command {
	var index string

	cmd := &cobra.Command{
		Use:   "expiry",
		Short: "Show resolved expiry dates",
		Long:  "Resolve the active expiry for every index (or one with --index), accounting for the monthly roll, weekends and exchange holidays.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			holidays := trading.NewHolidaySet(app.Config.Holidays)
			today := utils.NowIST()

			keys := indexKeys(app, index)
			results := make(map[string]string, len(keys))
			table := NewTable(output, "INDEX", "EXPIRY", "WEEKDAY")
			for _, key := range keys {
				cfg, err := app.Config.Index(key)
				if err != nil {
					return err
				}
				expiry, err := trading.ResolveExpiry(cfg, holidays, today)
				if err != nil {
					return err
				}
				results[key] = expiry.Format("2006-01-02")
				table.AddRow(key, expiry.Format("02 Jan 2006"), expiry.Weekday().String())
			}
			if output.IsJSON() {
				return output.JSON(results)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", "", "show a single index")
	return cmd
}

func newBookCmd(app *App) *cobra.Command {
	var account, index string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Show the option book",
		Long: `Show the current option book for one account and index: the priced
chain around the money with per-contract purchasable quantity and the
order batches one buy would fire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}
			if err := desk.Start(ctx); err != nil {
				return err
			}
			defer desk.Stop()

			entries, err := waitForBook(ctx, desk, account, index)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}

			output.Bold("%s option book — %s", index, account)
			table := NewTable(output, "SYMBOL", "LTP", "QTY", "BATCHES", "MARGIN")
			for _, e := range entries {
				table.AddRow(
					e.Contract.Symbol,
					fmt.Sprintf("%.2f", e.Contract.LastRate),
					fmt.Sprintf("%d", e.Quantity),
					fmt.Sprintf("%d", len(e.Batches)),
					FormatIndianCurrency(e.Margin),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (required)")
	cmd.Flags().StringVarP(&index, "index", "i", "NIFTY", "index symbol")
	cmd.MarkFlagRequired("account")
	return cmd
}

// waitForBook polls until the book builder publishes its first book.
func waitForBook(ctx context.Context, desk *trading.Desk, account, index string) ([]models.BookEntry, error) {
	deadline := time.Now().Add(bookWaitTimeout)
	for {
		entries, err := desk.OptionBook(ctx, account, index)
		if err == nil {
			return entries, nil
		}
		if !apperrors.Is(err, apperrors.ErrInsufficientSnapshot) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, apperrors.Wrapf(apperrors.ErrInsufficientSnapshot,
				"option book for %s/%s not ready after %s", account, index, bookWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func indexKeys(app *App, only string) []string {
	if only != "" {
		return []string{only}
	}
	keys := make([]string, 0, len(app.Config.Indices))
	for key := range app.Config.Indices {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
