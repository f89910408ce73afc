package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
	"paisa-trader/internal/trading"
)

func newBuyCmd(app *App) *cobra.Command {
	var account, index, optType string
	var strike int

	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy an option contract at full margin size",
		Long: `Fire the pre-built order batches for one contract from the option
book. The quantity was sized against the latest margin snapshot; legs
and batches respect the exchange freeze limits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			ot, err := parseOptionType(optType)
			if err != nil {
				return err
			}

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}
			if err := desk.Start(ctx); err != nil {
				return err
			}
			defer desk.Stop()

			if _, err := waitForBook(ctx, desk, account, index); err != nil {
				return err
			}
			report, err := desk.SubmitBuy(ctx, account, index, strike, ot)
			if err != nil {
				return err
			}
			return renderReport(output, report)
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (required)")
	cmd.Flags().StringVarP(&index, "index", "i", "NIFTY", "index symbol")
	cmd.Flags().IntVarP(&strike, "strike", "s", 0, "strike price (required)")
	cmd.Flags().StringVarP(&optType, "type", "t", "CE", "option type (CE or PE)")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("strike")
	return cmd
}

func newSellAllCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "sell-all",
		Short: "Flatten all open positions",
		Long: `Sell every open position on the account (or all accounts). Oversold
positions are bought back so the account ends flat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}

			for _, key := range targetAccounts(desk, account) {
				report, err := desk.SubmitSellAll(ctx, key)
				if err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Bold("Account %s", key)
				}
				if len(report.Intents) == 0 {
					output.Info("No open positions")
					continue
				}
				if err := renderReport(output, report); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (default: all accounts)")
	return cmd
}

func newCancelAllCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel all pending orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}

			for _, key := range targetAccounts(desk, account) {
				report, err := desk.SubmitCancelAll(ctx, key)
				if err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Bold("Account %s", key)
				}
				if len(report.Intents) == 0 {
					output.Info("No pending orders")
					continue
				}
				if err := renderReport(output, report); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (default: all accounts)")
	return cmd
}

func newPositionsCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}

			all := make(map[string][]models.Position)
			for _, key := range targetAccounts(desk, account) {
				positions, err := desk.Positions(ctx, key)
				if err != nil {
					return err
				}
				all[key] = positions
			}
			if output.IsJSON() {
				return output.JSON(all)
			}

			for key, positions := range all {
				output.Bold("Account %s", key)
				if len(positions) == 0 {
					output.Dim("  no positions")
					continue
				}
				table := NewTable(output, "SCRIP", "NET", "BUY", "SELL")
				for _, p := range positions {
					net := fmt.Sprintf("%d", p.NetQty)
					if p.NetQty > 0 {
						net = output.Green(net)
					} else if p.NetQty < 0 {
						net = output.Red(net)
					}
					table.AddRow(p.ScripName, net,
						fmt.Sprintf("%d", p.BuyQty), fmt.Sprintf("%d", p.SellQty))
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (default: all accounts)")
	return cmd
}

func newOrdersCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show the broker order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}

			all := make(map[string][]models.OrderRecord)
			for _, key := range targetAccounts(desk, account) {
				orders, err := desk.Orders(ctx, key)
				if err != nil {
					return err
				}
				all[key] = orders
			}
			if output.IsJSON() {
				return output.JSON(all)
			}

			for key, orders := range all {
				output.Bold("Account %s", key)
				if len(orders) == 0 {
					output.Dim("  no orders")
					continue
				}
				table := NewTable(output, "EXCH ORDER", "SCRIP", "QTY", "TRADED", "STATUS")
				for _, o := range orders {
					status := o.OrderStatus
					if o.Cancellable() {
						status = output.Yellow(status)
					}
					table.AddRow(o.ExchOrderID, o.ScripName,
						fmt.Sprintf("%d", o.Quantity), fmt.Sprintf("%d", o.TradedQty), status)
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (default: all accounts)")
	return cmd
}

func newMarginCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "margin",
		Short: "Show available margin",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			desk, err := app.newDesk(ctx)
			if err != nil {
				return err
			}

			margins := make(map[string]float64)
			for _, key := range targetAccounts(desk, account) {
				margin, err := desk.AvailableMargin(ctx, key)
				if err != nil {
					return err
				}
				margins[key] = margin
			}
			if output.IsJSON() {
				return output.JSON(margins)
			}

			table := NewTable(output, "ACCOUNT", "MARGIN", "SIZING MARGIN")
			for key, margin := range margins {
				sizing := margin - app.Config.Margin.Buffer
				if sizing < 0 {
					sizing = 0
				}
				table.AddRow(key, FormatIndianCurrency(margin), FormatIndianCurrency(sizing))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account key (default: all accounts)")
	return cmd
}

func renderReport(output *Output, report *trading.ExecutionReport) error {
	if output.IsJSON() {
		return output.JSON(report)
	}

	table := NewTable(output, "INTENT", "ACTION", "LEGS", "QTY", "STATE")
	for _, intent := range report.Intents {
		var qty int
		for _, leg := range intent.Legs {
			qty += leg.Quantity
		}
		state := string(intent.State)
		switch intent.State {
		case trading.IntentAcknowledged:
			state = output.Green(state)
		case trading.IntentRejected:
			state = output.Red(state)
		}
		table.AddRow(shortID(intent.ID), intent.Action,
			fmt.Sprintf("%d", len(intent.Legs)), fmt.Sprintf("%d", qty), state)
	}
	table.Render()

	if rejected := report.Rejected(); len(rejected) > 0 {
		for _, intent := range rejected {
			output.Error("✗ %s: %s", shortID(intent.ID), intent.Error)
		}
		return fmt.Errorf("%d of %d intents rejected", len(rejected), len(report.Intents))
	}
	output.Success("✓ All %d intents acknowledged", len(report.Intents))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func parseOptionType(s string) (models.OptionType, error) {
	switch strings.ToUpper(s) {
	case "CE":
		return models.OptionCall, nil
	case "PE":
		return models.OptionPut, nil
	}
	return "", apperrors.Wrapf(apperrors.ErrUnresolvedContract, "invalid option type %q", s)
}

func targetAccounts(desk *trading.Desk, only string) []string {
	if only != "" {
		return []string{only}
	}
	return desk.Accounts()
}
