package cli

import (
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate broker sessions",
		Long: `Authenticate every configured account with the broker (or one
account with --account). Session tokens are cached on disk and reused
until they expire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			factory := app.brokerFactory()

			accounts := app.Config.AccountKeys()
			if account != "" {
				accounts = []string{account}
			}

			results := make(map[string]string, len(accounts))
			for _, key := range accounts {
				b, err := factory(key)
				if err != nil {
					return err
				}
				if err := b.Login(ctx); err != nil {
					results[key] = "failed: " + err.Error()
					output.Error("✗ %s: %v", key, err)
					continue
				}
				results[key] = "ok"
				if !output.IsJSON() {
					output.Success("✓ %s logged in", key)
				}
			}
			if output.IsJSON() {
				return output.JSON(results)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "log in a single account")
	return cmd
}

func newSessionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show broker session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			factory := app.brokerFactory()

			status := make(map[string]bool, len(app.Config.Accounts))
			for _, key := range app.Config.AccountKeys() {
				b, err := factory(key)
				if err != nil {
					return err
				}
				status[key] = b.IsAuthenticated()
			}
			if output.IsJSON() {
				return output.JSON(status)
			}

			table := NewTable(output, "ACCOUNT", "SESSION")
			for key, ok := range status {
				state := output.Red("expired")
				if ok {
					state = output.Green("active")
				}
				table.AddRow(key, state)
			}
			table.Render()
			return nil
		},
	}
}
