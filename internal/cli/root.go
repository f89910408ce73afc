// Package cli provides the command-line interface for the trading application.
package cli

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paisa-trader/internal/broker"
	"paisa-trader/internal/config"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/logging"
	"paisa-trader/internal/store"
	"paisa-trader/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.SnapshotStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Snapshots persist across invocations so one-shot commands can
	// read books built by a running desk.
	dbPath := filepath.Join(config.DefaultConfigDir(), "trader.db")
	snapStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("falling back to in-memory snapshot store")
		app.Store = store.NewMemoryStore()
	} else {
		app.Store = snapStore
		logger.Debug().Str("path", dbPath).Msg("SQLite snapshot store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Multi-account index options trading CLI for NSE/BSE",
		Long: `Trader is a multi-account index options trading CLI for the Indian market.

It resolves weekly and monthly expiries, prices option chains around the
money, sizes orders against available margin and executes them across
all configured 5paisa accounts concurrently.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if cmd.Flags().Changed("intraday") {
				intraday, _ := cmd.Flags().GetBool("intraday")
				app.Config.Trading.Intraday = intraday
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paisa-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("intraday", cfg.Trading.Intraday, "place orders as intraday (use --intraday=false for delivery)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newSessionCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newExpiryCmd(app))
	rootCmd.AddCommand(newBookCmd(app))
	rootCmd.AddCommand(newBuyCmd(app))
	rootCmd.AddCommand(newSellAllCmd(app))
	rootCmd.AddCommand(newCancelAllCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newMarginCmd(app))

	return rootCmd
}

// brokerFactory builds live or paper broker sessions per the
// configured trading mode.
func (a *App) brokerFactory() trading.BrokerFactory {
	if a.Config.IsPaperMode() {
		return func(account string) (broker.Broker, error) {
			return broker.NewPaperBroker(account), nil
		}
	}
	return func(account string) (broker.Broker, error) {
		acct, err := a.Config.Account(account)
		if err != nil {
			return nil, err
		}
		return broker.NewFivePaisaBroker(broker.FivePaisaConfig{
			AccountKey:    account,
			AppName:       acct.AppName,
			AppSource:     acct.AppSource,
			UserID:        acct.UserID,
			Password:      acct.Password,
			UserKey:       acct.UserKey,
			EncryptionKey: acct.EncryptionKey,
			ClientCode:    acct.ClientCode,
			TOTPSecret:    acct.TOTPSecret,
			PIN:           acct.PIN,
		}), nil
	}
}

// loadMaster ensures a fresh scrip master is on disk and loads it.
func (a *App) loadMaster(ctx context.Context) (*instruments.Master, error) {
	path := filepath.Join(config.DefaultConfigDir(), "scrip-master.csv")
	if err := instruments.Download(ctx, a.Config.Instruments.MasterURL, path, a.Config.Instruments.MasterAge); err != nil {
		return nil, err
	}
	master, err := instruments.Load(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Int("scrips", master.Len()).Msg("scrip master loaded")
	return master, nil
}

// newDesk builds a logged-in desk over all configured accounts.
func (a *App) newDesk(ctx context.Context) (*trading.Desk, error) {
	master, err := a.loadMaster(ctx)
	if err != nil {
		return nil, err
	}
	desk, err := trading.NewDesk(a.Config, a.Store, master, a.brokerFactory(), a.Logger)
	if err != nil {
		return nil, err
	}
	if err := desk.Login(ctx); err != nil {
		return nil, err
	}
	return desk, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Paisa Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:         %s\n", cfg.Trading.Mode)
	output.Printf("  Chain Depth:  %d\n", cfg.Trading.ChainDepth)
	output.Printf("  Intraday:     %v\n", cfg.Trading.Intraday)
	output.Println()

	output.Bold("Margin Policy")
	output.Printf("  Buffer:       %s\n", FormatIndianCurrency(cfg.Margin.Buffer))
	output.Printf("  Placeholder:  %s\n", FormatIndianCurrency(cfg.Margin.Placeholder))
	output.Printf("  Maintenance:  %s - %s IST\n", cfg.Margin.MaintenanceStart, cfg.Margin.MaintenanceEnd)
	output.Println()

	output.Bold("Indices")
	for key, spec := range cfg.Indices {
		output.Printf("  %-10s lot %d, step %d, freeze %d\n",
			key, spec.LotSize, spec.StepSize, spec.LotSize*spec.MaxLotSize)
	}
	output.Println()

	output.Bold("Accounts")
	for _, key := range cfg.AccountKeys() {
		output.Printf("  %s\n", key)
	}
	return nil
}
