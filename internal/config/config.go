// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig            `mapstructure:"trading"`
	Feeds       FeedConfig               `mapstructure:"feeds"`
	Margin      MarginConfig             `mapstructure:"margin"`
	Instruments InstrumentsConfig        `mapstructure:"instruments"`
	Indices     map[string]IndexSpec     `mapstructure:"indices"`
	Holidays    []string                 `mapstructure:"holidays"` // YYYYMMDD
	Accounts    map[string]AccountConfig `mapstructure:"-"`        // Loaded separately
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode       string `mapstructure:"mode"`        // "live", "paper"
	ChainDepth int    `mapstructure:"chain_depth"` // strikes per option chain
	Intraday   bool   `mapstructure:"intraday"`
}

// FeedConfig holds poll intervals for the background producers.
type FeedConfig struct {
	QuoteInterval    time.Duration `mapstructure:"quote_interval"`
	MarginInterval   time.Duration `mapstructure:"margin_interval"`
	PositionInterval time.Duration `mapstructure:"position_interval"`
	BookInterval     time.Duration `mapstructure:"book_interval"`
}

// MarginConfig holds margin sizing policy.
type MarginConfig struct {
	Buffer           float64 `mapstructure:"buffer"`            // held back from available margin
	Placeholder      float64 `mapstructure:"placeholder"`       // published during the maintenance window
	MaintenanceStart string  `mapstructure:"maintenance_start"` // HH:MM IST
	MaintenanceEnd   string  `mapstructure:"maintenance_end"`   // HH:MM IST
}

// InstrumentsConfig holds scrip master settings.
type InstrumentsConfig struct {
	MasterURL string        `mapstructure:"master_url"`
	MasterAge time.Duration `mapstructure:"master_age"` // redownload after this age
}

// IndexSpec is the on-disk form of an index configuration.
type IndexSpec struct {
	Symbol             string `mapstructure:"symbol"`
	WeeklyExpiry       string `mapstructure:"weekly_expiry"`
	MonthlyExpiry      string `mapstructure:"monthly_expiry"`
	LotSize            int    `mapstructure:"lot_size"`
	MaxLotSize         int    `mapstructure:"max_lot_size"`
	MaxMultiplier      int    `mapstructure:"max_multiplier"`
	StepSize           int    `mapstructure:"step_size"`
	InstrumentToken    uint32 `mapstructure:"instrument_token"`
	Exchange           string `mapstructure:"exchange"`
	ExchangeIdentifier string `mapstructure:"exchange_identifier"`
}

// AccountConfig holds 5paisa credentials for one account.
type AccountConfig struct {
	AppName       string `mapstructure:"app_name"`
	AppSource     string `mapstructure:"app_source"`
	UserID        string `mapstructure:"user_id"`
	Password      string `mapstructure:"password"`
	UserKey       string `mapstructure:"user_key"`
	EncryptionKey string `mapstructure:"encryption_key"`
	ClientCode    string `mapstructure:"client_code"`
	TOTPSecret    string `mapstructure:"totp_secret"`
	PIN           string `mapstructure:"pin"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paisa-trader"
	}
	return filepath.Join(home, ".config", "paisa-trader")
}

// DefaultIndices returns the built-in F&O index table.
func DefaultIndices() map[string]IndexSpec {
	return map[string]IndexSpec{
		"NIFTY": {
			Symbol: "NIFTY", WeeklyExpiry: "Thursday", MonthlyExpiry: "Thursday",
			LotSize: 25, MaxLotSize: 720, MaxMultiplier: 5, StepSize: 50,
			InstrumentToken: 26000, Exchange: "N", ExchangeIdentifier: "Nifty 50",
		},
		"BANKNIFTY": {
			Symbol: "BANKNIFTY", WeeklyExpiry: "Wednesday", MonthlyExpiry: "Thursday",
			LotSize: 15, MaxLotSize: 600, MaxMultiplier: 5, StepSize: 100,
			InstrumentToken: 26009, Exchange: "N", ExchangeIdentifier: "Nifty Bank",
		},
		"FINNIFTY": {
			Symbol: "FINNIFTY", WeeklyExpiry: "Tuesday", MonthlyExpiry: "Tuesday",
			LotSize: 40, MaxLotSize: 450, MaxMultiplier: 5, StepSize: 50,
			InstrumentToken: 26037, Exchange: "N", ExchangeIdentifier: "Nifty Fin Service",
		},
		"SENSEX": {
			Symbol: "SENSEX", WeeklyExpiry: "Friday", MonthlyExpiry: "Friday",
			LotSize: 10, MaxLotSize: 1000, MaxMultiplier: 5, StepSize: 100,
			InstrumentToken: 26037, Exchange: "B", ExchangeIdentifier: "SENSEX",
		},
	}
}

// DefaultHolidays returns the built-in NSE/BSE holiday calendar.
func DefaultHolidays() []string {
	return []string{
		"20260101", // New Year
		"20260126", // Republic Day
		"20260217", // Maha Shivaratri
		"20260304", // Holi
		"20260403", // Good Friday
		"20260414", // Dr. Ambedkar Jayanti
		"20260501", // Maharashtra Day
		"20260528", // Bakri Eid
		"20260815", // Independence Day
		"20260914", // Ganesh Chaturthi
		"20261002", // Mahatma Gandhi Jayanti
		"20261020", // Dussehra
		"20261108", // Diwali-Laxmi Pujan
		"20261110", // Diwali-Balipratipada
		"20261124", // Gurunanak Jayanti
		"20261225", // Christmas
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadAccounts(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("trading.mode", "live")
	v.SetDefault("trading.chain_depth", 6)
	v.SetDefault("trading.intraday", true)
	v.SetDefault("feeds.quote_interval", 2*time.Second)
	v.SetDefault("feeds.margin_interval", 2*time.Second)
	v.SetDefault("feeds.position_interval", 2*time.Second)
	v.SetDefault("feeds.book_interval", time.Second)
	v.SetDefault("margin.buffer", 5000.0)
	v.SetDefault("margin.placeholder", 10000.0)
	v.SetDefault("margin.maintenance_start", "11:55")
	v.SetDefault("margin.maintenance_end", "15:45")
	v.SetDefault("instruments.master_url",
		"https://openapi.5paisa.com/VendorsAPI/Service1.svc/ScripMaster/segment/All")
	v.SetDefault("instruments.master_age", 48*time.Hour)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := writeTemplateConfig(configDir); err != nil {
			return err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return err
	}

	if len(cfg.Indices) == 0 {
		cfg.Indices = DefaultIndices()
	}
	if len(cfg.Holidays) == 0 {
		cfg.Holidays = DefaultHolidays()
	}
	return nil
}

func loadAccounts(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg.Accounts = map[string]AccountConfig{}
			return writeTemplateCredentials(configDir)
		}
		return err
	}

	accounts := map[string]AccountConfig{}
	if err := v.UnmarshalKey("accounts", &accounts); err != nil {
		return err
	}
	cfg.Accounts = accounts
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAISA_TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("PAISA_SCRIP_MASTER_URL"); v != "" {
		cfg.Instruments.MasterURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Trading.ChainDepth <= 0 {
		return fmt.Errorf("chain_depth must be positive")
	}
	for key, spec := range c.Indices {
		if _, err := parseWeekday(spec.WeeklyExpiry); err != nil {
			return fmt.Errorf("index %s: %w", key, err)
		}
		if _, err := parseWeekday(spec.MonthlyExpiry); err != nil {
			return fmt.Errorf("index %s: %w", key, err)
		}
		if spec.LotSize <= 0 || spec.MaxLotSize <= 0 || spec.StepSize <= 0 {
			return fmt.Errorf("index %s: lot_size, max_lot_size and step_size must be positive", key)
		}
	}
	for _, h := range c.Holidays {
		if _, err := time.Parse("20060102", h); err != nil {
			return fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}

// Index returns the resolved configuration for an index key.
func (c *Config) Index(key string) (models.IndexConfig, error) {
	spec, ok := c.Indices[key]
	if !ok {
		return models.IndexConfig{}, apperrors.Wrapf(apperrors.ErrInvalidIndex, "index %q", key)
	}
	return spec.toModel(), nil
}

// IndexConfigs returns all configured indices keyed by symbol.
func (c *Config) IndexConfigs() map[string]models.IndexConfig {
	out := make(map[string]models.IndexConfig, len(c.Indices))
	for key, spec := range c.Indices {
		out[key] = spec.toModel()
	}
	return out
}

// Account returns the credentials for an account key.
func (c *Config) Account(key string) (AccountConfig, error) {
	acct, ok := c.Accounts[key]
	if !ok {
		return AccountConfig{}, apperrors.Wrapf(apperrors.ErrAccountNotFound, "account %q", key)
	}
	return acct, nil
}

// AccountKeys returns the configured account names in arbitrary order.
func (c *Config) AccountKeys() []string {
	keys := make([]string, 0, len(c.Accounts))
	for k := range c.Accounts {
		keys = append(keys, k)
	}
	return keys
}

func (s IndexSpec) toModel() models.IndexConfig {
	weekly, _ := parseWeekday(s.WeeklyExpiry)
	monthly, _ := parseWeekday(s.MonthlyExpiry)
	return models.IndexConfig{
		Symbol:             s.Symbol,
		WeeklyExpiry:       weekly,
		MonthlyExpiry:      monthly,
		LotSize:            s.LotSize,
		MaxLotSize:         s.MaxLotSize,
		MaxMultiplier:      s.MaxMultiplier,
		StepSize:           s.StepSize,
		InstrumentToken:    s.InstrumentToken,
		Exchange:           models.Exchange(s.Exchange),
		ExchangeIdentifier: s.ExchangeIdentifier,
	}
}

func parseWeekday(name string) (time.Weekday, error) {
	switch name {
	case "Sunday":
		return time.Sunday, nil
	case "Monday":
		return time.Monday, nil
	case "Tuesday":
		return time.Tuesday, nil
	case "Wednesday":
		return time.Wednesday, nil
	case "Thursday":
		return time.Thursday, nil
	case "Friday":
		return time.Friday, nil
	case "Saturday":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", name)
}
