package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# paisa-trader configuration

[trading]
mode = "live"       # "live" or "paper"
chain_depth = 6     # strikes per option chain
intraday = true

[feeds]
quote_interval = "2s"
margin_interval = "2s"
position_interval = "2s"
book_interval = "1s"

[margin]
buffer = 5000.0
placeholder = 10000.0
maintenance_start = "11:55"
maintenance_end = "15:45"

[instruments]
master_url = "https://openapi.5paisa.com/VendorsAPI/Service1.svc/ScripMaster/segment/All"
master_age = "48h"

# Index overrides. Built-in defaults cover NIFTY, BANKNIFTY, FINNIFTY
# and SENSEX; uncomment to change or add an index.
#
# [indices.NIFTY]
# symbol = "NIFTY"
# weekly_expiry = "Thursday"
# monthly_expiry = "Thursday"
# lot_size = 25
# max_lot_size = 720
# max_multiplier = 5
# step_size = 50
# instrument_token = 26000
# exchange = "N"
# exchange_identifier = "Nifty 50"

# Holiday overrides (YYYYMMDD). Built-in defaults cover the current year.
# holidays = ["20260101", "20260126"]
`

const credentialsTemplate = `# paisa-trader account credentials
# One [accounts.<name>] block per brokerage account.

# [accounts.primary]
# app_name = ""
# app_source = ""
# user_id = ""
# password = ""
# user_key = ""
# encryption_key = ""
# client_code = ""
# totp_secret = ""
# pin = ""
`

func writeTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func writeTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	// Credentials live here, keep it private.
	return os.WriteFile(path, []byte(content), 0600)
}
