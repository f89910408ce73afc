package main

import (
	"context"
	"fmt"
	"os"

	"paisa-trader/internal/cli"
	"paisa-trader/internal/config"
	"paisa-trader/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	configDir := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configDir = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
