package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogomassis/rinha-dispatch/internal/env"
	"github.com/diogomassis/rinha-dispatch/internal/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "Payment dispatch intermediary",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*env.EnvironmentVariables, zerolog.Logger, error) {
	cfg, err := env.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment(), os.Stdout).
		With().Str("instance", cfg.InstanceName).Logger()
	return cfg, log, nil
}
