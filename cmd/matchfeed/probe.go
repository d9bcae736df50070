package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/logging"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
	"github.com/Vodeneev/matchfeed/internal/scraper/session"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Open one live session, extract once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			// stdout carries the result
			logger := logging.NewLogger(os.Stderr, nil, level).With("service", serviceName)

			mgr, err := session.NewManager(session.OptionsFromConfig(cfg), logger)
			if err != nil {
				return err
			}

			ctx, cancel := createContext(cmd.Context(), 0)
			defer cancel()
			setupSignalHandler(ctx, cancel)

			b, err := mgr.Open(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := extract.New(extract.Strategies(cfg.Extract)...).Extract(ctx, b.Document())
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}
