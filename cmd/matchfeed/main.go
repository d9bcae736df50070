package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	serviceName       = "matchfeed"
	defaultConfigPath = "configs/production.yaml"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("matchfeed failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	serve := newServeCmd()
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Watch a live virtual-sports page and serve the current match",
		Long: `matchfeed keeps a headless browser on the target page, extracts the
current home and away teams every few seconds and serves the latest
observation as JSON on GET /.

Running without a subcommand is the same as 'matchfeed serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to config file (can be set via CONFIG_PATH env var)")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newExtractCmd(), newProbeCmd())
	return root
}

func createContext(parent context.Context, runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(parent, runFor)
	}
	return context.WithCancel(parent)
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
}
