package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/health"
	"github.com/Vodeneev/matchfeed/internal/pkg/logging"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
	"github.com/Vodeneev/matchfeed/internal/pkg/notify"
	"github.com/Vodeneev/matchfeed/internal/pkg/sink"
	"github.com/Vodeneev/matchfeed/internal/pkg/state"
	"github.com/Vodeneev/matchfeed/internal/pkg/storage"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
	"github.com/Vodeneev/matchfeed/internal/scraper/poller"
	"github.com/Vodeneev/matchfeed/internal/scraper/session"
	"github.com/Vodeneev/matchfeed/internal/scraper/supervisor"
)

func newServeCmd() *cobra.Command {
	var runFor time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the observation engine and the query endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), runFor)
		},
	}
	cmd.Flags().DurationVar(&runFor, "run-for", 0, "Auto-stop after duration (e.g. 10s, 1m). 0 = run until SIGINT/SIGTERM")
	return cmd
}

func runServe(parent context.Context, runFor time.Duration) error {
	slog.Info("Loading config", "path", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := logging.SetupLogger(&cfg.Logging, serviceName)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()
	logger.Info("Config loaded", "target", cfg.Target.URL, "poll_interval", cfg.Poller.Interval, "restart_cooldown", cfg.Supervisor.RestartCooldown)

	ctx, cancel := createContext(parent, runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	store := state.NewStore(models.Initial())
	sinks := openSinks(ctx, cfg, store, logger)
	defer sinks.close()

	sup, err := buildSupervisor(cfg, store, logger)
	if err != nil {
		return err
	}

	router := health.NewRouter(health.Options{
		Store:           store,
		SupervisorState: func() string { return sup.State().String() },
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return health.Run(gctx, health.AddrFor(cfg.Health.Port), serviceName, router, cfg.Health.ReadHeaderTimeout)
	})
	g.Go(func() error {
		return sup.Run(gctx)
	})
	for _, run := range sinks.runners {
		g.Go(func() error { return run(gctx) })
	}

	err = g.Wait()
	logger.Info("matchfeed stopped")
	return err
}

func buildSupervisor(cfg *config.Config, store *state.Store, logger *slog.Logger) (*supervisor.Supervisor, error) {
	mgr, err := session.NewManager(session.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	ex := extract.New(extract.Strategies(cfg.Extract)...)
	logger.Info("Extraction strategies", "order", ex.Names())

	loop, err := poller.New(poller.Config{
		Interval:               cfg.Poller.Interval,
		MaxConsecutiveFailures: cfg.Poller.MaxConsecutiveFailures,
	}, ex, store, logger)
	if err != nil {
		return nil, err
	}

	return supervisor.New(supervisor.Config{RestartCooldown: cfg.Supervisor.RestartCooldown}, openSession(mgr), loop, store, logger)
}

// openSession adapts the manager so a failed open never yields a non-nil
// Session holding a nil *Browser.
func openSession(mgr *session.Manager) supervisor.OpenFunc {
	return func(ctx context.Context) (supervisor.Session, error) {
		b, err := mgr.Open(ctx)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

type sinkSet struct {
	runners []func(context.Context) error
	closers []func() error
}

func (s *sinkSet) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("Failed to close sink", "error", err)
		}
	}
}

// openSinks connects every configured sink. A sink that cannot connect is
// logged and skipped; the engine runs without it.
func openSinks(ctx context.Context, cfg *config.Config, store *state.Store, logger *slog.Logger) *sinkSet {
	set := &sinkSet{}
	var sinks []sink.Sink

	if cfg.Checkpoint.Driver != "" {
		cp, err := storage.NewCheckpoint(ctx, cfg.Checkpoint)
		if err != nil {
			logger.Error("Checkpoint disabled", "error", err)
		} else {
			if saved, ok, err := cp.Load(ctx); err != nil {
				logger.Warn("Failed to load checkpoint", "error", err)
			} else if ok {
				store.Publish(storage.Restore(saved))
				logger.Info("Restored last known match", "match", saved.MatchLabel())
			}
			sinks = append(sinks, cp)
			set.closers = append(set.closers, cp.Close)
		}
	}

	if cfg.Redis.Addr != "" {
		mirror, err := storage.NewRedisMirror(ctx, cfg.Redis)
		if err != nil {
			logger.Error("Redis mirror disabled", "error", err)
		} else {
			sinks = append(sinks, mirror)
			set.closers = append(set.closers, mirror.Close)
		}
	}

	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram, logger)
		if err != nil {
			logger.Error("Telegram notifications disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
			set.runners = append(set.runners, tg.Run)
		}
	}

	if len(sinks) == 0 {
		return set
	}
	d := sink.NewDispatcher(sink.DefaultWriteTimeout, logger, sinks...)
	store.Subscribe(d.Offer)
	set.runners = append(set.runners, d.Run)
	logger.Info("Snapshot sinks enabled", "count", d.Len())
	return set
}
