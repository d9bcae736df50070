package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
	"github.com/Vodeneev/matchfeed/internal/pkg/state"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
)

// ErrSessionLost ends the loop when its session can no longer be polled.
var ErrSessionLost = errors.New("session lost")

var errTickPanic = errors.New("tick panicked")

// Target is the session the loop polls.
type Target interface {
	ID() string
	Document() extract.Document
	// Done is closed when the session is unusable; Err then says why.
	Done() <-chan struct{}
	Err() error
}

// Extractor turns a document into a result.
type Extractor interface {
	Extract(ctx context.Context, doc extract.Document) (extract.Result, error)
}

// Config is the runtime config the poller needs.
type Config struct {
	Interval time.Duration
	// MaxConsecutiveFailures ends the loop after that many failed ticks in a row. 0 = never.
	MaxConsecutiveFailures int
}

// Poller runs extraction ticks against one session and publishes results.
type Poller struct {
	cfg       Config
	extractor Extractor
	store     *state.Store
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, extractor Extractor, store *state.Store, logger *slog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.MaxConsecutiveFailures < 0 {
		return nil, errors.New("poller: max consecutive failures must be >= 0")
	}
	if extractor == nil || store == nil {
		return nil, errors.New("poller: extractor and store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, extractor: extractor, store: store, logger: logger, now: time.Now}, nil
}

// Run ticks immediately and then every interval until ctx is cancelled or
// the session is lost. It returns ctx.Err() on cancellation and an error
// wrapping ErrSessionLost otherwise. Tick errors never end the loop while
// the session is alive, unless MaxConsecutiveFailures is reached.
func (p *Poller) Run(ctx context.Context, t Target) error {
	logger := p.logger.With("session_id", t.ID())
	logger.Info("Scan loop started", "interval", p.cfg.Interval)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		err := p.Tick(ctx, t)
		switch {
		case ctx.Err() != nil:
			logger.Info("Scan loop stopped")
			return ctx.Err()
		case t.Err() != nil:
			return fmt.Errorf("%w: %v", ErrSessionLost, t.Err())
		case err != nil:
			failures++
			if p.cfg.MaxConsecutiveFailures > 0 && failures >= p.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("%w: %d consecutive failed ticks, last: %v", ErrSessionLost, failures, err)
			}
		default:
			failures = 0
		}

		select {
		case <-ctx.Done():
			logger.Info("Scan loop stopped")
			return ctx.Err()
		case <-t.Done():
			return fmt.Errorf("%w: %v", ErrSessionLost, t.Err())
		case <-ticker.C:
		}
	}
}

// Tick performs exactly one extraction and publishes its outcome.
// Errors and panics from extraction are recovered and returned; the
// snapshot is left untouched in that case.
func (p *Poller) Tick(ctx context.Context, t Target) error {
	start := p.now()
	res, err := p.extract(ctx, t.Document())
	took := p.now().Sub(start)

	if err != nil {
		metrics.RecordTick(metrics.TickError, "", took, start)
		if ctx.Err() == nil {
			p.logger.Debug("Tick failed", "session_id", t.ID(), "error", err)
		}
		return err
	}
	// Nothing is published once the session is torn down.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if res.Found {
		now := p.now()
		prev := p.store.Read()
		next := models.Live(res.Pair.Home, res.Pair.Away, res.Strategy, t.ID(), now)
		p.store.Publish(next)
		metrics.RecordTick(metrics.TickFound, res.Strategy, took, now)
		if prev.Status != models.StatusLive || prev.MatchLabel() != next.MatchLabel() {
			p.logger.Info("Match updated", "match", next.MatchLabel(), "strategy", res.Strategy, "session_id", t.ID())
		}
		return nil
	}

	prev := p.store.Update(func(cur models.Snapshot) models.Snapshot {
		return cur.WithStatus(models.StatusScanning, models.DiagnosticNoTeams)
	})
	metrics.RecordTick(metrics.TickNotFound, "", took, start)
	p.logger.Debug("No teams found", "session_id", t.ID(), "last_match", prev.MatchLabel())
	return nil
}

func (p *Poller) extract(ctx context.Context, doc extract.Document) (res extract.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = extract.NotFound, fmt.Errorf("%w: %v", errTickPanic, r)
		}
	}()
	return p.extractor.Extract(ctx, doc)
}
