// Package supervisor keeps one browser session and its scan loop alive,
// reopening after a cooldown whenever either fails.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
	"github.com/Vodeneev/matchfeed/internal/pkg/state"
	"github.com/Vodeneev/matchfeed/internal/scraper/poller"
)

// State is the supervisor's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is an open browser session.
type Session interface {
	poller.Target
	Close() error
}

// Opener opens sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(ctx context.Context) (Session, error)

func (f OpenFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// Loop polls an open session until it is lost or ctx is cancelled.
type Loop interface {
	Run(ctx context.Context, t poller.Target) error
}

type Config struct {
	RestartCooldown time.Duration
}

type Supervisor struct {
	cfg    Config
	opener Opener
	loop   Loop
	store  *state.Store
	logger *slog.Logger

	state atomic.Int32

	// After waits out the cooldown. Replaced in tests.
	After func(time.Duration) <-chan time.Time
}

func New(cfg Config, opener Opener, loop Loop, store *state.Store, logger *slog.Logger) (*Supervisor, error) {
	if cfg.RestartCooldown <= 0 {
		return nil, errors.New("supervisor: restart cooldown must be > 0")
	}
	if opener == nil || loop == nil || store == nil {
		return nil, errors.New("supervisor: opener, loop and store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:    cfg,
		opener: opener,
		loop:   loop,
		store:  store,
		logger: logger,
		After:  time.After,
	}, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	metrics.SupervisorState.Set(float64(st))
}

// Run opens a session, polls it, and on any failure publishes Crashed and
// retries after the cooldown. It returns only when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateIdle)

	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, attempt)
		if ctx.Err() != nil {
			s.logger.Info("Supervisor stopped")
			return nil
		}
		if err == nil {
			err = errors.New("scan loop ended")
		}

		s.setState(StateFailed)
		s.store.Update(func(cur models.Snapshot) models.Snapshot {
			return cur.WithStatus(models.StatusCrashed, err.Error())
		})
		s.logger.Error("Session failed, restarting after cooldown",
			"error", err, "attempt", attempt, "cooldown", s.cfg.RestartCooldown)

		select {
		case <-ctx.Done():
			s.logger.Info("Supervisor stopped")
			return nil
		case <-s.After(s.cfg.RestartCooldown):
		}
	}
}

// runOnce covers Starting and Running for one session. The returned error
// is the diagnostic to publish.
func (s *Supervisor) runOnce(ctx context.Context, attempt int) error {
	s.setState(StateStarting)
	s.store.Update(func(cur models.Snapshot) models.Snapshot {
		return cur.WithStatus(models.StatusConnecting, cur.Diagnostic)
	})
	s.logger.Info("Opening session", "attempt", attempt)

	sess, err := s.opener.Open(ctx)
	if err != nil {
		metrics.SessionOpens.WithLabelValues("error").Inc()
		return err
	}
	metrics.SessionOpens.WithLabelValues("ok").Inc()

	s.setState(StateRunning)
	s.logger.Info("Session running", "session_id", sess.ID())

	// The loop has returned before the session closes, so no tick can
	// publish after teardown.
	loopErr := s.loop.Run(ctx, sess)
	if cerr := sess.Close(); cerr != nil {
		s.logger.Debug("Session close failed", "session_id", sess.ID(), "error", cerr)
	}
	if ctx.Err() == nil {
		metrics.SessionsLost.Inc()
	}
	return loopErr
}
