// Package sink fans published snapshots out to external consumers.
package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

// Sink receives snapshots. Write must respect ctx.
type Sink interface {
	Name() string
	Write(ctx context.Context, snap models.Snapshot) error
}

const DefaultWriteTimeout = 5 * time.Second

// Dispatcher delivers the latest snapshot to every sink on its own goroutine.
// Publishers never wait on sinks: when delivery falls behind, older snapshots
// are replaced by newer ones.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	mailbox chan models.Snapshot
	logger  *slog.Logger
}

func NewDispatcher(timeout time.Duration, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		mailbox: make(chan models.Snapshot, 1),
		logger:  logger,
	}
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Offer queues snap, replacing any snapshot not yet delivered. It never blocks,
// so it is safe as a state.Store hook.
func (d *Dispatcher) Offer(snap models.Snapshot) {
	for {
		select {
		case d.mailbox <- snap:
			return
		default:
		}
		select {
		case <-d.mailbox:
		default:
		}
	}
}

// Run delivers snapshots until ctx is cancelled, then flushes whatever is
// still pending.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			select {
			case snap := <-d.mailbox:
				d.deliver(context.WithoutCancel(ctx), snap)
			default:
			}
			return nil
		case snap := <-d.mailbox:
			d.deliver(ctx, snap)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, snap models.Snapshot) {
	for _, s := range d.sinks {
		wctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Write(wctx, snap)
		cancel()
		if err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			d.logger.Warn("Sink write failed", "sink", s.Name(), "status", snap.Status, "error", err)
		}
	}
}
