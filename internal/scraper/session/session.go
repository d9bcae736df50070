// Package session owns the lifecycle of one headless Chrome session
// navigated to the target page.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
)

var (
	// ErrNavigation wraps failures to reach the target page.
	ErrNavigation = errors.New("navigation failed")
	// ErrTargetCrashed is the session cause when the page's renderer dies.
	ErrTargetCrashed = errors.New("page renderer crashed")
	// ErrTargetDetached is the session cause when the DevTools target goes away.
	ErrTargetDetached = errors.New("page detached")
	// ErrClosed is the session cause after Close.
	ErrClosed = errors.New("session closed")
)

// Options configures how sessions are launched.
type Options struct {
	URL               string
	NavigationTimeout time.Duration
	Headless          bool
	ExecPath          string
	RemoteURL         string
	UserAgent         string
	ViewportWidth     int64
	ViewportHeight    int64
	Flags             []string
	BlockedResources  []string
}

// OptionsFromConfig maps the target and browser sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:               cfg.Target.URL,
		NavigationTimeout: cfg.Target.NavigationTimeout,
		Headless:          cfg.Browser.IsHeadless(),
		ExecPath:          cfg.Browser.ExecPath,
		RemoteURL:         cfg.Browser.RemoteURL,
		UserAgent:         cfg.Browser.UserAgent,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		Flags:             cfg.Browser.Flags,
		BlockedResources:  cfg.Browser.BlockedResources,
	}
}

// Manager launches sessions. It holds no session state itself.
type Manager struct {
	opts   Options
	filter *AssetFilter
	logger *slog.Logger
}

// NewManager validates opts and builds the asset filter.
func NewManager(opts Options, logger *slog.Logger) (*Manager, error) {
	if opts.URL == "" {
		return nil, errors.New("session: target URL required")
	}
	if opts.NavigationTimeout <= 0 {
		return nil, errors.New("session: navigation timeout must be > 0")
	}
	filter, err := NewAssetFilter(opts.BlockedResources)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{opts: opts, filter: filter, logger: logger}, nil
}

// Open launches a browser, configures it and navigates to the target URL.
// On error nothing is left running.
func (m *Manager) Open(ctx context.Context) (*Browser, error) {
	id := uuid.NewString()
	logger := m.logger.With("session_id", id)

	sessCtx, cancelSess := context.WithCancelCause(ctx)

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if m.opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(sessCtx, m.opts.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(sessCtx, m.allocatorOptions()...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, v ...interface{}) {
			logger.Debug("chromedp", "message", fmt.Sprintf(format, v...))
		}),
		chromedp.WithErrorf(func(format string, v ...interface{}) {
			logger.Debug("chromedp error", "message", fmt.Sprintf(format, v...))
		}),
	)

	b := &Browser{
		id:          id,
		tab:         tabCtx,
		sess:        sessCtx,
		cancelSess:  cancelSess,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		remote:      m.opts.RemoteURL != "",
		logger:      logger,
	}

	logger.Info("Launching browser", "remote", b.remote)
	// The first Run allocates the browser and ties it to tabCtx, not to the
	// navigation timeout below.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, b.watchTarget)

	setup := []chromedp.Action{
		chromedp.EmulateViewport(m.opts.ViewportWidth, m.opts.ViewportHeight),
		m.filter.Install(tabCtx, logger),
	}
	if b.remote && m.opts.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(m.opts.UserAgent))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("configure session: %w", err)
	}

	logger.Info("Navigating to target", "url", m.opts.URL, "timeout", m.opts.NavigationTimeout)
	navCtx, cancelNav := context.WithTimeout(tabCtx, m.opts.NavigationTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, navigateDOMReady(m.opts.URL)); err != nil {
		_ = b.Close()
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: timeout of %s exceeded loading %s", ErrNavigation, m.opts.NavigationTimeout, m.opts.URL)
		}
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	logger.Info("Page loaded")
	return b, nil
}

func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("single-process", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if m.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.opts.UserAgent))
	}
	if m.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.opts.ExecPath))
	}
	for name, value := range parseFlags(m.opts.Flags) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlags turns "name" and "name=value" entries (leading dashes optional)
// into chrome flags.
func parseFlags(flags []string) map[string]interface{} {
	out := make(map[string]interface{}, len(flags))
	for _, f := range flags {
		f = strings.TrimLeft(strings.TrimSpace(f), "-")
		if f == "" {
			continue
		}
		if name, value, ok := strings.Cut(f, "="); ok {
			out[name] = value
		} else {
			out[f] = true
		}
	}
	return out
}

// navigateDOMReady navigates and returns once DOMContentLoaded fires.
// chromedp.Navigate waits for the load event, which pages with endless
// background polling may never reach.
func navigateDOMReady(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ready := make(chan struct{})
		var once sync.Once
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				once.Do(func() { close(ready) })
			}
		})

		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("page load error %s", res.ErrorText)
		}

		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Browser is one live session.
type Browser struct {
	id          string
	tab         context.Context
	sess        context.Context
	cancelSess  context.CancelCauseFunc
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	remote      bool
	logger      *slog.Logger

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ID returns the session id used in logs and snapshots.
func (b *Browser) ID() string {
	return b.id
}

// Document returns DOM access for extraction.
func (b *Browser) Document() extract.Document {
	return liveDocument{tab: b.tab}
}

// Done is closed when the session is no longer usable.
func (b *Browser) Done() <-chan struct{} {
	return b.tab.Done()
}

// Err explains why Done is closed, or returns nil while the session is usable.
func (b *Browser) Err() error {
	if b.sess.Err() != nil {
		return context.Cause(b.sess)
	}
	return b.tab.Err()
}

func (b *Browser) watchTarget(ev interface{}) {
	// Closing the tab detaches it; that is not a failure.
	if b.closing.Load() {
		return
	}
	switch ev := ev.(type) {
	case *inspector.EventTargetCrashed:
		b.logger.Warn("Page renderer crashed")
		b.cancelSess(ErrTargetCrashed)
	case *inspector.EventDetached:
		b.logger.Warn("Page detached", "reason", ev.Reason)
		b.cancelSess(fmt.Errorf("%w: %s", ErrTargetDetached, ev.Reason))
	}
}

// Close terminates the tab and, for launched browsers, the browser process.
// Safe to call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.closing.Store(true)
		if !b.remote && b.tab.Err() == nil {
			b.closeErr = chromedp.Cancel(b.tab)
		}
		b.cancelTab()
		b.cancelAlloc()
		b.cancelSess(ErrClosed)
		b.logger.Info("Session closed")
	})
	return b.closeErr
}
