package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
)

var resourceTypes = map[string]network.ResourceType{
	"image":      network.ResourceTypeImage,
	"stylesheet": network.ResourceTypeStylesheet,
	"font":       network.ResourceTypeFont,
	"media":      network.ResourceTypeMedia,
	"other":      network.ResourceTypeOther,
}

// AssetFilter aborts sub-resource requests whose category is blocked.
// The policy is static; it keeps no per-request state.
type AssetFilter struct {
	blocked map[network.ResourceType]bool
}

// NewAssetFilter builds a filter from category names (image, stylesheet, font, media, other).
func NewAssetFilter(categories []string) (*AssetFilter, error) {
	f := &AssetFilter{blocked: make(map[network.ResourceType]bool, len(categories))}
	for _, c := range categories {
		rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(c))]
		if !ok {
			return nil, fmt.Errorf("unknown resource category %q", c)
		}
		f.blocked[rt] = true
	}
	return f, nil
}

// Blocks reports whether requests of type rt are aborted.
func (f *AssetFilter) Blocks(rt network.ResourceType) bool {
	return f.blocked[rt]
}

// Empty reports whether nothing is blocked.
func (f *AssetFilter) Empty() bool {
	return len(f.blocked) == 0
}

// Patterns returns one interception pattern per blocked category, so only
// requests the filter will abort are paused.
func (f *AssetFilter) Patterns() []*fetch.RequestPattern {
	types := make([]string, 0, len(f.blocked))
	for rt := range f.blocked {
		types = append(types, string(rt))
	}
	sort.Strings(types)

	patterns := make([]*fetch.RequestPattern, 0, len(types))
	for _, rt := range types {
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: network.ResourceType(rt),
			RequestStage: fetch.RequestStageRequest,
		})
	}
	return patterns
}

// Install registers the interception listener on the tab context and returns
// the action enabling interception. It must run before navigation.
func (f *AssetFilter) Install(ctx context.Context, logger *slog.Logger) chromedp.Action {
	if f.Empty() {
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// Listener callbacks must not issue commands synchronously.
		go f.resolve(ctx, paused, logger)
	})

	return fetch.Enable().WithPatterns(f.Patterns())
}

func (f *AssetFilter) resolve(ctx context.Context, ev *fetch.EventRequestPaused, logger *slog.Logger) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	ectx := cdp.WithExecutor(ctx, c.Target)

	var err error
	if f.Blocks(ev.ResourceType) {
		metrics.AssetsBlocked.Inc()
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(ectx)
	}
	if err != nil && ctx.Err() == nil {
		logger.Debug("Failed to resolve intercepted request", "resource_type", ev.ResourceType, "error", err)
	}
}
