package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchfeed/internal/pkg/models"
	"github.com/Vodeneev/matchfeed/internal/pkg/state"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
)

type fakeTarget struct {
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{done: make(chan struct{})}
}

func (t *fakeTarget) ID() string                 { return "sess-1" }
func (t *fakeTarget) Document() extract.Document { return nil }
func (t *fakeTarget) Done() <-chan struct{}      { return t.done }

func (t *fakeTarget) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *fakeTarget) kill(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

type step struct {
	res   extract.Result
	err   error
	panic bool
}

// scriptedExtractor plays steps in order and repeats the last one.
type scriptedExtractor struct {
	mu     sync.Mutex
	steps  []step
	calls  int
	onCall func(n int)
}

func (e *scriptedExtractor) Extract(_ context.Context, _ extract.Document) (extract.Result, error) {
	e.mu.Lock()
	i := e.calls
	e.calls++
	s := e.steps[min(i, len(e.steps)-1)]
	hook := e.onCall
	e.mu.Unlock()

	if hook != nil {
		hook(i + 1)
	}
	if s.panic {
		panic("boom")
	}
	return s.res, s.err
}

func (e *scriptedExtractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func found(home, away string) step {
	return step{res: extract.Result{Found: true, Pair: extract.Pair{Home: home, Away: away}, Strategy: "primary"}}
}

var notFound = step{res: extract.NotFound}

func newPoller(t *testing.T, ex Extractor, store *state.Store, maxFailures int) *Poller {
	t.Helper()
	p, err := New(Config{Interval: time.Millisecond, MaxConsecutiveFailures: maxFailures}, ex, store, nil)
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	store := state.NewStore(models.Initial())
	ex := &scriptedExtractor{steps: []step{notFound}}

	_, err := New(Config{}, ex, store, nil)
	assert.Error(t, err)
	_, err = New(Config{Interval: time.Second, MaxConsecutiveFailures: -1}, ex, store, nil)
	assert.Error(t, err)
	_, err = New(Config{Interval: time.Second}, nil, store, nil)
	assert.Error(t, err)
	_, err = New(Config{Interval: time.Second}, ex, nil, nil)
	assert.Error(t, err)
}

func TestTick_FoundPublishesLive(t *testing.T) {
	store := state.NewStore(models.Initial())
	p := newPoller(t, &scriptedExtractor{steps: []step{found("Arsenal", "Chelsea")}}, store, 0)

	require.NoError(t, p.Tick(context.Background(), newFakeTarget()))

	snap := store.Read()
	assert.Equal(t, models.StatusLive, snap.Status)
	assert.Equal(t, "Arsenal vs Chelsea", snap.MatchLabel())
	assert.Equal(t, "primary", snap.Strategy)
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Empty(t, snap.Diagnostic)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestTick_NotFoundKeepsTeams(t *testing.T) {
	store := state.NewStore(models.Initial())
	ex := &scriptedExtractor{steps: []step{found("Arsenal", "Chelsea"), notFound}}
	p := newPoller(t, ex, store, 0)
	target := newFakeTarget()

	require.NoError(t, p.Tick(context.Background(), target))
	live := store.Read()
	require.NoError(t, p.Tick(context.Background(), target))

	snap := store.Read()
	assert.Equal(t, models.StatusScanning, snap.Status)
	assert.Equal(t, models.DiagnosticNoTeams, snap.Diagnostic)
	assert.Equal(t, "Arsenal", snap.HomeTeam)
	assert.Equal(t, "Chelsea", snap.AwayTeam)
	assert.Equal(t, live.LastUpdated, snap.LastUpdated)
}

func TestTick_NotFoundBeforeAnyMatch(t *testing.T) {
	store := state.NewStore(models.Initial())
	p := newPoller(t, &scriptedExtractor{steps: []step{notFound}}, store, 0)

	require.NoError(t, p.Tick(context.Background(), newFakeTarget()))

	view := store.Read().View()
	assert.Equal(t, "Scanning...", view.Status)
	assert.Equal(t, models.PlaceholderMatch, view.Match)
	assert.Equal(t, models.PlaceholderUpdated, view.LastUpdated)
}

func TestTick_ErrorLeavesSnapshot(t *testing.T) {
	store := state.NewStore(models.Initial())
	ex := &scriptedExtractor{steps: []step{found("Arsenal", "Chelsea"), {err: errors.New("execution context was destroyed")}}}
	p := newPoller(t, ex, store, 0)
	target := newFakeTarget()

	require.NoError(t, p.Tick(context.Background(), target))
	before := store.Read()
	assert.Error(t, p.Tick(context.Background(), target))
	assert.Equal(t, before, store.Read())
}

func TestTick_PanicIsRecovered(t *testing.T) {
	store := state.NewStore(models.Initial())
	p := newPoller(t, &scriptedExtractor{steps: []step{{panic: true}}}, store, 0)

	var err error
	assert.NotPanics(t, func() { err = p.Tick(context.Background(), newFakeTarget()) })
	assert.ErrorIs(t, err, errTickPanic)
	assert.Equal(t, models.Initial(), store.Read())
}

func TestTick_NoPublishAfterCancel(t *testing.T) {
	store := state.NewStore(models.Initial())
	ctx, cancel := context.WithCancel(context.Background())
	ex := &scriptedExtractor{
		steps:  []step{found("Arsenal", "Chelsea")},
		onCall: func(int) { cancel() },
	}
	p := newPoller(t, ex, store, 0)

	err := p.Tick(ctx, newFakeTarget())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.Initial(), store.Read())
}

// Teams flip between two matches while the page cycles; each tick publishes
// the pair it saw.
func TestRun_FollowsMatchChanges(t *testing.T) {
	store := state.NewStore(models.Initial())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	var mu sync.Mutex
	store.Subscribe(func(s models.Snapshot) {
		mu.Lock()
		seen = append(seen, string(s.Status)+":"+s.MatchLabel())
		mu.Unlock()
	})

	ex := &scriptedExtractor{
		steps: []step{found("A", "B"), notFound, found("C", "D"), notFound},
		onCall: func(n int) {
			if n == 4 {
				cancel()
			}
		},
	}
	p := newPoller(t, ex, store, 0)

	err := p.Run(ctx, newFakeTarget())
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"live:A vs B", "scanning:A vs B", "live:C vs D"}, seen)
}

func TestRun_TickErrorsDoNotStopLoop(t *testing.T) {
	store := state.NewStore(models.Initial())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("transient")
	ex := &scriptedExtractor{
		steps: []step{{err: boom}, {panic: true}, {err: boom}, found("A", "B")},
		onCall: func(n int) {
			if n == 5 {
				cancel()
			}
		},
	}
	p := newPoller(t, ex, store, 0)

	err := p.Run(ctx, newFakeTarget())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "A vs B", store.Read().MatchLabel())
	assert.GreaterOrEqual(t, ex.Calls(), 4)
}

func TestRun_EndsWhenSessionLost(t *testing.T) {
	store := state.NewStore(models.Initial())
	target := newFakeTarget()
	crash := errors.New("page renderer crashed")

	ex := &scriptedExtractor{
		steps: []step{found("A", "B")},
		onCall: func(n int) {
			if n == 2 {
				target.kill(crash)
			}
		},
	}
	p := newPoller(t, ex, store, 0)

	err := p.Run(context.Background(), target)
	require.ErrorIs(t, err, ErrSessionLost)
	assert.Contains(t, err.Error(), crash.Error())
}

func TestRun_MaxConsecutiveFailures(t *testing.T) {
	store := state.NewStore(models.Initial())
	boom := errors.New("evaluate failed")
	ex := &scriptedExtractor{steps: []step{{err: boom}, found("A", "B"), {err: boom}}}
	p := newPoller(t, ex, store, 3)

	err := p.Run(context.Background(), newFakeTarget())
	require.ErrorIs(t, err, ErrSessionLost)
	assert.Contains(t, err.Error(), "3 consecutive failed ticks")
	// one failure, one success that resets the count, then three failures
	assert.Equal(t, 5, ex.Calls())
}
