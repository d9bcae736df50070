package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

func TestStore_InitialValue(t *testing.T) {
	s := NewStore(models.Initial())
	assert.Equal(t, models.StatusInitializing, s.Read().Status)
	assert.False(t, s.Read().HasTeams())
}

func TestStore_PublishAndRead(t *testing.T) {
	s := NewStore(models.Initial())
	at := time.Now()
	s.Publish(models.Live("Lions", "Tigers", "primary", "s1", at))

	got := s.Read()
	assert.Equal(t, models.StatusLive, got.Status)
	assert.Equal(t, "Lions vs Tigers", got.MatchLabel())
}

func TestStore_UpdatePreservesTeams(t *testing.T) {
	s := NewStore(models.Initial())
	s.Publish(models.Live("Lions", "Tigers", "primary", "s1", time.Now()))

	got := s.Update(func(cur models.Snapshot) models.Snapshot {
		return cur.WithStatus(models.StatusScanning, models.DiagnosticNoTeams)
	})

	assert.Equal(t, models.StatusScanning, got.Status)
	assert.Equal(t, "Lions", s.Read().HomeTeam)
	assert.Equal(t, "Tigers", s.Read().AwayTeam)
}

func TestStore_SubscribeSeesEveryPublish(t *testing.T) {
	s := NewStore(models.Initial())
	var seen []models.Status
	s.Subscribe(func(snap models.Snapshot) { seen = append(seen, snap.Status) })

	s.Publish(models.Initial().WithStatus(models.StatusConnecting, ""))
	s.Update(func(cur models.Snapshot) models.Snapshot {
		return cur.WithStatus(models.StatusCrashed, "boom")
	})

	require.Len(t, seen, 2)
	assert.Equal(t, models.StatusConnecting, seen[0])
	assert.Equal(t, models.StatusCrashed, seen[1])
}

// Every published snapshot has home "H<n>" and away "A<n>" for the same n,
// so a torn read would show mismatched suffixes.
func TestStore_ConcurrentReadsNeverTorn(t *testing.T) {
	s := NewStore(models.Live("H0", "A0", "primary", "s", time.Now()))

	const writes = 2000
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 1; i <= writes; i++ {
			s.Publish(models.Live(fmt.Sprintf("H%d", i), fmt.Sprintf("A%d", i), "primary", "s", time.Now()))
		}
	}()

	errs := make(chan string, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Read()
				if snap.HomeTeam[1:] != snap.AwayTeam[1:] {
					select {
					case errs <- snap.MatchLabel():
					default:
					}
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for label := range errs {
		t.Errorf("torn snapshot observed: %s", label)
	}
	assert.Equal(t, fmt.Sprintf("H%d vs A%d", writes, writes), s.Read().MatchLabel())
}

func TestStore_ConcurrentUpdatesNotLost(t *testing.T) {
	s := NewStore(models.Initial())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(cur models.Snapshot) models.Snapshot {
				cur.Diagnostic += "x"
				return cur
			})
		}()
	}
	wg.Wait()

	assert.Len(t, s.Read().Diagnostic, 50)
}
