package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

type memoryRepo struct {
	mu      sync.Mutex
	events  []Event
	claims  []ClaimChange
	prunes  []time.Duration
	failAll bool
}

func (m *memoryRepo) CreateEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk full")
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memoryRepo) CreateClaim(_ context.Context, c *ClaimChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk full")
	}
	m.claims = append(m.claims, *c)
	return nil
}

func (m *memoryRepo) GetEvent(context.Context, string) (*Event, error) { return nil, ErrNotFound }

func (m *memoryRepo) ListEvents(context.Context, Filter) (*EventPage, error) {
	return &EventPage{}, nil
}

func (m *memoryRepo) ListClaims(context.Context, Filter) (*ClaimPage, error) {
	return &ClaimPage{}, nil
}

func (m *memoryRepo) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes = append(m.prunes, olderThan)
	return 0, nil
}

// runRecorder starts Run and returns a function that stops it and waits.
func runRecorder(r *Recorder) func() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(context.Background())
	}()
	return func() {
		r.Stop()
		wg.Wait()
	}
}

func TestRecorder_PersistsSupplyEvents(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{Retention: 90 * 24 * time.Hour})
	stop := runRecorder(r)

	zones := []string{"bad"}
	r.SupplyEvaluated(heating.SupplySnapshot{Mode: heating.ModeAuto})
	r.SupplyEvent(heating.SupplyEvent{
		Kind:        heating.EventModeChanged,
		Mode:        heating.ModeHeating,
		FlowTarget:  34,
		ActiveZones: zones,
		Time:        testNow,
	})
	zones[0] = "mutated"
	stop()

	require.Len(t, repo.events, 1)
	e := repo.events[0]
	assert.Equal(t, heating.EventModeChanged, e.Kind)
	assert.Equal(t, []string{"bad"}, e.ActiveZones)
	assert.Equal(t, testNow, e.CreatedAt)

	require.NotEmpty(t, repo.prunes)
	assert.Equal(t, 90*24*time.Hour, repo.prunes[0])

	written, dropped := r.Stats()
	assert.Equal(t, uint64(1), written)
	assert.Zero(t, dropped)
}

func TestRecorder_RecordsClaimTransitionsOnly(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{})
	stop := runRecorder(r)

	snap := heating.ZoneSnapshot{Location: "bad", EffectiveTarget: 21, EvaluatedAt: testNow}
	r.ZoneEvaluated(snap)
	r.ZoneEvaluated(snap)
	snap.Claim = true
	r.ZoneEvaluated(snap)
	r.ZoneEvaluated(snap)
	r.ZoneEvaluated(heating.ZoneSnapshot{Location: "kueche", Claim: true})
	stop()

	require.Len(t, repo.claims, 3)
	assert.False(t, repo.claims[0].Claim)
	assert.True(t, repo.claims[1].Claim)
	assert.Equal(t, "kueche", repo.claims[2].Location)
	assert.Empty(t, repo.prunes, "retention disabled")
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{QueueSize: 2})

	for i := 0; i < 5; i++ {
		r.SupplyEvent(heating.SupplyEvent{Kind: heating.EventFlowTarget, Time: testNow})
	}
	_, dropped := r.Stats()
	assert.Equal(t, uint64(3), dropped)

	stop := runRecorder(r)
	stop()
	assert.Len(t, repo.events, 2)
}

func TestRecorder_WriteErrorsAreNotCounted(t *testing.T) {
	repo := &memoryRepo{failAll: true}
	r := NewRecorder(repo, RecorderConfig{})
	stop := runRecorder(r)

	r.SupplyEvent(heating.SupplyEvent{Kind: heating.EventFlowTarget, Time: testNow})
	stop()

	written, _ := r.Stats()
	assert.Zero(t, written)
}
