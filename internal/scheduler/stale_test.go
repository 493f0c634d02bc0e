package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/signal-desk/internal/events"
)

type countStore struct {
	mu      sync.Mutex
	pending int
	err     error
	cutoffs []time.Time
}

func (c *countStore) CountStaleSignals(_ context.Context, olderThan time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cutoffs = append(c.cutoffs, olderThan)
	return c.pending, c.err
}

func (c *countStore) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cutoffs)
}

type capture struct {
	mu   sync.Mutex
	evts []*events.Event
	err  error
}

func (c *capture) Publish(_ context.Context, evt *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evts = append(c.evts, evt)
	return c.err
}

func newSweeper(t *testing.T, store StaleStore, pub events.Publisher) *StaleSweeper {
	t.Helper()
	s, err := NewStaleSweeper(context.Background(), "@every 1h", 15*time.Minute, store, pub, zerolog.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSweep_PublishesReport(t *testing.T) {
	store := &countStore{pending: 3}
	pub := &capture{}
	s := newSweeper(t, store, pub)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cutoff := time.Date(2024, 1, 2, 11, 45, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{cutoff}, store.cutoffs)
	require.Len(t, pub.evts, 1)
	assert.Equal(t, events.SignalsStale, pub.evts[0].EventType)
	assert.Equal(t, events.StaleReport{Pending: 3, OlderThan: cutoff}, pub.evts[0].Data)
}

func TestSweep_NothingStale(t *testing.T) {
	pub := &capture{}
	s := newSweeper(t, &countStore{}, pub)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.evts)
}

func TestSweep_StoreError(t *testing.T) {
	pub := &capture{}
	s := newSweeper(t, &countStore{err: errors.New("down")}, pub)

	_, err := s.Sweep(context.Background())
	assert.Error(t, err)
	assert.Empty(t, pub.evts)
}

func TestSweep_PublishFailureIsNotAnError(t *testing.T) {
	s := newSweeper(t, &countStore{pending: 1}, &capture{err: errors.New("broker gone")})

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewStaleSweeper_InvalidSpec(t *testing.T) {
	_, err := NewStaleSweeper(context.Background(), "not a schedule", time.Minute, &countStore{}, &capture{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStaleSweeper_RunsOnSchedule(t *testing.T) {
	store := &countStore{}
	s, err := NewStaleSweeper(context.Background(), "@every 1s", time.Minute, store, &capture{}, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return store.calls() > 0 }, 3*time.Second, 50*time.Millisecond)
}
