package signals

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/signal-desk/internal/events"
	"github.com/trogers1052/signal-desk/internal/models"
)

type recordingPublisher struct {
	mu   sync.Mutex
	evts []*events.Event
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, evt *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evts = append(r.evts, evt)
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.evts))
	for _, e := range r.evts {
		out = append(out, e.EventType)
	}
	return out
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(store Store, pub events.Publisher) *Engine {
	e := NewEngine(store, pub, zerolog.Nop())
	e.now = func() time.Time { return t0 }
	return e
}

func TestEngine_Create_ScenarioA(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	e := newTestEngine(store, pub)

	s, err := e.Create(context.Background(), CreateRequest{
		Ticker: "EURUSD", Action: "buy", Price: 1.0850, Timestamp: "2024-03-01T09:59:58Z",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.ID)
	assert.False(t, s.Analyzed)
	assert.Equal(t, "EURUSD", s.Ticker)
	assert.Equal(t, "buy", s.Action)
	assert.True(t, decimal.RequireFromString("1.085").Equal(s.Price))
	assert.True(t, s.Timestamp.Equal(t0.Add(-2*time.Second)))
	assert.True(t, s.ReceivedAt.Equal(t0))
	assert.True(t, s.IsConsistent())
	assert.Equal(t, []string{events.SignalReceived}, pub.types())
}

func TestEngine_Create_PermissiveDefaults(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)

	s, err := e.Create(context.Background(), CreateRequest{Price: "not-a-number", Timestamp: "garbage"})
	require.NoError(t, err)

	assert.Equal(t, models.DefaultTicker, s.Ticker)
	assert.Equal(t, models.DefaultAction, s.Action)
	assert.True(t, s.Price.IsZero())
	assert.True(t, s.Timestamp.Equal(t0))
}

func TestEngine_Create_OutOfRangeValuesDefaulted(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)

	for _, req := range []CreateRequest{
		{Ticker: "EURUSD", Price: "1e20", Timestamp: "1e15"},
		{Ticker: "EURUSD", Price: json.Number("1e2000000"), Timestamp: json.Number("1e300")},
		{Ticker: "EURUSD", Price: 1e300, Timestamp: "10000-01-01T00:00:00Z"},
	} {
		s, err := e.Create(context.Background(), req)
		require.NoError(t, err)

		assert.True(t, s.Price.IsZero(), "price %v", req.Price)
		assert.True(t, s.Timestamp.Equal(t0), "timestamp %v", req.Timestamp)

		_, err = json.Marshal(s)
		assert.NoError(t, err)
	}
}

func TestEngine_Create_PreservesUnknownAction(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)

	s, err := e.Create(context.Background(), CreateRequest{Ticker: "BTCUSD", Action: "close_long", Price: json.Number("64000.123456789")})
	require.NoError(t, err)

	assert.Equal(t, "close_long", s.Action)
	assert.Equal(t, "64000.12346", s.Price.String())
}

func TestEngine_Create_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	pub := &recordingPublisher{}
	e := newTestEngine(store, pub)

	_, err := e.Create(context.Background(), CreateRequest{Ticker: "EURUSD"})
	require.Error(t, err)
	assert.Empty(t, pub.types())
}

func TestEngine_Create_PublishFailureDoesNotFail(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("kafka down")}
	e := newTestEngine(newMemStore(), pub)

	s, err := e.Create(context.Background(), CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.ID)
}

func TestEngine_Analyze_ScenariosBCF(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	e := newTestEngine(store, pub)
	ctx := context.Background()

	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD", Action: "buy", Price: 1.0850})
	require.NoError(t, err)

	// B: alice analyzes 42s after receipt
	e.now = func() time.Time { return t0.Add(42 * time.Second) }
	res, err := e.Analyze(ctx, 1, "alice")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("42.00").Equal(res.ResponseTime))
	assert.True(t, res.Signal.Analyzed)
	assert.Equal(t, "alice", *res.Signal.AnalyzedBy)
	assert.True(t, res.Signal.IsConsistent())

	// C: bob tries again and is rejected; signal unchanged
	e.now = func() time.Time { return t0.Add(90 * time.Second) }
	_, err = e.Analyze(ctx, 1, "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSignalAlreadyAnalyzed))

	stored, err := store.GetSignal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", *stored.AnalyzedBy)
	assert.True(t, decimal.RequireFromString("42").Equal(*stored.ResponseTimeSeconds))

	// same operator is also rejected
	_, err = e.Analyze(ctx, 1, "alice")
	assert.True(t, errors.Is(err, models.ErrSignalAlreadyAnalyzed))

	// F: unknown id
	_, err = e.Analyze(ctx, 999, "alice")
	assert.True(t, errors.Is(err, models.ErrSignalNotFound))

	assert.Equal(t, []string{events.SignalReceived, events.SignalAnalyzed}, pub.types())
}

func TestEngine_Analyze_ResponseTimeMatchesTimestamps(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, nil)
	ctx := context.Background()

	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)

	e.now = func() time.Time { return t0.Add(3*time.Minute + 7456*time.Millisecond) }
	res, err := e.Analyze(ctx, 1, "carol")
	require.NoError(t, err)

	s := res.Signal
	want := s.AnalyzedAt.Sub(s.ReceivedAt).Seconds()
	got := s.ResponseTimeSeconds.InexactFloat64()
	assert.InDelta(t, want, got, 0.01)
	assert.Equal(t, "187.46", s.ResponseTimeSeconds.StringFixed(2))
}

func TestEngine_Analyze_DefaultOperator(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	ctx := context.Background()
	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)

	res, err := e.Analyze(ctx, 1, "   ")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultOperator, *res.Signal.AnalyzedBy)
}

func TestEngine_Analyze_ClockSkewNotClamped(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	ctx := context.Background()
	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)

	e.now = func() time.Time { return t0.Add(-1500 * time.Millisecond) }
	res, err := e.Analyze(ctx, 1, "dave")
	require.NoError(t, err)
	assert.Equal(t, "-1.50", res.ResponseTime.StringFixed(2))
}

func TestEngine_Analyze_ConcurrentExactlyOnce(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, nil)
	ctx := context.Background()
	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)

	const n = 64
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		successes []string
		conflicts int
		other     []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			op := string(rune('a' + i%26))
			_, err := e.Analyze(ctx, 1, op)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, op)
			case errors.Is(err, models.ErrSignalAlreadyAnalyzed):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	require.Len(t, successes, 1)
	assert.Equal(t, n-1, conflicts)

	stored, err := store.GetSignal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, successes[0], *stored.AnalyzedBy)
}

func TestEngine_Analyze_LostRaceAtStore(t *testing.T) {
	// The read observes an unanalyzed signal but another caller wins the CAS.
	store := &racingStore{memStore: newMemStore()}
	e := newTestEngine(store, nil)
	ctx := context.Background()
	_, err := e.Create(ctx, CreateRequest{Ticker: "EURUSD"})
	require.NoError(t, err)

	_, err = e.Analyze(ctx, 1, "bob")
	assert.True(t, errors.Is(err, models.ErrSignalAlreadyAnalyzed))

	stored, _ := store.GetSignal(ctx, 1)
	assert.Equal(t, "winner", *stored.AnalyzedBy)
}

type racingStore struct {
	*memStore
}

func (r *racingStore) MarkSignalAnalyzed(ctx context.Context, id int, operator string, at time.Time, rt decimal.Decimal) (*models.Signal, error) {
	if _, err := r.memStore.MarkSignalAnalyzed(ctx, id, "winner", at, rt); err != nil {
		return nil, err
	}
	return r.memStore.MarkSignalAnalyzed(ctx, id, operator, at, rt)
}

func TestEngine_List_NewestFirst(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	ctx := context.Background()
	for _, tk := range []string{"EURUSD", "GBPUSD", "USDJPY"} {
		_, err := e.Create(ctx, CreateRequest{Ticker: tk})
		require.NoError(t, err)
	}

	list, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "USDJPY", list[0].Ticker)
	assert.Equal(t, "EURUSD", list[2].Ticker)
}
