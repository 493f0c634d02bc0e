package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/models"
)

// memStore is an in-memory Store whose MarkSignalAnalyzed is a
// compare-and-set under a mutex, like the conditional UPDATE in Postgres.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	signals map[int]models.Signal
	err     error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, signals: map[int]models.Signal{}}
}

func (m *memStore) CreateSignal(_ context.Context, s *models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	s.ID = m.nextID
	m.nextID++
	m.signals[s.ID] = *s
	return nil
}

func (m *memStore) GetSignal(_ context.Context, id int) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrSignalNotFound, id)
	}
	return &s, nil
}

func (m *memStore) ListSignals(_ context.Context) ([]*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Signal, 0, len(m.signals))
	for id := m.nextID - 1; id >= 1; id-- {
		if s, ok := m.signals[id]; ok {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *memStore) MarkSignalAnalyzed(_ context.Context, id int, operator string, analyzedAt time.Time, responseTime decimal.Decimal) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrSignalNotFound, id)
	}
	if s.Analyzed {
		return nil, fmt.Errorf("%w: %d", models.ErrSignalAlreadyAnalyzed, id)
	}
	op := operator
	at := analyzedAt
	rt := responseTime
	s.Analyzed = true
	s.AnalyzedBy = &op
	s.AnalyzedAt = &at
	s.ResponseTimeSeconds = &rt
	m.signals[id] = s
	return &s, nil
}
