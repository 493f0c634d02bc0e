// Package leaderboard derives per-operator analysis speed from analyzed
// signals. Nothing is cached; every call recomputes from the store.
package leaderboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/models"
)

// Store defines the persistence operations the aggregator needs
type Store interface {
	ListAnalyzedSignals(ctx context.Context) ([]*models.Signal, error)
}

// Aggregator serves the leaderboard
type Aggregator struct {
	store Store
}

// NewAggregator creates a new Aggregator
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Leaderboard loads analyzed signals and computes operator stats
func (a *Aggregator) Leaderboard(ctx context.Context) ([]models.OperatorStats, error) {
	signals, err := a.store.ListAnalyzedSignals(ctx)
	if err != nil {
		return nil, err
	}
	return Compute(signals), nil
}

type group struct {
	count int
	sum   decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
}

// Compute groups analyzed signals by operator and returns their stats
// ordered by average response time, fastest first. Unanalyzed signals and
// signals without a response time are ignored.
func Compute(signals []*models.Signal) []models.OperatorStats {
	groups := map[string]*group{}
	for _, s := range signals {
		if s == nil || !s.Analyzed || s.ResponseTimeSeconds == nil || s.AnalyzedBy == nil {
			continue
		}
		rt := *s.ResponseTimeSeconds
		g, ok := groups[*s.AnalyzedBy]
		if !ok {
			groups[*s.AnalyzedBy] = &group{count: 1, sum: rt, min: rt, max: rt}
			continue
		}
		g.count++
		g.sum = g.sum.Add(rt)
		if rt.LessThan(g.min) {
			g.min = rt
		}
		if rt.GreaterThan(g.max) {
			g.max = rt
		}
	}

	stats := make([]models.OperatorStats, 0, len(groups))
	for user, g := range groups {
		stats = append(stats, models.OperatorStats{
			User:                user,
			TotalSignals:        g.count,
			AverageResponseTime: g.sum.Div(decimal.NewFromInt(int64(g.count))).Round(models.ResponseTimePlaces),
			FastestResponse:     g.min,
			SlowestResponse:     g.max,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if c := stats[i].AverageResponseTime.Cmp(stats[j].AverageResponseTime); c != 0 {
			return c < 0
		}
		return stats[i].User < stats[j].User
	})
	return stats
}
