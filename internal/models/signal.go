package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column precision and scale for persisted numeric values.
const (
	PricePrecision     = 18
	PricePlaces        = 5
	PipsPrecision      = 12
	PipsPlaces         = 2
	ResponseTimePlaces = 2
)

// Defaults applied when an inbound value is missing.
const (
	DefaultTicker   = "UNKNOWN"
	DefaultAction   = "buy"
	DefaultOperator = "Anonymous"
)

// Signal is a strategy alert received from the charting platform. It starts
// unanalyzed and is claimed by exactly one operator.
type Signal struct {
	ID                  int              `json:"id"`
	Ticker              string           `json:"ticker"`
	Action              string           `json:"action"`
	Price               decimal.Decimal  `json:"price"`
	Timestamp           time.Time        `json:"timestamp"`
	ReceivedAt          time.Time        `json:"received_at"`
	Analyzed            bool             `json:"analyzed"`
	AnalyzedBy          *string          `json:"analyzed_by"`
	AnalyzedAt          *time.Time       `json:"analyzed_at"`
	ResponseTimeSeconds *decimal.Decimal `json:"response_time_seconds"`
}

// IsConsistent reports whether the analyzed flag agrees with the analysis
// fields: analyzed iff analyzed_by, analyzed_at and response_time_seconds are set.
func (s *Signal) IsConsistent() bool {
	set := s.AnalyzedBy != nil && s.AnalyzedAt != nil && s.ResponseTimeSeconds != nil
	unset := s.AnalyzedBy == nil && s.AnalyzedAt == nil && s.ResponseTimeSeconds == nil
	if s.Analyzed {
		return set
	}
	return unset
}

// ResponseTime returns the elapsed seconds between receipt and analysis,
// rounded to two places. Clock skew can make it negative; it is not clamped.
func ResponseTime(receivedAt, analyzedAt time.Time) decimal.Decimal {
	elapsed := analyzedAt.Sub(receivedAt)
	return decimal.New(elapsed.Nanoseconds(), -9).Round(ResponseTimePlaces)
}
