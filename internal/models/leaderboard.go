package models

import "github.com/shopspring/decimal"

// OperatorStats aggregates one operator's analysis speed.
type OperatorStats struct {
	User                string          `json:"user"`
	TotalSignals        int             `json:"total_signals"`
	AverageResponseTime decimal.Decimal `json:"average_response_time"`
	FastestResponse     decimal.Decimal `json:"fastest_response"`
	SlowestResponse     decimal.Decimal `json:"slowest_response"`
}

// StoreCounts holds row totals reported by the health check.
type StoreCounts struct {
	Signals int `json:"signals"`
	Trades  int `json:"trades"`
}
