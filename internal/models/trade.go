package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTradeResult is the result recorded when none is supplied.
const DefaultTradeResult = "pending"

// Trade is an operator-logged position. SignalID is an informational link;
// the referenced signal may be missing.
type Trade struct {
	ID            int              `json:"id"`
	SignalID      *int             `json:"signal_id"`
	Pair          string           `json:"pair"`
	Direction     string           `json:"direction"`
	EntryPrice    decimal.Decimal  `json:"entry_price"`
	ExitPrice     *decimal.Decimal `json:"exit_price"`
	StopLoss      *decimal.Decimal `json:"stop_loss"`
	TakeProfit    *decimal.Decimal `json:"take_profit"`
	Reasoning     *string          `json:"reasoning"`
	VoiceNoteURL  *string          `json:"voice_note_url"`
	ScreenshotURL *string          `json:"screenshot_url"`
	Result        string           `json:"result"`
	Pips          decimal.Decimal  `json:"pips"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TradeWithTicker is a trade joined with the ticker of its linked signal.
// Ticker is empty when there is no link or the link dangles.
type TradeWithTicker struct {
	Trade
	Ticker string `json:"ticker"`
}
