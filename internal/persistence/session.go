package persistence

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/apexfutures/internal/risk"
)

const sessionSchemaVersion = 1

// SessionSnapshot is the closed-schema, on-disk record of a trading day's
// risk-gate counters (spec §4.8's second ledger), field-for-field the same
// as risk.SessionState plus the schema tag and write timestamp every
// persisted record carries (spec §9).
type SessionSnapshot struct {
	SchemaVersion int `json:"schema_version"`

	TradingDate       time.Time `json:"trading_date"`
	StartingEquity    float64   `json:"starting_equity"`
	CurrentEquity     float64   `json:"current_equity"`
	PeakEquity        float64   `json:"peak_equity"`
	DailyPnL          float64   `json:"daily_pnl"`
	TradesToday       int       `json:"daily_trades"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	LastTradeAt       time.Time `json:"last_trade_ts"`
	Halted            bool      `json:"halted"`
	HaltReason        string    `json:"halt_reason"`

	WrittenAt time.Time `json:"written_at"`
}

// FromSessionState converts the gate's in-memory SessionState into its
// persisted form.
func FromSessionState(s risk.SessionState) SessionSnapshot {
	return SessionSnapshot{
		SchemaVersion:     sessionSchemaVersion,
		TradingDate:       s.TradingDate,
		StartingEquity:    s.StartingEquity.InexactFloat64(),
		CurrentEquity:     s.CurrentEquity.InexactFloat64(),
		PeakEquity:        s.PeakEquity.InexactFloat64(),
		DailyPnL:          s.DailyPnL.InexactFloat64(),
		TradesToday:       s.TradesToday,
		ConsecutiveWins:   s.ConsecutiveWins,
		ConsecutiveLosses: s.ConsecutiveLosses,
		LastTradeAt:       s.LastTradeAt,
		Halted:            s.Halted,
		HaltReason:        s.HaltReason,
	}
}

// ToSessionState reconstructs a risk.SessionState from its persisted
// snapshot, for RestoreState on startup.
func (s SessionSnapshot) ToSessionState() risk.SessionState {
	return risk.SessionState{
		TradingDate:       s.TradingDate,
		StartingEquity:    decimal.NewFromFloat(s.StartingEquity),
		CurrentEquity:     decimal.NewFromFloat(s.CurrentEquity),
		PeakEquity:        decimal.NewFromFloat(s.PeakEquity),
		DailyPnL:          decimal.NewFromFloat(s.DailyPnL),
		TradesToday:       s.TradesToday,
		ConsecutiveWins:   s.ConsecutiveWins,
		ConsecutiveLosses: s.ConsecutiveLosses,
		LastTradeAt:       s.LastTradeAt,
		Halted:            s.Halted,
		HaltReason:        s.HaltReason,
	}
}
