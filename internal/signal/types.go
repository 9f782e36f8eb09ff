// Package signal implements C4: evaluating entry conditions on each
// finalized bar and producing SignalCandidates, including ghost candidates
// for rejected signals. Grounded on the teacher's strategy.go (Candle,
// Signal, Decision, decide()), generalized from the teacher's single
// hard-coded micro-model call into the Scorer interface spec §6 requires as
// the sole polymorphic seam for confidence.
package signal

import "time"

// Side is the directional intent of a candidate.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// TradeType distinguishes a reversal off a VWAP band touch from a
// continuation (spec §3, §4.4).
type TradeType string

const (
	Reversal     TradeType = "REVERSAL"
	Continuation TradeType = "CONTINUATION"
)

// FeatureVector is the closed schema per spec §9's design note ("define a
// closed schema per domain entity with a schema_version"): a fixed struct
// of named fields, not a map, so the experience recorder and the scorer
// agree on exactly what a feature means. It carries the ≥32 named fields
// spec §3 requires for a SignalCandidate.
type FeatureVector struct {
	SchemaVersion int `json:"schema_version"`

	// Price action
	Close           float64 `json:"close"`
	Open            float64 `json:"open"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Return1Bar      float64 `json:"return_1bar"`
	Return5Bar      float64 `json:"return_5bar"`
	Return20Bar     float64 `json:"return_20bar"`
	RangePct        float64 `json:"range_pct"`
	BodyPct         float64 `json:"body_pct"`

	// Indicator snapshot (C2)
	RSI               float64 `json:"rsi"`
	ATR               float64 `json:"atr"`
	VWAP              float64 `json:"vwap"`
	VWAPStdDev        float64 `json:"vwap_stddev"`
	VWAPDistanceSigma float64 `json:"vwap_distance_sigma"`
	VolumeRatio       float64 `json:"volume_ratio"`
	SyntheticVIX      float64 `json:"synthetic_vix"`
	TrendStrength     float64 `json:"trend_strength"`
	SRProximityTicks  float64 `json:"sr_proximity_ticks"`
	Regime            string  `json:"market_regime"`

	// Bid/ask context (C3)
	SpreadTicks     float64 `json:"spread_ticks"`
	SpreadMean      float64 `json:"spread_mean"`
	Imbalance       float64 `json:"imbalance"`
	ExpectedSlipTck float64 `json:"expected_slippage_ticks"`

	// Session/time context
	MinuteOfSessionET int     `json:"minute_of_session_et"`
	DayOfWeek         int     `json:"day_of_week"`
	DailyPnL          float64 `json:"daily_pnl"`
	DailyTrades       int     `json:"daily_trades"`
	ConsecutiveWins   int     `json:"consecutive_wins"`
	ConsecutiveLosses int     `json:"consecutive_losses"`

	// VWAP band touches (previous bar)
	TouchedUpperBand1 bool `json:"touched_upper_band_1"`
	TouchedLowerBand1 bool `json:"touched_lower_band_1"`
	TouchedUpperBand2 bool `json:"touched_upper_band_2"`
	TouchedLowerBand2 bool `json:"touched_lower_band_2"`

	// Position/account context
	HasOpenPosition bool    `json:"has_open_position"`
	EquityRatio     float64 `json:"equity_ratio"`
}

// SignalCandidate is spec §3's central entity.
type SignalCandidate struct {
	ID            string
	Timestamp     time.Time
	Side          Side
	EntryRefPrice float64
	Reason        string
	TradeType     TradeType
	Confidence    float64
	Features      FeatureVector
	GhostFlag     bool
	Exploration   bool
}
