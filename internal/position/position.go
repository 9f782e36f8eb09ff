// Package position implements C7: the single-active-Position exit-substate
// machine and the strict 11-rule-priority bar evaluator. Grounded on the
// teacher's Position/Trader (trader.go: Position struct, applyRunnerTargets,
// activationPrice, the partial/runner bookkeeping in closeLot), generalized
// from the teacher's spot long-only book into a single bidirectional
// futures position driven by an externally supplied ExitParams bundle
// instead of hard-coded percentages.
package position

import (
	"fmt"
	"time"

	"github.com/chidi150c/apexfutures/internal/indicators"
)

// Side is the position's directional side.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ExitSubstate is spec §4.7's finite state machine.
type ExitSubstate string

const (
	Init          ExitSubstate = "INIT"
	Open          ExitSubstate = "OPEN"
	Partial1      ExitSubstate = "PARTIAL_1"
	Partial2      ExitSubstate = "PARTIAL_2"
	Partial3      ExitSubstate = "PARTIAL_3"
	Closing       ExitSubstate = "CLOSING"
	Closed        ExitSubstate = "CLOSED"
	StopHit       ExitSubstate = "STOP_HIT"
	ForcedFlatten ExitSubstate = "FORCED_FLATTEN"
)

// ExitReason names which of the 11 rules (or a forced event) fired.
type ExitReason string

const (
	ReasonStop            ExitReason = "STOP"
	ReasonTrailing        ExitReason = "TRAILING"
	ReasonTarget          ExitReason = "TARGET"
	ReasonForcedFlatten   ExitReason = "FORCED_FLATTEN"
	ReasonPartial1        ExitReason = "PARTIAL_1"
	ReasonPartial2        ExitReason = "PARTIAL_2"
	ReasonPartial3        ExitReason = "PARTIAL_3"
	ReasonUnderwaterTime  ExitReason = "UNDERWATER_TIMEOUT"
	ReasonSidewaysTimeout ExitReason = "SIDEWAYS_TIMEOUT"
	ReasonVolSpike        ExitReason = "VOL_SPIKE"
	ReasonProfitDrawdown  ExitReason = "PROFIT_DRAWDOWN"
	ReasonAdverseMomentum ExitReason = "ADVERSE_MOMENTUM"
	ReasonMaxHold         ExitReason = "MAX_HOLD"
)

// StopAdjustment records one move of current_stop, for the bar-trajectory
// summary C9 writes (spec §4.9).
type StopAdjustment struct {
	At     time.Time
	From   float64
	To     float64
	Reason string
}

// PartialExit records one triggered partial level.
type PartialExit struct {
	Level     int
	At        time.Time
	Price     float64
	Contracts int
}

// Position is spec §3's central entity: the single active futures
// position this engine instance manages.
type Position struct {
	ID                string
	Instrument        string
	Side              Side
	EntryPrice        float64
	EntryTime         time.Time
	OriginalContracts int
	RemainingContracts int

	InitialRiskTicks float64
	CurrentStop      float64
	InitialTarget    float64
	EntryATR         float64
	TradeType        string // REVERSAL | CONTINUATION, from the signal candidate
	Confidence       float64

	ExitSubstate ExitSubstate

	BreakevenArmed bool
	TrailingArmed  bool
	PeakFavorable  float64
	PeakUnrealized float64

	UnderwaterSince time.Time
	SidewaysSince   time.Time

	TriggeredPartials map[int]bool

	StopAdjustments []StopAdjustment
	Partials        []PartialExit

	AdverseBarStreak int

	SlippageAlerts int
	TotalSlippageTicks float64

	ClosedAt     time.Time
	CloseReason  ExitReason
	RealizedPnL  float64

	// PriorSubstate records which FSM branch led to CLOSED: STOP_HIT,
	// FORCED_FLATTEN, or the default CLOSING path taken by every other
	// full-exit reason. Closed itself is the terminal state callers check
	// against (EvaluateBar, persistence); this field preserves which
	// branch of spec §4.7's diagram actually fired, for the bar-trajectory
	// summary C9 writes.
	PriorSubstate ExitSubstate
}

// NewPosition opens a position sized by the caller (sizing formula lives in
// sizing.go) and seeds the exit FSM at INIT→OPEN. tickSize converts the
// ExitParams bundle's tick-denominated distances into absolute prices.
func NewPosition(id, instrument string, side Side, entryPrice float64, contracts int, entryATR float64, tradeType string, confidence float64, entryTime time.Time, params ExitParams, regime indicators.Regime, tier ConfidenceTier, tickSize float64) *Position {
	p := &Position{
		ID:                 id,
		Instrument:         instrument,
		Side:               side,
		EntryPrice:         entryPrice,
		EntryTime:          entryTime,
		OriginalContracts:  contracts,
		RemainingContracts: contracts,
		EntryATR:           entryATR,
		TradeType:          tradeType,
		Confidence:         confidence,
		ExitSubstate:       Open,
		TriggeredPartials:  map[int]bool{},
	}

	stopTicks := params.EffectiveStopTicks(regime, tradeType, tier)
	targetTicks := params.EffectiveTargetTicks(regime, tradeType, tier)
	p.InitialRiskTicks = stopTicks

	switch side {
	case Long:
		p.CurrentStop = entryPrice - stopTicks*tickSize
		p.InitialTarget = entryPrice + targetTicks*tickSize
	case Short:
		p.CurrentStop = entryPrice + stopTicks*tickSize
		p.InitialTarget = entryPrice - targetTicks*tickSize
	}
	return p
}

// UnrealizedTicks returns the current unrealized P&L in ticks at price
// close, positive favorable.
func (p *Position) UnrealizedTicks(close, tickSize float64) float64 {
	if tickSize <= 0 {
		return 0
	}
	switch p.Side {
	case Long:
		return (close - p.EntryPrice) / tickSize
	case Short:
		return (p.EntryPrice - close) / tickSize
	}
	return 0
}

// RMultiple returns the current unrealized P&L divided by initial risk,
// the "R-multiple" spec §9's glossary defines.
func (p *Position) RMultiple(close, tickSize float64) float64 {
	if p.InitialRiskTicks <= 0 {
		return 0
	}
	return p.UnrealizedTicks(close, tickSize) / p.InitialRiskTicks
}

func (p *Position) recordStopAdjustment(at time.Time, to float64, reason string) {
	p.StopAdjustments = append(p.StopAdjustments, StopAdjustment{At: at, From: p.CurrentStop, To: to, Reason: reason})
	p.CurrentStop = to
}

func (p *Position) String() string {
	return fmt.Sprintf("Position{id=%s side=%s entry=%.4f remaining=%d state=%s}", p.ID, p.Side, p.EntryPrice, p.RemainingContracts, p.ExitSubstate)
}
