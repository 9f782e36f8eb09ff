package signal

import (
	"time"

	"github.com/google/uuid"

	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// EntryPredicate decides, from the just-closed bar and its indicator
// snapshot, whether a directional entry condition is true, and which side.
// Strategy variants plug in here; spec §4.4 leaves the predicate itself
// pluggable while fixing the contract around it (at most one candidate per
// bar, confidence from the Scorer, trade_type from price action).
type EntryPredicate func(bars []marketdata.Bar, snapshots []indicators.Snapshot) (ok bool, side Side, reason string)

// Engine runs on each finalized bar while the risk gate permits new
// entries (spec §4.4). It is the direct generalization of the teacher's
// decide() (strategy.go), replacing the hard-coded pUp-threshold logic with
// a pluggable EntryPredicate + Scorer pair.
type Engine struct {
	predicate EntryPredicate
	scorer    Scorer

	bars      []marketdata.Bar
	snapshots []indicators.Snapshot

	schemaVersion int
}

// NewEngine returns a signal Engine using predicate for entry conditions
// and scorer for confidence.
func NewEngine(predicate EntryPredicate, scorer Scorer) *Engine {
	return &Engine{predicate: predicate, scorer: scorer, schemaVersion: 2}
}

// OnBar folds a finalized bar + its indicator snapshot into history and
// evaluates the entry predicate. entriesAllowed comes from the risk gate
// (C5); when false the engine still evaluates the predicate (so a ghost
// candidate can be recorded) and returns the candidate with GhostFlag set.
// A scorer error also sets GhostFlag, with confidence 0 and reason
// SCORER_UNAVAILABLE.
func (e *Engine) OnBar(bar marketdata.Bar, snap indicators.Snapshot, sessionCtx SessionContext, entriesAllowed bool) (*SignalCandidate, error) {
	e.bars = append(e.bars, bar)
	e.snapshots = append(e.snapshots, snap)

	ok, side, reason := e.predicate(e.bars, e.snapshots)
	if !ok {
		return nil, nil
	}

	features := e.buildFeatures(bar, snap, sessionCtx)
	tradeType := e.classifyTradeType(side)

	confidence, exploration, err := e.scorer.Score(features)
	ghost := false
	if err != nil {
		confidence = 0
		ghost = true
		reason = "SCORER_UNAVAILABLE"
	}
	if !entriesAllowed {
		ghost = true
	}

	return &SignalCandidate{
		ID:            uuid.NewString(),
		Timestamp:     bar.StartTS,
		Side:          side,
		EntryRefPrice: bar.Close,
		Reason:        reason,
		TradeType:     tradeType,
		Confidence:    confidence,
		Features:      features,
		GhostFlag:     ghost,
		Exploration:   exploration,
	}, nil
}

// SessionContext carries the session/account fields a feature vector needs
// that the signal engine itself does not own (spec §3: daily_pnl,
// daily_trades, consecutive wins/losses, equity ratio).
type SessionContext struct {
	MinuteOfSessionET int
	DayOfWeek         int
	DailyPnL          float64
	DailyTrades       int
	ConsecutiveWins   int
	ConsecutiveLosses int
	HasOpenPosition   bool
	EquityRatio       float64
	SpreadTicks       float64
	SpreadMean        float64
	Imbalance         float64
	ExpectedSlipTicks float64
}

func (e *Engine) buildFeatures(bar marketdata.Bar, snap indicators.Snapshot, sc SessionContext) FeatureVector {
	i := len(e.bars) - 1
	ret1, ret5, ret20 := 0.0, 0.0, 0.0
	if i >= 1 {
		ret1 = pctChange(e.bars[i-1].Close, bar.Close)
	}
	if i >= 5 {
		ret5 = pctChange(e.bars[i-5].Close, bar.Close)
	}
	if i >= 20 {
		ret20 = pctChange(e.bars[i-20].Close, bar.Close)
	}
	rangePct, bodyPct := 0.0, 0.0
	if bar.Close > 0 {
		rangePct = (bar.High - bar.Low) / bar.Close
		bodyPct = (bar.Close - bar.Open) / bar.Close
	}

	touchUpper1, touchLower1, touchUpper2, touchLower2 := false, false, false, false
	if i >= 1 {
		prev := e.bars[i-1]
		prevSnap := e.snapshots[i-1]
		touchUpper1 = prev.High >= prevSnap.VWAPBands.Upper[0]
		touchLower1 = prev.Low <= prevSnap.VWAPBands.Lower[0]
		touchUpper2 = prev.High >= prevSnap.VWAPBands.Upper[1]
		touchLower2 = prev.Low <= prevSnap.VWAPBands.Lower[1]
	}

	return FeatureVector{
		SchemaVersion: e.schemaVersion,

		Close: bar.Close, Open: bar.Open, High: bar.High, Low: bar.Low,
		Return1Bar: ret1, Return5Bar: ret5, Return20Bar: ret20,
		RangePct: rangePct, BodyPct: bodyPct,

		RSI: snap.RSI, ATR: snap.ATR, VWAP: snap.VWAP, VWAPStdDev: snap.VWAPStdDev,
		VWAPDistanceSigma: snap.VWAPDistanceSigma, VolumeRatio: snap.VolumeRatio,
		SyntheticVIX: snap.SyntheticVIX, TrendStrength: snap.TrendStrength,
		SRProximityTicks: snap.SRProximityTicks, Regime: string(snap.Regime),

		SpreadTicks: sc.SpreadTicks, SpreadMean: sc.SpreadMean, Imbalance: sc.Imbalance,
		ExpectedSlipTck: sc.ExpectedSlipTicks,

		MinuteOfSessionET: sc.MinuteOfSessionET, DayOfWeek: sc.DayOfWeek,
		DailyPnL: sc.DailyPnL, DailyTrades: sc.DailyTrades,
		ConsecutiveWins: sc.ConsecutiveWins, ConsecutiveLosses: sc.ConsecutiveLosses,

		TouchedUpperBand1: touchUpper1, TouchedLowerBand1: touchLower1,
		TouchedUpperBand2: touchUpper2, TouchedLowerBand2: touchLower2,

		HasOpenPosition: sc.HasOpenPosition, EquityRatio: sc.EquityRatio,
	}
}

// classifyTradeType implements spec §4.4: REVERSAL if the previous bar
// touched the configured VWAP band in the opposite direction of the
// signal, else CONTINUATION.
func (e *Engine) classifyTradeType(side Side) TradeType {
	i := len(e.bars) - 1
	if i < 1 {
		return Continuation
	}
	prev := e.bars[i-1]
	prevSnap := e.snapshots[i-1]
	switch side {
	case SideLong:
		if prev.Low <= prevSnap.VWAPBands.Lower[0] {
			return Reversal
		}
	case SideShort:
		if prev.High >= prevSnap.VWAPBands.Upper[0] {
			return Reversal
		}
	}
	return Continuation
}

func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev
}

// MinuteOfSession returns the minutes elapsed since the configured ET
// session start, used to populate FeatureVector.MinuteOfSessionET.
func MinuteOfSession(t time.Time, sessionStartET string) int {
	et := t
	var h, m int
	if pt, err := time.Parse("15:04", sessionStartET); err == nil {
		h, m = pt.Hour(), pt.Minute()
	} else {
		h, m = 18, 0
	}
	boundary := time.Date(et.Year(), et.Month(), et.Day(), h, m, 0, 0, et.Location())
	if et.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return int(et.Sub(boundary).Minutes())
}
