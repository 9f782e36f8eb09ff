// Package quotes implements C3: spread analytics, imbalance, adaptive
// slippage estimation, the entry gate, and the passive-order queue monitor.
// Grounded on the teacher's broker/order-routing plumbing (no direct
// analogue exists in chidi150c-coinbase, which trades at the market with a
// single last price); generalized from the teacher's Position/fee-gate
// style of small, named, testable helper functions (trader.go
// activationPrice, applyRunnerTargets) into a cohesive bid/ask manager.
package quotes

import (
	"time"

	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// Imbalance classifies the bid/ask size ratio (spec §4.3).
type Imbalance string

const (
	StrongBid Imbalance = "STRONG_BID"
	StrongAsk Imbalance = "STRONG_ASK"
	Balanced  Imbalance = "BALANCED"
)

// Side mirrors the order side the entry gate is evaluated for.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Params are the operator-tunable knobs spec §6 names for this component.
type Params struct {
	TickSize                 float64
	MaxAcceptableSpread      float64 // in ticks
	MinBidAskSize            float64
	ImbalanceThreshold       float64 // e.g. 3 -> STRONG_BID at >3, STRONG_ASK at <1/3
	NormalHoursSlippageTicks float64
	IlliquidHoursSlippageTicks float64
	IlliquidHoursStartET     string
	IlliquidHoursEndET      string
}

// Manager tracks per-symbol quote state and publishes the analytics spec
// §4.3 requires. One Manager per traded symbol, owned by the event loop.
type Manager struct {
	params Params

	current      marketdata.Tick
	haveQuote    bool
	spreadHist   []float64 // rolling, most recent last
	lastSpread   float64
	wideningRun  int
}

const spreadHistoryLen = 30

// NewManager returns a Manager configured with params.
func NewManager(params Params) *Manager {
	return &Manager{params: params}
}

// Update folds a new tick into the rolling spread/imbalance state.
func (m *Manager) Update(t marketdata.Tick) {
	spread := t.SpreadTicks(m.params.TickSize)
	if m.haveQuote {
		if spread > m.lastSpread {
			m.wideningRun++
		} else {
			m.wideningRun = 0
		}
	}
	m.lastSpread = spread
	m.spreadHist = append(m.spreadHist, spread)
	if len(m.spreadHist) > spreadHistoryLen {
		m.spreadHist = m.spreadHist[len(m.spreadHist)-spreadHistoryLen:]
	}
	m.current = t
	m.haveQuote = true
}

// SpreadTicks returns the current spread in ticks.
func (m *Manager) SpreadTicks() float64 { return m.lastSpread }

// SpreadMean returns the rolling mean spread over the tracked history.
func (m *Manager) SpreadMean() float64 {
	if len(m.spreadHist) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.spreadHist {
		sum += s
	}
	return sum / float64(len(m.spreadHist))
}

// Widening reports whether each of the last 5 quotes was wider than the one
// before it (spec §4.3).
func (m *Manager) Widening() bool {
	return m.wideningRun >= 5
}

// ImbalanceRatio returns bid_size/ask_size for the current quote.
func (m *Manager) ImbalanceRatio() float64 {
	if !m.haveQuote || m.current.AskSize <= 0 {
		return 1
	}
	return m.current.BidSize / m.current.AskSize
}

// Classify returns the STRONG_BID/STRONG_ASK/BALANCED classification for
// the current quote, per spec §4.3.
func (m *Manager) Classify() Imbalance {
	ratio := m.ImbalanceRatio()
	threshold := m.params.ImbalanceThreshold
	if threshold <= 1 {
		threshold = 3
	}
	switch {
	case ratio > threshold:
		return StrongBid
	case ratio < 1/threshold:
		return StrongAsk
	default:
		return Balanced
	}
}

// isIlliquidHour reports whether hour (ET) falls within the configured
// illiquid window (default midnight-9:30 ET, spec §4.3).
func (m *Manager) isIlliquidHour(et time.Time) bool {
	start := m.params.IlliquidHoursStartET
	end := m.params.IlliquidHoursEndET
	if start == "" {
		start = "00:00"
	}
	if end == "" {
		end = "09:30"
	}
	s := parseClock(start)
	e := parseClock(end)
	cur := et.Hour()*60 + et.Minute()
	if s <= e {
		return cur >= s && cur < e
	}
	// window wraps midnight
	return cur >= s || cur < e
}

func parseClock(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

// ExpectedSlippageTicks implements spec §4.3's adaptive slippage estimate:
// 1.0 in liquid hours, 2.0 in illiquid hours, capped at 3.0, +50% if the
// current spread exceeds 1.5x SpreadMean (the mean of the last 30 quote
// spreads; the window is a quote count, not a time span).
func (m *Manager) ExpectedSlippageTicks(et time.Time) float64 {
	base := m.params.NormalHoursSlippageTicks
	if base <= 0 {
		base = 1.0
	}
	illiquid := m.params.IlliquidHoursSlippageTicks
	if illiquid <= 0 {
		illiquid = 2.0
	}
	expected := base
	if m.isIlliquidHour(et) {
		expected = illiquid
	}
	mean := m.SpreadMean()
	if mean > 0 && m.lastSpread > 1.5*mean {
		expected *= 1.5
	}
	if expected > 3.0 {
		expected = 3.0
	}
	return expected
}

// EntryGate evaluates spec §4.3's rejection rules for opening a new
// position on side. It returns (true, "") if entry is allowed, or
// (false, reason) otherwise.
func (m *Manager) EntryGate(side Side) (bool, string) {
	if !m.haveQuote || !m.current.Valid() {
		return false, "invalid_quote"
	}
	maxSpread := m.params.MaxAcceptableSpread
	if maxSpread <= 0 {
		maxSpread = 4
	}
	if m.lastSpread > maxSpread {
		return false, "spread_too_wide"
	}
	minDepth := m.params.MinBidAskSize
	if m.current.BidSize < minDepth || m.current.AskSize < minDepth {
		return false, "insufficient_depth"
	}
	if m.Widening() {
		return false, "spread_widening"
	}
	mean := m.SpreadMean()
	if mean > 0 && m.lastSpread > 2*mean {
		return false, "spread_above_hourly_mean"
	}
	return true, ""
}
