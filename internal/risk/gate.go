// Package risk implements C5: the session/risk gate that blocks new entries
// and/or forces exits on daily loss, drawdown proximity, event blackout,
// maintenance windows, Friday cutoff, and license grace. Grounded on the
// teacher's Trader daily-loss circuit breaker (trader.go: dailyPnL,
// updateDaily, MaxDailyLossPct) generalized into a standalone gate the
// engine consults before admitting a SignalCandidate and on every bar for
// forced-flatten checks.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/apexfutures/internal/clock"
)

// ApproachTier is one of the three confidence/size de-risking tiers spec
// §4.5 defines for recovery mode (stop_on_approach=false).
type ApproachTier struct {
	LossFraction      float64 // |daily_pnl| / daily_loss_limit threshold
	ConfidenceFloor   float64
	MaxContractsScale float64
}

// approachTiers implements spec §4.5's "0.80→0.75, 0.90→0.85, 0.95→0.90;
// max contracts scaled to floor(max × {0.75, 0.50, 0.33})" table. Ordered
// from least to most severe; EffectiveTier picks the last one whose
// LossFraction threshold is met.
var approachTiers = []ApproachTier{
	{LossFraction: 0.80, ConfidenceFloor: 0.75, MaxContractsScale: 0.75},
	{LossFraction: 0.90, ConfidenceFloor: 0.85, MaxContractsScale: 0.50},
	{LossFraction: 0.95, ConfidenceFloor: 0.90, MaxContractsScale: 0.33},
}

const approachThreshold = 0.80

// Params is the subset of configuration the gate needs, mirroring the
// relevant fields of internal/config.Config (spec §6).
type Params struct {
	DailyLossLimit     float64
	StopOnApproach     bool
	MaxTradesPerDay    int
	MaxContracts       int
	ConfidenceThresh   float64
	SessionStartET     string
	MaintenanceStartET string
	FlattenForcedET    string
	FridayCutoffET     string
	FOMCBlockEnabled   bool
}

// EconomicEvent is a configured blackout window center; spec §4.5: "no
// entries from 30 min before to 60 min after a configured event; existing
// position flattened on entry to the blackout."
type EconomicEvent struct {
	At time.Time
}

// LicenseState mirrors the license client's view of entitlement (spec
// §4.10). Grace applies only while a position is open.
type LicenseState int

const (
	LicenseValid LicenseState = iota
	LicenseGraceWithPosition
	LicenseConflictWithPosition
	LicenseExpiredNoPosition
)

// SessionState is the per-trading-day counters and flags the gate
// maintains, reset at the configured session boundary (spec §4.5: "Session
// reset occurs at 18:00 ET: new SessionState.trading_date, starting_equity
// = current_equity, counters cleared, halt flags re-evaluated"), matching
// spec §3's glossary entry field-for-field so persistence (C8) can
// round-trip it verbatim.
// Money ledger fields (StartingEquity, CurrentEquity, PeakEquity, DailyPnL)
// use decimal.Decimal rather than float64: spec §8's testable property
// "daily_pnl_ledger = Σ realized_pnl(closed trades in session) to within
// floating-point tolerance" is a summation accumulated over an entire
// session, exactly the class of arithmetic float64 drifts on and decimal
// does not. Indicator/tick math elsewhere stays float64 (approximate
// statistical quantities, not settled money).
type SessionState struct {
	TradingDate       time.Time
	StartingEquity    decimal.Decimal
	CurrentEquity     decimal.Decimal
	PeakEquity        decimal.Decimal
	DailyPnL          decimal.Decimal
	TradesToday       int
	ConsecutiveWins   int
	ConsecutiveLosses int
	LastTradeAt       time.Time
	Halted            bool
	HaltReason        string
}

// Decision is the gate's verdict for a given instant, consumed by the
// signal engine (entry admission) and the position manager (forced
// flatten).
type Decision struct {
	EntriesAllowed    bool
	ForceFlattenAll   bool
	FlattenReason     string
	ConfidenceFloor   float64
	MaxContractsScale float64
	BlockReasons      []string
}

// Gate evaluates spec §4.5's rules. One Gate per traded symbol/session;
// the engine owns its SessionState and calls Reset at the session
// boundary.
type Gate struct {
	params          Params
	clk             clock.Clock
	state           SessionState
	events          []EconomicEvent
	flattenedEvents map[int]bool
}

// NewGate returns a Gate with a freshly initialized SessionState.
func NewGate(params Params, clk clock.Clock, startingEquity float64, events []EconomicEvent) *Gate {
	now := clk.Now()
	eq := decimal.NewFromFloat(startingEquity)
	return &Gate{
		params: params,
		clk:    clk,
		state: SessionState{
			TradingDate:    now,
			StartingEquity: eq,
			CurrentEquity:  eq,
			PeakEquity:     eq,
		},
		events:          events,
		flattenedEvents: map[int]bool{},
	}
}

// State returns a copy of the current session state for persistence (C8).
func (g *Gate) State() SessionState { return g.state }

// RestoreState overwrites the gate's session state, used on startup
// reconciliation (C8) to resume a partially-elapsed trading day.
func (g *Gate) RestoreState(s SessionState) { g.state = s }

// RecordTradeOpened increments the day's trade counter (spec §4.5 "max
// trades/day").
func (g *Gate) RecordTradeOpened() { g.state.TradesToday++ }

// RecordPnL folds realized P&L into the day's running total, mirroring the
// teacher's t.dailyPnL += pl (trader.go), and updates the win/loss streak
// and equity-curve fields spec §3's SessionState glossary entry names.
func (g *Gate) RecordPnL(pl float64, at time.Time) {
	d := decimal.NewFromFloat(pl)
	g.state.DailyPnL = g.state.DailyPnL.Add(d)
	g.state.CurrentEquity = g.state.CurrentEquity.Add(d)
	if g.state.CurrentEquity.GreaterThan(g.state.PeakEquity) {
		g.state.PeakEquity = g.state.CurrentEquity
	}
	if pl > 0 {
		g.state.ConsecutiveWins++
		g.state.ConsecutiveLosses = 0
	} else if pl < 0 {
		g.state.ConsecutiveLosses++
		g.state.ConsecutiveWins = 0
	}
	g.state.LastTradeAt = at
}

// Reset re-initializes the session at the configured boundary, matching
// the teacher's updateDaily/midnightUTC pattern but keyed to the
// ET session_start_et boundary instead of UTC midnight.
func (g *Gate) Reset(now time.Time, currentEquity float64) {
	eq := decimal.NewFromFloat(currentEquity)
	peak := eq
	if g.state.PeakEquity.GreaterThan(peak) {
		peak = g.state.PeakEquity
	}
	g.state = SessionState{
		TradingDate:    now,
		StartingEquity: eq,
		CurrentEquity:  eq,
		PeakEquity:     peak,
	}
}

// MaybeReset resets the session if now has crossed the configured
// session-start boundary since the last recorded TradingDate.
func (g *Gate) MaybeReset(now time.Time, currentEquity float64) bool {
	if sessionKeyET(now, g.params.SessionStartET) != sessionKeyET(g.state.TradingDate, g.params.SessionStartET) {
		g.Reset(now, currentEquity)
		return true
	}
	return false
}

// Evaluate returns the gate's decision at instant now, given whether a
// position is currently open and the current license state.
func (g *Gate) Evaluate(now time.Time, hasOpenPosition bool, license LicenseState) Decision {
	d := Decision{EntriesAllowed: true, ConfidenceFloor: g.params.ConfidenceThresh, MaxContractsScale: 1.0}

	lossFrac := 0.0
	if g.params.DailyLossLimit > 0 {
		lossFrac = absF(g.state.DailyPnL.InexactFloat64()) / g.params.DailyLossLimit
	}

	if lossFrac >= 1.0 {
		d.EntriesAllowed = false
		d.BlockReasons = append(d.BlockReasons, "DAILY_LOSS_LIMIT")
		g.state.Halted = true
		g.state.HaltReason = "DAILY_LOSS_LIMIT"
	} else if lossFrac >= approachThreshold {
		if g.params.StopOnApproach {
			d.EntriesAllowed = false
			d.BlockReasons = append(d.BlockReasons, "DAILY_LOSS_APPROACH")
		} else {
			tier := currentTier(lossFrac)
			d.ConfidenceFloor = tier.ConfidenceFloor
			d.MaxContractsScale = tier.MaxContractsScale
			d.BlockReasons = append(d.BlockReasons, "RECOVERY_MODE_TIER")
		}
	}

	if g.params.MaxTradesPerDay > 0 && g.state.TradesToday >= g.params.MaxTradesPerDay {
		d.EntriesAllowed = false
		d.BlockReasons = append(d.BlockReasons, "MAX_TRADES_PER_DAY")
	}

	et := clock.InET(now)
	weekday := et.Weekday()

	if weekday >= time.Monday && weekday <= time.Friday {
		if inMaintenanceWindow(et, g.params.MaintenanceStartET, g.params.SessionStartET) {
			d.EntriesAllowed = false
			d.BlockReasons = append(d.BlockReasons, "MAINTENANCE_WINDOW")
			if atOrAfterHHMM(et, g.params.MaintenanceStartET) {
				d.ForceFlattenAll = true
				d.FlattenReason = "MAINTENANCE_FLATTEN"
			}
		}
	}

	if weekday == time.Friday {
		if atOrAfterHHMM(et, g.params.FridayCutoffET) {
			d.EntriesAllowed = false
			d.BlockReasons = append(d.BlockReasons, "FRIDAY_CUTOFF")
		}
		if atOrAfterHHMM(et, g.params.FlattenForcedET) {
			d.ForceFlattenAll = true
			d.FlattenReason = "FRIDAY_FLATTEN"
		}
	}

	if g.params.FOMCBlockEnabled {
		if idx, inBlackout := g.eventBlackoutIndex(now); inBlackout {
			d.EntriesAllowed = false
			d.BlockReasons = append(d.BlockReasons, "ECONOMIC_EVENT_BLACKOUT")
			if !g.flattenedEvents[idx] {
				d.ForceFlattenAll = true
				d.FlattenReason = "ECONOMIC_EVENT_FLATTEN"
				g.flattenedEvents[idx] = true
			}
		}
	}

	switch license {
	case LicenseGraceWithPosition:
		d.EntriesAllowed = false
		d.BlockReasons = append(d.BlockReasons, "LICENSE_GRACE")
	case LicenseConflictWithPosition:
		// spec §6: a session conflict detected while holding a position
		// blocks new entries only and lets the normal exit ladder manage
		// the existing position out — it is not an emergency flatten.
		d.EntriesAllowed = false
		d.BlockReasons = append(d.BlockReasons, "LICENSE_CONFLICT")
	case LicenseExpiredNoPosition:
		d.EntriesAllowed = false
		d.ForceFlattenAll = hasOpenPosition
		if hasOpenPosition {
			d.FlattenReason = "LICENSE_EXPIRED"
		}
		d.BlockReasons = append(d.BlockReasons, "LICENSE_EXPIRED")
	}

	return d
}

// eventBlackoutIndex reports the index of the first configured economic
// event whose blackout window (30 min before to 60 min after) contains
// now, per spec §4.5. The index lets Evaluate flatten exactly once per
// event via g.flattenedEvents rather than on every bar inside the window.
func (g *Gate) eventBlackoutIndex(now time.Time) (idx int, inBlackout bool) {
	for i, ev := range g.events {
		start := ev.At.Add(-30 * time.Minute)
		end := ev.At.Add(60 * time.Minute)
		if !now.Before(start) && now.Before(end) {
			return i, true
		}
	}
	return -1, false
}

func currentTier(lossFrac float64) ApproachTier {
	tier := approachTiers[0]
	for _, t := range approachTiers {
		if lossFrac >= t.LossFraction {
			tier = t
		}
	}
	return tier
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sessionKeyET(t time.Time, hhmm string) time.Time {
	et := clock.InET(t)
	h, m := parseHHMMLocal(hhmm)
	boundary := time.Date(et.Year(), et.Month(), et.Day(), h, m, 0, 0, et.Location())
	if et.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary.UTC()
}

// inMaintenanceWindow reports whether et falls in [maintenanceStart,
// sessionStart) on the same calendar day, handling the window wrapping
// past midnight when sessionStart < maintenanceStart is not the case here
// (16:45-18:00 same day per spec default) but kept general.
func inMaintenanceWindow(et time.Time, maintenanceHHMM, sessionHHMM string) bool {
	mh, mm := parseHHMMLocal(maintenanceHHMM)
	sh, sm := parseHHMMLocal(sessionHHMM)
	maintStart := time.Date(et.Year(), et.Month(), et.Day(), mh, mm, 0, 0, et.Location())
	sessStart := time.Date(et.Year(), et.Month(), et.Day(), sh, sm, 0, 0, et.Location())
	if sessStart.Before(maintStart) {
		sessStart = sessStart.AddDate(0, 0, 1)
	}
	return !et.Before(maintStart) && et.Before(sessStart)
}

func atOrAfterHHMM(et time.Time, hhmm string) bool {
	h, m := parseHHMMLocal(hhmm)
	boundary := time.Date(et.Year(), et.Month(), et.Day(), h, m, 0, 0, et.Location())
	return !et.Before(boundary)
}

func parseHHMMLocal(hhmm string) (int, int) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
