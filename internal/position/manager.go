package position

import (
	"errors"
	"time"

	"github.com/chidi150c/apexfutures/internal/indicators"
)

// ErrExitProviderUnavailable is returned by a provider that cannot produce
// an ExitParams bundle for the current context (spec §6: "Failure ⇒ use
// documented defaults and log EXIT_PROVIDER_FALLBACK").
var ErrExitProviderUnavailable = errors.New("exit_params_provider_unavailable")

// ExitFeatureVector is the input to the exit-params provider: the position
// context plus the latest indicator snapshot, per spec §6's "predict(
// exit_feature_vector)".
type ExitFeatureVector struct {
	Side              Side
	EntryPrice        float64
	RemainingContracts int
	OriginalContracts int
	UnrealizedTicks   float64
	RMultiple         float64
	HoldDurationMin   float64
	Regime            indicators.Regime
	Confidence        float64
	TradeType         string
}

// ExitParamsProvider is the polymorphic seam spec §6 defines for exit
// parameters, mirroring internal/signal.Scorer's shape: stateless,
// deterministic given identical input, and the manager must use its
// output verbatim.
type ExitParamsProvider interface {
	Predict(ExitFeatureVector) (ExitParams, error)
}

// StaticExitParamsProvider always returns the same bundle; used for
// dry_run/tests and as a documented example of the provider contract.
type StaticExitParamsProvider struct {
	Params ExitParams
}

func (s StaticExitParamsProvider) Predict(ExitFeatureVector) (ExitParams, error) {
	return s.Params, nil
}

// Decision is the result of evaluating a bar against the exit FSM: either
// no action, a full close, or a partial reduction.
type Decision struct {
	Action       Action
	Reason       ExitReason
	ExitContracts int
	ExitPrice    float64
}

// Action classifies what the manager wants the router to do.
type Action int

const (
	NoAction Action = iota
	ExitFull
	ExitPartial
)

// Manager evaluates spec §4.7's 11-rule strict-priority bar check against
// a single Position. One Manager per traded symbol; it owns no position
// state itself beyond what is passed in, so it composes cleanly with
// persistence (C8) snapshot/restore.
type Manager struct {
	provider     ExitParamsProvider
	tickSize     float64
	lastProviderFailed bool
}

// NewManager returns a Manager using provider for ExitParams and tickSize
// to convert tick-denominated distances to prices.
func NewManager(provider ExitParamsProvider, tickSize float64) *Manager {
	return &Manager{provider: provider, tickSize: tickSize}
}

// ProviderFailedLastCall reports whether the most recent EvaluateBar had to
// fall back to DefaultExitParams, for the EXIT_PROVIDER_FALLBACK alert.
func (m *Manager) ProviderFailedLastCall() bool { return m.lastProviderFailed }

// resolveParams calls the provider, falling back to defaults on failure
// per spec §6/§4.7.
func (m *Manager) resolveParams(fv ExitFeatureVector) ExitParams {
	params, err := m.provider.Predict(fv)
	m.lastProviderFailed = err != nil
	if err != nil {
		return DefaultExitParams()
	}
	return params
}

// EvaluateBar runs the strict rule order spec §4.7 mandates: the first
// firing rule wins. forcedFlatten/forcedReason come from the risk gate
// (C5); forcedFlatten short-circuits to rule 2 before any other
// rule is considered, matching "Session/event/license forced flatten" as
// the second-highest-priority rule (stop/target at priority 1 still wins
// if it fires on the very same bar).
func (m *Manager) EvaluateBar(p *Position, bar BarContext, forcedFlatten bool, forcedReason ExitReason) Decision {
	if p == nil || p.ExitSubstate == Closed {
		return Decision{Action: NoAction}
	}

	fv := ExitFeatureVector{
		Side: p.Side, EntryPrice: p.EntryPrice, RemainingContracts: p.RemainingContracts,
		OriginalContracts: p.OriginalContracts, UnrealizedTicks: p.UnrealizedTicks(bar.Close, m.tickSize),
		RMultiple: p.RMultiple(bar.Close, m.tickSize), HoldDurationMin: bar.Now.Sub(p.EntryTime).Minutes(),
		Regime: bar.Regime, Confidence: p.Confidence, TradeType: p.TradeType,
	}
	params := m.resolveParams(fv)
	tier := ClassifyConfidenceTier(p.Confidence)

	unrealizedTicks := p.UnrealizedTicks(bar.Close, m.tickSize)
	p.updatePeaks(unrealizedTicks)

	// Rule 1: hard stop / target hit.
	if d, ok := m.ruleStopOrTarget(p, bar); ok {
		return d
	}

	// Rule 2: session/event/license forced flatten.
	if forcedFlatten {
		return Decision{Action: ExitFull, Reason: forcedReason, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}
	}

	// Rule 3: breakeven arming (mutates stop, never exits on its own).
	m.ruleBreakevenArm(p, bar, params, unrealizedTicks)

	// Rule 4: trailing stop ratchet (mutates stop, never exits on its own).
	m.ruleTrailing(p, bar, params, tier, unrealizedTicks)

	// Rule 5: partial exits.
	if d, ok := m.rulePartials(p, bar, params, tier); ok {
		return d
	}

	// Rule 6: underwater timeout.
	if d, ok := m.ruleUnderwaterTimeout(p, bar, params, unrealizedTicks); ok {
		return d
	}

	// Rule 7: sideways timeout.
	if d, ok := m.ruleSidewaysTimeout(p, bar, params); ok {
		return d
	}

	// Rule 8: volatility spike.
	if d, ok := m.ruleVolSpike(p, bar, params); ok {
		return d
	}

	// Rule 9: profit drawdown.
	if d, ok := m.ruleProfitDrawdown(p, bar, params); ok {
		return d
	}

	// Rule 10: adverse momentum.
	if d, ok := m.ruleAdverseMomentum(p, bar, params); ok {
		return d
	}

	// Rule 11: max hold.
	if d, ok := m.ruleMaxHold(p, bar, params, tier); ok {
		return d
	}

	return Decision{Action: NoAction}
}

// BarContext is the per-bar data the exit evaluator needs beyond the
// Position itself.
type BarContext struct {
	Now    time.Time
	Close  float64
	ATR    float64
	Volume float64
	Regime indicators.Regime
}

func (p *Position) updatePeaks(unrealizedTicks float64) {
	if unrealizedTicks > p.PeakFavorable {
		p.PeakFavorable = unrealizedTicks
	}
	if unrealizedTicks > p.PeakUnrealized {
		p.PeakUnrealized = unrealizedTicks
	}
}

func (m *Manager) ruleStopOrTarget(p *Position, bar BarContext) (Decision, bool) {
	stopReason := ReasonStop
	if p.TrailingArmed {
		stopReason = ReasonTrailing
	}
	switch p.Side {
	case Long:
		if bar.Close <= p.CurrentStop {
			return Decision{Action: ExitFull, Reason: stopReason, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
		}
		if bar.Close >= p.InitialTarget {
			return Decision{Action: ExitFull, Reason: ReasonTarget, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
		}
	case Short:
		if bar.Close >= p.CurrentStop {
			return Decision{Action: ExitFull, Reason: stopReason, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
		}
		if bar.Close <= p.InitialTarget {
			return Decision{Action: ExitFull, Reason: ReasonTarget, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
		}
	}
	return Decision{}, false
}

func (m *Manager) ruleBreakevenArm(p *Position, bar BarContext, params ExitParams, unrealizedTicks float64) {
	if p.BreakevenArmed {
		return
	}
	threshold := params.BreakevenThresholdTicks
	if unrealizedTicks < threshold {
		return
	}
	offset := params.BreakevenOffsetTicks
	var newStop float64
	switch p.Side {
	case Long:
		newStop = p.EntryPrice + offset*m.tickSize
	case Short:
		newStop = p.EntryPrice - offset*m.tickSize
	}
	p.recordStopAdjustment(bar.Now, newStop, "BREAKEVEN_ARM")
	p.BreakevenArmed = true
}

func (m *Manager) ruleTrailing(p *Position, bar BarContext, params ExitParams, tier ConfidenceTier, unrealizedTicks float64) {
	if unrealizedTicks < params.TrailingMinProfitTicks {
		return
	}
	distance := params.EffectiveTrailingDistanceTicks(bar.Regime, string(p.Side)) * m.tickSize
	var candidate float64
	switch p.Side {
	case Long:
		candidate = bar.Close - distance
		if candidate > p.CurrentStop {
			p.recordStopAdjustment(bar.Now, candidate, "TRAILING")
			p.TrailingArmed = true
		}
	case Short:
		candidate = bar.Close + distance
		if p.CurrentStop == 0 || candidate < p.CurrentStop {
			p.recordStopAdjustment(bar.Now, candidate, "TRAILING")
			p.TrailingArmed = true
		}
	}
}

func (m *Manager) rulePartials(p *Position, bar BarContext, params ExitParams, tier ConfidenceTier) (Decision, bool) {
	rMultiple := p.RMultiple(bar.Close, m.tickSize)
	levels := []struct {
		level int
		r, pct float64
		reason ExitReason
	}{
		{1, params.Partial1R, params.Partial1Pct, ReasonPartial1},
		{2, params.Partial2R, params.Partial2Pct, ReasonPartial2},
		{3, params.Partial3R, params.Partial3Pct, ReasonPartial3},
	}
	for _, lvl := range levels {
		if p.TriggeredPartials[lvl.level] {
			continue
		}
		if rMultiple < lvl.r {
			continue
		}
		qty := int(float64(p.OriginalContracts) * lvl.pct)
		if qty < 1 {
			qty = 1
		}
		if qty > p.RemainingContracts {
			qty = p.RemainingContracts
		}
		p.TriggeredPartials[lvl.level] = true
		p.Partials = append(p.Partials, PartialExit{Level: lvl.level, At: bar.Now, Price: bar.Close, Contracts: qty})
		return Decision{Action: ExitPartial, Reason: lvl.reason, ExitContracts: qty, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleUnderwaterTimeout(p *Position, bar BarContext, params ExitParams, unrealizedTicks float64) (Decision, bool) {
	if unrealizedTicks > 0 {
		p.UnderwaterSince = time.Time{}
		return Decision{}, false
	}
	if p.UnderwaterSince.IsZero() {
		p.UnderwaterSince = bar.Now
		return Decision{}, false
	}
	if bar.Now.Sub(p.UnderwaterSince).Minutes() >= params.UnderwaterTimeoutMinutes {
		return Decision{Action: ExitFull, Reason: ReasonUnderwaterTime, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleSidewaysTimeout(p *Position, bar BarContext, params ExitParams) (Decision, bool) {
	distTicks := absF((bar.Close - p.EntryPrice) / m.tickSize)
	within := p.InitialRiskTicks > 0 && distTicks <= params.SidewaysRangePct*p.InitialRiskTicks
	if !within {
		p.SidewaysSince = time.Time{}
		return Decision{}, false
	}
	if p.SidewaysSince.IsZero() {
		p.SidewaysSince = bar.Now
		return Decision{}, false
	}
	if bar.Now.Sub(p.SidewaysSince).Minutes() >= params.SidewaysTimeoutMinutes {
		return Decision{Action: ExitFull, Reason: ReasonSidewaysTimeout, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleVolSpike(p *Position, bar BarContext, params ExitParams) (Decision, bool) {
	if p.EntryATR <= 0 {
		return Decision{}, false
	}
	mult := params.VolSpikeMult
	if bar.ATR >= mult*p.EntryATR {
		return Decision{Action: ExitFull, Reason: ReasonVolSpike, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleProfitDrawdown(p *Position, bar BarContext, params ExitParams) (Decision, bool) {
	if p.PeakUnrealized <= 0 {
		return Decision{}, false
	}
	current := p.UnrealizedTicks(bar.Close, m.tickSize)
	drawdown := p.PeakUnrealized - current
	if drawdown >= params.ProfitDrawdownPct*p.PeakUnrealized {
		return Decision{Action: ExitFull, Reason: ReasonProfitDrawdown, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleAdverseMomentum(p *Position, bar BarContext, params ExitParams) (Decision, bool) {
	adverse := (p.Side == Long && bar.Close < p.EntryPrice) || (p.Side == Short && bar.Close > p.EntryPrice)
	if adverse && bar.Volume >= params.VolumeExhaustionThreshold {
		p.AdverseBarStreak++
	} else {
		p.AdverseBarStreak = 0
	}
	if p.AdverseBarStreak >= params.AdverseMomentumBars {
		return Decision{Action: ExitFull, Reason: ReasonAdverseMomentum, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

func (m *Manager) ruleMaxHold(p *Position, bar BarContext, params ExitParams, tier ConfidenceTier) (Decision, bool) {
	maxHold := params.EffectiveMaxHoldMinutes(bar.Regime, string(p.Side))
	if bar.Now.Sub(p.EntryTime).Minutes() >= maxHold {
		return Decision{Action: ExitFull, Reason: ReasonMaxHold, ExitContracts: p.RemainingContracts, ExitPrice: bar.Close}, true
	}
	return Decision{}, false
}

// ApplyExit mutates p to reflect a fill of the given decision: reduces
// RemainingContracts, and on full exhaustion transitions to CLOSED.
// Idempotent by construction: callers invoke it exactly once per Decision,
// and TriggeredPartials already guards re-firing the same partial rule.
func (m *Manager) ApplyExit(p *Position, d Decision, realizedPnL float64, at time.Time) {
	if d.Action == NoAction {
		return
	}
	p.RemainingContracts -= d.ExitContracts
	p.RealizedPnL += realizedPnL
	if p.RemainingContracts <= 0 {
		p.RemainingContracts = 0
		switch d.Reason {
		case ReasonStop, ReasonTrailing:
			p.PriorSubstate = StopHit
		case ReasonForcedFlatten:
			p.PriorSubstate = ForcedFlatten
		default:
			p.PriorSubstate = Closing
		}
		p.ExitSubstate = Closed
		p.ClosedAt = at
		p.CloseReason = d.Reason
		return
	}
	switch d.Reason {
	case ReasonPartial1:
		p.ExitSubstate = Partial1
	case ReasonPartial2:
		p.ExitSubstate = Partial2
	case ReasonPartial3:
		p.ExitSubstate = Partial3
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
