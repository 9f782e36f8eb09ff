package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/clock"
	"github.com/chidi150c/apexfutures/internal/config"
	"github.com/chidi150c/apexfutures/internal/experience"
	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/license"
	"github.com/chidi150c/apexfutures/internal/marketdata"
	"github.com/chidi150c/apexfutures/internal/metrics"
	"github.com/chidi150c/apexfutures/internal/persistence"
	"github.com/chidi150c/apexfutures/internal/position"
	"github.com/chidi150c/apexfutures/internal/quotes"
	"github.com/chidi150c/apexfutures/internal/risk"
	"github.com/chidi150c/apexfutures/internal/router"
	"github.com/chidi150c/apexfutures/internal/signal"
)

// Deps bundles every collaborator the Engine drives. All fields are
// required except License, which is nil when the deployment does not gate
// on a session lock (e.g. a backtest run).
type Deps struct {
	Clock       clock.Clock
	Feed        *marketdata.Feed
	Indicators  *indicators.Pipeline
	Quotes      *quotes.Manager
	Signal      *signal.Engine
	Risk        *risk.Gate
	Position    *position.Manager
	Router      *router.Router
	Store       *persistence.Store
	Recorder    *experience.Recorder
	Metrics     *metrics.Metrics
	License     *license.Client
	Audit       *experience.AuditLog
	Log         zerolog.Logger
}

// Engine is C10: the single-threaded event loop that owns the traded
// instrument's entire mutable state for the duration of the run. Grounded
// on the teacher's Trader (trader.go), which centralizes mutable state
// (position, dailyPnL, model) behind one struct and one run loop; here the
// mutex is removed entirely because every field is touched only from the
// loop goroutine (spec §5: "the engine is a single actor; collaborators
// never share mutable state with it except through the event queue").
type Engine struct {
	deps       Deps
	cfg        config.Config
	tickSize   float64
	instrument string

	queue *Queue

	pos           *position.Position
	trajectory    *experience.TrajectoryTracker
	lastFinalize  time.Time
	licenseState  license.State
	hasPosition   bool

	lastHealth  time.Time
	lastPosSnap time.Time
	lastSessSnap time.Time
	lastLicense time.Time

	halted bool
	quiesceOnly bool
}

// New wires an Engine from Deps and the resolved Config. tickSize must be
// the instrument's minimum price increment.
func New(cfg config.Config, tickSize float64, deps Deps) *Engine {
	return &Engine{
		deps:         deps,
		cfg:          cfg,
		tickSize:     tickSize,
		instrument:   cfg.Instrument,
		queue:        NewQueue(),
		licenseState: license.Valid,
	}
}

// Queue exposes the bounded event queue to producer goroutines (the
// broker's tick stream, signal handlers for EMERGENCY events).
func (e *Engine) Queue() *Queue { return e.queue }

// Bootstrap runs spec §4.8's startup broker-reconciliation sequence before
// Run is ever called: load the persisted position/session snapshots, ask
// the broker for its authoritative open positions, reconcile the two
// (broker wins on any mismatch), and seed the engine's in-memory state so a
// restart resumes mid-session rather than starting flat. defaultStopTicks
// is used only if the broker shows a position with no matching snapshot
// (the reconstructed stop sits defaultStopTicks ticks from the broker's
// average price, persistence.Reconcile).
func (e *Engine) Bootstrap(ctx context.Context, br broker.Broker, defaultStopTicks float64) error {
	if e.deps.Store == nil {
		return nil
	}

	if e.deps.Risk != nil {
		sessSnap, err := e.deps.Store.LoadSession()
		if err != nil {
			return fmt.Errorf("engine: bootstrap load session: %w", err)
		}
		if sessSnap != nil {
			e.deps.Risk.RestoreState(sessSnap.ToSessionState())
		}
	}

	posSnap, err := e.deps.Store.LoadPosition()
	if err != nil {
		return fmt.Errorf("engine: bootstrap load position: %w", err)
	}

	var brokerPositions []broker.BrokerPosition
	if br != nil {
		brokerPositions, err = br.ListPositions(ctx)
		if err != nil {
			return fmt.Errorf("engine: bootstrap list broker positions: %w", err)
		}
	}

	currentATR := 0.0
	if posSnap != nil {
		currentATR = posSnap.EntryATR
	}
	result := persistence.Reconcile(posSnap, brokerPositions, e.instrument, currentATR, e.tickSize, defaultStopTicks)
	if result.Warning != "" {
		e.deps.Log.Warn().Str("warning", result.Warning).Msg("startup reconciliation")
	}
	if result.Discarded {
		_ = e.deps.Store.ClearPosition()
	}
	if result.Position != nil {
		e.pos = result.Position
		e.hasPosition = true
		e.trajectory = &experience.TrajectoryTracker{}
		if result.Reconstructed {
			_ = e.deps.Store.SavePosition(persistence.FromPosition(e.pos))
		}
	}
	return nil
}

// StepBar drives the engine's bar cadence directly with a caller-supplied
// bar, bypassing Run's real-time ticker and the tick-to-bar feed pipeline
// entirely. This is the deterministic replay seam internal/backtest uses:
// with a clock.Manual clock and a CSV-derived bar stream, a backtest
// produces byte-for-byte the same decisions the live tick path would for an
// equivalent bar sequence (spec §9's "global time" design note).
func (e *Engine) StepBar(ctx context.Context, b marketdata.Bar) error {
	if ev, ok := e.drainHighestPriority(); ok {
		if err := e.dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return e.onBarFinalized(ctx, b)
}

// allLicenseStates names every license.State label for the single-active
// gauge pattern (spec's ambient metrics stack).
var allLicenseStates = []string{
	license.Valid.String(), license.GraceWithPosition.String(),
	license.ExpiredNoPosition.String(), license.Conflict.String(),
}

// Run drains the queue in strict priority order until ctx is cancelled.
// Priority is enforced by draining, in order, any EMERGENCY event, then any
// EXIT_TRIGGER, then a single TICK/BAR_FINALIZED/TIMER/CLOUD_CHECK event,
// then idling — matching spec §4.10's "EMERGENCY > EXIT_TRIGGER > TICK >
// BAR_FINALIZED > TIMER > CLOUD_CHECK > IDLE".
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown(ctx)
		default:
		}

		if ev, ok := e.drainHighestPriority(); ok {
			if err := e.dispatch(ctx, ev); err != nil {
				e.deps.Log.Error().Err(err).Str("event", ev.Kind.String()).Msg("event dispatch failed")
			}
			continue
		}

		select {
		case <-ctx.Done():
			return e.shutdown(ctx)
		case <-ticker.C:
			e.onClockTick(ctx)
		}
	}
}

// drainHighestPriority scans the queue's buffered events (non-blocking) and
// returns the single highest-priority one ready this instant, re-pushing
// the rest in original relative order. A bounded channel makes a true
// priority heap unnecessary at this queue depth: spec's 7-level priority
// only needs to win against events that are already sitting in the FIFO,
// which is a bounded, cheap scan.
func (e *Engine) drainHighestPriority() (Event, bool) {
	n := e.queue.Depth()
	if n == 0 {
		return Event{}, false
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev, ok := e.queue.TryPop()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return Event{}, false
	}
	bestIdx := 0
	for i, ev := range events {
		if ev.Kind < events[bestIdx].Kind {
			bestIdx = i
		}
	}
	best := events[bestIdx]
	for i, ev := range events {
		if i != bestIdx {
			e.queue.Push(ev)
		}
	}
	return best, true
}

func (e *Engine) dispatch(ctx context.Context, ev Event) error {
	if e.deps.Metrics != nil {
		e.deps.Metrics.QueueDepth.Set(float64(e.queue.Depth()))
	}
	switch ev.Kind {
	case Emergency:
		return e.onEmergency(ctx, ev.Emergency)
	case ExitTrigger:
		return e.onExitTrigger(ctx, ev.ExitTrigger)
	case Tick:
		return e.onTick(ctx, ev.Tick)
	case BarFinalized:
		if ev.Bar == nil {
			return nil
		}
		return e.onBarFinalized(ctx, *ev.Bar)
	case Timer:
		return e.onTimer(ctx, ev.Timer)
	case CloudCheck:
		return e.checkLicense(ctx)
	default:
		return nil
	}
}

// onClockTick fires the wall-clock-driven cadences when the queue itself
// is empty: the minute-boundary bar finalize check and the four timers
// (spec §4.10).
func (e *Engine) onClockTick(ctx context.Context) {
	now := e.deps.Clock.Now()

	if now.Sub(e.lastHealth) >= 20*time.Second {
		e.queue.Push(Event{Kind: Timer, Timer: TimerHealthHeartbeat, EnqueuedAt: now})
		e.lastHealth = now
	}
	if now.Sub(e.lastPosSnap) >= 30*time.Second {
		e.queue.Push(Event{Kind: Timer, Timer: TimerPositionSnapshot, EnqueuedAt: now})
		e.lastPosSnap = now
	}
	if now.Sub(e.lastSessSnap) >= 60*time.Second {
		e.queue.Push(Event{Kind: Timer, Timer: TimerSessionSnapshot, EnqueuedAt: now})
		e.lastSessSnap = now
	}
	if now.Sub(e.lastLicense) >= 300*time.Second {
		e.queue.Push(Event{Kind: Timer, Timer: TimerLicenseValidate, EnqueuedAt: now})
		e.lastLicense = now
	}

	if ev, ok := e.drainHighestPriority(); ok {
		_ = e.dispatch(ctx, ev)
	}
}

func (e *Engine) onTimer(ctx context.Context, name TimerName) error {
	switch name {
	case TimerHealthHeartbeat:
		if e.deps.License != nil {
			if err := e.deps.License.Heartbeat(ctx); err != nil {
				e.deps.Log.Warn().Err(err).Msg("license heartbeat failed")
			}
		}
		if e.deps.Router != nil && e.deps.Router.BreakerOpen() {
			e.deps.Router.TryCloseBreaker(ctx)
		}
		return nil
	case TimerPositionSnapshot:
		return e.flushPositionSnapshot()
	case TimerSessionSnapshot:
		return e.flushSessionSnapshot()
	case TimerLicenseValidate:
		return e.checkLicense(ctx)
	case TimerMinuteBoundary:
		return nil
	default:
		return nil
	}
}

func (e *Engine) flushPositionSnapshot() error {
	if e.deps.Store == nil {
		return nil
	}
	if e.pos == nil {
		return e.deps.Store.ClearPosition()
	}
	return e.deps.Store.SavePosition(persistence.FromPosition(e.pos))
}

func (e *Engine) flushSessionSnapshot() error {
	if e.deps.Store == nil || e.deps.Risk == nil {
		return nil
	}
	return e.deps.Store.SaveSession(persistence.FromSessionState(e.deps.Risk.State()))
}

// checkLicense validates the license and folds the result into the risk
// gate's forced-flatten evaluation on the next bar (spec §4.10: "license
// state is re-evaluated every 300s and on reconnect").
func (e *Engine) checkLicense(ctx context.Context) error {
	if e.deps.License == nil {
		return nil
	}
	state, _, err := e.deps.License.Validate(ctx, e.hasPosition)
	if e.deps.Metrics != nil {
		e.deps.Metrics.SetLicenseState(state.String(), allLicenseStates)
	}
	e.licenseState = state
	return err
}

// riskLicenseState maps the license client's state to the gate's view of
// it. license.Conflict while a position is open is LICENSE_CONFLICT (spec
// §6: block entries, let the existing position exit normally) rather than
// an emergency flatten; with no position open there is nothing to manage
// out, so it folds into the same entries-blocked bucket as an expired
// license.
func (e *Engine) riskLicenseState() risk.LicenseState {
	switch e.licenseState {
	case license.GraceWithPosition:
		return risk.LicenseGraceWithPosition
	case license.Conflict:
		if e.hasPosition {
			return risk.LicenseConflictWithPosition
		}
		return risk.LicenseExpiredNoPosition
	case license.ExpiredNoPosition:
		return risk.LicenseExpiredNoPosition
	default:
		return risk.LicenseValid
	}
}

// onEmergency is the highest-priority path: a session-halt or
// license-conflict event. It forces an immediate flatten attempt and then
// stops admitting new entries for the remainder of the run (spec §5:
// "session-halt cancellation drains the queue to quiescence but lets any
// in-flight forced-flatten retries finish").
func (e *Engine) onEmergency(ctx context.Context, ev *EmergencyEvent) error {
	e.halted = true
	e.quiesceOnly = true
	e.deps.Log.Error().Str("reason", ev.Reason).Msg("emergency: forcing flatten and halting entries")
	if e.pos == nil || e.pos.ExitSubstate == position.Closed {
		return nil
	}
	return e.forceFlatten(ctx, router.ReasonEmergency)
}

func (e *Engine) onExitTrigger(ctx context.Context, ev *ExitTriggerEvent) error {
	if e.pos == nil || e.pos.ExitSubstate == position.Closed {
		return nil
	}
	bar, ok := e.deps.Feed.PartialBar()
	if !ok {
		return nil
	}
	return e.evaluateExit(ctx, bar)
}

// onTick feeds the tick into the market-data feed, updates quote analytics,
// and finalizes any bar(s) the feed produced, driving the bar-cadence
// pipeline (indicators -> exit evaluation -> signal evaluation) for each.
func (e *Engine) onTick(ctx context.Context, te *TickEvent) error {
	raw := marketdata.Tick{
		Bid: te.Bid, Ask: te.Ask, Last: te.Last,
		BidSize: te.BidSize, AskSize: te.AskSize, LastSize: te.LastSize,
		Timestamp: te.Timestamp,
	}
	now := e.deps.Clock.Now()
	t, ok := e.deps.Feed.Ingest(raw, now)
	if !ok {
		return nil
	}
	e.deps.Quotes.Update(t)

	if sev := e.deps.Feed.Staleness(now); sev == marketdata.StaleForceFlatten && e.pos != nil && e.pos.ExitSubstate != position.Closed {
		if err := e.forceFlatten(ctx, router.ReasonEmergency); err != nil {
			return err
		}
	}

	bars := e.deps.Feed.OnTick(t)
	for _, b := range bars {
		if err := e.onBarFinalized(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// onBarFinalized runs the full per-bar cadence: compute indicators, run
// the exit FSM if a position is open, then evaluate new entries if the
// risk gate still allows them (spec §4.10's minute-boundary step).
func (e *Engine) onBarFinalized(ctx context.Context, b marketdata.Bar) error {
	snap := e.deps.Indicators.OnBar(b)
	e.lastFinalize = b.StartTS

	decision := e.deps.Risk.Evaluate(e.deps.Clock.Now(), e.hasPosition, e.riskLicenseState())
	if sev := e.deps.Feed.Staleness(e.deps.Clock.Now()); sev >= marketdata.StaleBlockEntries {
		decision.EntriesAllowed = false
		decision.BlockReasons = append(decision.BlockReasons, "FEED_STALE")
	}
	if e.deps.Metrics != nil {
		for _, reason := range decision.BlockReasons {
			e.deps.Metrics.RiskBlockTotal.WithLabelValues(reason).Inc()
		}
		e.deps.Metrics.DailyPnLUSD.Set(e.deps.Risk.State().DailyPnL.InexactFloat64())
		e.deps.Metrics.ConsecutiveLosses.Set(float64(e.deps.Risk.State().ConsecutiveLosses))
	}
	if e.deps.Audit != nil {
		_ = e.deps.Audit.RecordRiskDecision(b.StartTS, decision)
	}

	if e.pos != nil && e.pos.ExitSubstate != position.Closed {
		bc := position.BarContext{Now: b.StartTS, Close: b.Close, ATR: snap.ATR, Volume: b.Volume, Regime: snap.Regime}
		if decision.ForceFlattenAll {
			if err := e.forceFlatten(ctx, router.ReasonEmergency); err != nil {
				return err
			}
		} else if err := e.evaluateExit(ctx, bc); err != nil {
			return err
		}
		return nil
	}

	if !decision.EntriesAllowed || e.quiesceOnly {
		return nil
	}
	return e.evaluateEntry(ctx, b, snap, decision)
}

func (e *Engine) evaluateExit(ctx context.Context, bc position.BarContext) error {
	if e.trajectory != nil {
		e.trajectory.Update(e.pos.UnrealizedTicks(bc.Close, e.tickSize), e.pos.RMultiple(bc.Close, e.tickSize))
	}
	d := e.deps.Position.EvaluateBar(e.pos, bc, false, "")
	if e.deps.Position.ProviderFailedLastCall() && e.deps.Metrics != nil {
		e.deps.Metrics.ExitProviderFallbackTotal.Inc()
	}
	return e.applyExitDecision(ctx, d, bc.Now)
}

func (e *Engine) forceFlatten(ctx context.Context, reason router.ExitReason) error {
	if e.pos == nil {
		return nil
	}
	d := position.Decision{Action: position.ExitFull, Reason: position.ReasonForcedFlatten, ExitContracts: e.pos.RemainingContracts, ExitPrice: e.pos.EntryPrice}
	return e.applyExitDecision(ctx, d, e.deps.Clock.Now())
}

func (e *Engine) applyExitDecision(ctx context.Context, d position.Decision, at time.Time) error {
	if d.Action == position.NoAction {
		return nil
	}
	side := routerSide(oppositeSide(e.pos.Side))
	routerReason := toRouterReason(d.Reason)

	outcome, err := e.deps.Router.Exit(ctx, e.instrument, side, d.ExitContracts, routerReason, d.ExitPrice)
	if err != nil {
		return fmt.Errorf("engine: exit order failed: %w", err)
	}
	if e.deps.Audit != nil && outcome.Order != nil {
		_ = e.deps.Audit.RecordOrderState(at, outcome.Order.ID, e.instrument, string(side), string(outcome.Order.Status), outcome.Order.FilledQty, outcome.Order.RequestedQty)
	}

	filledPrice := d.ExitPrice
	if outcome.Order != nil && outcome.Order.AvgFillPrice > 0 {
		filledPrice = outcome.Order.AvgFillPrice
	}
	realized := float64(d.ExitContracts) * (filledPrice - e.pos.EntryPrice) * sideSignOf(e.pos.Side)

	e.deps.Position.ApplyExit(e.pos, d, realized, at)
	if e.deps.Metrics != nil {
		e.deps.Metrics.ExitReasons.WithLabelValues(string(d.Reason), string(e.pos.Side)).Inc()
	}

	if e.pos.ExitSubstate == position.Closed {
		e.deps.Risk.RecordPnL(e.pos.RealizedPnL, at)
		if e.deps.Metrics != nil {
			result := "scratch"
			switch {
			case e.pos.RealizedPnL > 0:
				result = "win"
			case e.pos.RealizedPnL < 0:
				result = "loss"
			}
			e.deps.Metrics.TradesTotal.WithLabelValues(result).Inc()
		}
		if e.deps.Recorder != nil && e.trajectory != nil {
			summary := e.trajectory.Finalize(e.pos)
			duration := int(at.Sub(e.pos.EntryTime).Minutes())
			params := position.DefaultExitParams()
			_ = e.deps.Recorder.RecordExit(e.pos, params, summary, duration)
		}
		e.hasPosition = false
		e.pos = nil
		e.trajectory = nil
		if e.deps.Store != nil {
			_ = e.deps.Store.ClearPosition()
		}
	}
	return nil
}

func (e *Engine) evaluateEntry(ctx context.Context, b marketdata.Bar, snap indicators.Snapshot, decision risk.Decision) error {
	sessState := e.deps.Risk.State()
	sc := signal.SessionContext{
		MinuteOfSessionET: signal.MinuteOfSession(clock.InET(b.StartTS), e.cfg.SessionStartET),
		DayOfWeek:         int(b.StartTS.Weekday()),
		DailyPnL:          sessState.DailyPnL.InexactFloat64(),
		DailyTrades:       sessState.TradesToday,
		ConsecutiveWins:   sessState.ConsecutiveWins,
		ConsecutiveLosses: sessState.ConsecutiveLosses,
		HasOpenPosition:   e.hasPosition,
		EquityRatio:       safeRatio(sessState.CurrentEquity.InexactFloat64(), sessState.StartingEquity.InexactFloat64()),
	}

	cand, err := e.deps.Signal.OnBar(b, snap, sc, decision.EntriesAllowed)
	if err != nil || cand == nil {
		if err != nil && e.deps.Metrics != nil {
			e.deps.Metrics.ScorerFallbackTotal.Inc()
		}
		return nil
	}

	if e.deps.Recorder != nil {
		_ = e.deps.Recorder.RecordSignal(cand)
	}
	if e.deps.Metrics != nil {
		kind := "taken"
		if cand.GhostFlag {
			kind = "ghost"
		} else if cand.Exploration {
			kind = "exploration"
		}
		e.deps.Metrics.SignalsTotal.WithLabelValues(kind).Inc()
	}
	if cand.GhostFlag {
		return nil
	}
	if cand.Confidence < decision.ConfidenceFloor {
		return nil
	}

	contracts := e.sizePosition(decision, snap, cand.Exploration)
	if contracts < 1 {
		return nil
	}

	side := routerSide(signalToPositionSide(cand.Side))
	outcome, err := e.deps.Router.Enter(ctx, e.instrument, side, contracts, cand.EntryRefPrice)
	if err != nil {
		return fmt.Errorf("engine: entry order failed: %w", err)
	}
	if outcome.Aborted || outcome.Order == nil {
		return nil
	}
	if e.deps.Audit != nil {
		_ = e.deps.Audit.RecordOrderState(b.StartTS, outcome.Order.ID, e.instrument, string(side), string(outcome.Order.Status), outcome.Order.FilledQty, outcome.Order.RequestedQty)
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.OrdersTotal.WithLabelValues(e.cfg.BrokerType, string(side)).Inc()
		e.deps.Metrics.DecisionsTotal.WithLabelValues(string(cand.Side)).Inc()
	}

	params := position.DefaultExitParams()
	tier := position.ClassifyConfidenceTier(cand.Confidence)
	e.pos = position.NewPosition(uuid.NewString(), e.instrument, signalToPositionSide(cand.Side),
		outcome.Order.AvgFillPrice, outcome.Order.FilledQty, snap.ATR, string(cand.TradeType),
		cand.Confidence, b.StartTS, params, snap.Regime, tier, e.tickSize)
	e.trajectory = &experience.TrajectoryTracker{}
	e.hasPosition = true
	e.deps.Risk.RecordTradeOpened()
	if e.deps.Store != nil {
		_ = e.deps.Store.SavePosition(persistence.FromPosition(e.pos))
	}
	return nil
}

// sizePosition applies spec §4.2's risk-per-trade sizing, scaled by the
// risk gate's recovery-mode MaxContractsScale (spec §4.5), capped at
// MaxContracts, and capped at 1 contract for an exploration candidate
// (spec §6: "is_exploration forces 1-contract sizing").
func (e *Engine) sizePosition(decision risk.Decision, snap indicators.Snapshot, exploration bool) int {
	if snap.ATR <= 0 {
		return 0
	}
	riskDollarsPerContract := snap.ATR * e.tickSize
	if riskDollarsPerContract <= 0 {
		return 0
	}
	riskBudget := e.cfg.AccountSize * e.cfg.RiskPerTrade
	contracts := int(riskBudget / riskDollarsPerContract)

	scale := decision.MaxContractsScale
	if scale <= 0 {
		scale = 1.0
	}
	maxAllowed := int(float64(e.cfg.MaxContracts) * scale)
	if contracts > maxAllowed {
		contracts = maxAllowed
	}
	if contracts > e.cfg.MaxContracts {
		contracts = e.cfg.MaxContracts
	}
	if exploration && contracts > 1 {
		contracts = 1
	}
	return contracts
}

// shutdown lets any in-flight forced-flatten retry finish before returning,
// per spec §5's quiescence semantics.
func (e *Engine) shutdown(ctx context.Context) error {
	if e.deps.License != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.deps.License.Release(releaseCtx)
	}
	return ctx.Err()
}

func oppositeSide(s position.Side) position.Side {
	if s == position.Long {
		return position.Short
	}
	return position.Long
}

func sideSignOf(s position.Side) float64 {
	if s == position.Long {
		return 1
	}
	return -1
}

func routerSide(s position.Side) broker.Side {
	if s == position.Long {
		return broker.Long
	}
	return broker.Short
}

func signalToPositionSide(s signal.Side) position.Side {
	if s == signal.SideLong {
		return position.Long
	}
	return position.Short
}

func toRouterReason(r position.ExitReason) router.ExitReason {
	switch r {
	case position.ReasonTarget:
		return router.ReasonTarget
	case position.ReasonPartial1, position.ReasonPartial2, position.ReasonPartial3:
		return router.ReasonPartial
	case position.ReasonStop:
		return router.ReasonStop
	case position.ReasonTrailing:
		return router.ReasonTrailing
	case position.ReasonForcedFlatten:
		return router.ReasonEmergency
	default:
		return router.ReasonTime
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 1
	}
	return num / den
}
