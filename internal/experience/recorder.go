// Package experience implements C9: the append-only JSONL experience
// recorder for signal candidates (taken and ghost) and closed-position exit
// trajectories. Grounded on the retrieval pack's replay.TraceStore
// (libs/replay/replay.go: sequence-numbered, O_APPEND JSON-line writes),
// generalized from a single decision trace into three purpose-specific
// sinks (signal, ghost-outcome, exit) and strengthened to fsync every
// append, per spec §4.9: "File writes are line-atomic (write + fsync) to
// survive crashes without truncation."
package experience

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chidi150c/apexfutures/internal/position"
	"github.com/chidi150c/apexfutures/internal/signal"
)

// SignalRecord is written for every SignalCandidate, taken or ghost, at
// decision time (spec §4.9: "writes a record with the full feature vector
// at decision time").
type SignalRecord struct {
	SchemaVersion int `json:"schema_version"`
	Seq           uint64 `json:"seq"`
	RecordedAt    time.Time `json:"recorded_at"`

	CandidateID   string              `json:"candidate_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Side          signal.Side         `json:"side"`
	EntryRefPrice float64             `json:"entry_ref_price"`
	TradeType     signal.TradeType    `json:"trade_type"`
	Confidence    float64             `json:"confidence"`
	GhostFlag     bool                `json:"ghost_flag"`
	Exploration   bool                `json:"exploration"`
	Reason        string              `json:"reason"`
	Features      signal.FeatureVector `json:"features"`

	// Outcome is appended once known: for taken trades when the position
	// closes, for ghosts once the simulated trajectory resolves.
	Outcome *OutcomeRecord `json:"outcome,omitempty"`
}

// OutcomeRecord is the realized (or ghost-simulated) result of a
// SignalRecord, appended in a follow-up line rather than mutating the
// original (the file is append-only; readers fold by candidate_id).
type OutcomeRecord struct {
	CandidateID string    `json:"candidate_id"`
	ClosedAt    time.Time `json:"closed_at"`
	ExitReason  string    `json:"exit_reason"`
	RealizedPnL float64   `json:"realized_pnl"`
	DurationBars int      `json:"duration_bars"`
	Simulated   bool      `json:"simulated"`
}

// ExitRecord is written once per closed position (spec §4.9): the
// verbatim exit_params bundle used, the bar-by-bar trajectory summary, and
// the final disposition.
type ExitRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Seq           uint64    `json:"seq"`
	RecordedAt    time.Time `json:"recorded_at"`

	PositionID string            `json:"position_id"`
	Instrument string            `json:"instrument"`
	Side       position.Side     `json:"side"`
	EntryPrice float64           `json:"entry_price"`
	EntryTime  time.Time         `json:"entry_time"`
	ClosedAt   time.Time         `json:"closed_at"`
	DurationBars int             `json:"duration_bars"`

	ExitParams position.ExitParams `json:"exit_params"`
	Trajectory TrajectorySummary   `json:"trajectory"`

	FinalReason position.ExitReason `json:"final_reason"`
	RealizedPnL float64             `json:"realized_pnl"`
}

// TrajectorySummary is spec §4.9's bar-by-bar rollup: "MAE, MFE,
// peak_unrealized, drawdown_from_peak, max_r_achieved, min_r_achieved,
// stop_adjustments[], partial_exits[]".
type TrajectorySummary struct {
	MAETicks             float64                  `json:"mae_ticks"`
	MFETicks             float64                  `json:"mfe_ticks"`
	PeakUnrealizedTicks  float64                  `json:"peak_unrealized_ticks"`
	DrawdownFromPeakTicks float64                 `json:"drawdown_from_peak_ticks"`
	MaxRAchieved         float64                  `json:"max_r_achieved"`
	MinRAchieved         float64                  `json:"min_r_achieved"`
	StopAdjustments      []position.StopAdjustment `json:"stop_adjustments"`
	PartialExits         []position.PartialExit    `json:"partial_exits"`
}

// TrajectoryTracker folds each bar's unrealized-ticks/R-multiple reading
// into a running TrajectorySummary; call Update once per bar while a
// position is open, then Finalize at close.
type TrajectoryTracker struct {
	maeTicks, mfeTicks   float64
	peakUnrealizedTicks  float64
	maxR, minR           float64
	lastTicks            float64
	initialized          bool
}

// Update folds one bar's reading into the running summary.
func (t *TrajectoryTracker) Update(unrealizedTicks, rMultiple float64) {
	if !t.initialized {
		t.maeTicks, t.mfeTicks = unrealizedTicks, unrealizedTicks
		t.maxR, t.minR = rMultiple, rMultiple
		t.initialized = true
	}
	t.lastTicks = unrealizedTicks
	if unrealizedTicks < t.maeTicks {
		t.maeTicks = unrealizedTicks
	}
	if unrealizedTicks > t.mfeTicks {
		t.mfeTicks = unrealizedTicks
	}
	if unrealizedTicks > t.peakUnrealizedTicks {
		t.peakUnrealizedTicks = unrealizedTicks
	}
	if rMultiple > t.maxR {
		t.maxR = rMultiple
	}
	if rMultiple < t.minR {
		t.minR = rMultiple
	}
}

// Finalize produces the TrajectorySummary, attaching the position's
// recorded stop-adjustment and partial-exit logs verbatim. Drawdown from
// peak is the peak unrealized reading minus the last reading passed to
// Update.
func (t *TrajectoryTracker) Finalize(p *position.Position) TrajectorySummary {
	drawdown := t.peakUnrealizedTicks - t.lastTicks
	return TrajectorySummary{
		MAETicks:              t.maeTicks,
		MFETicks:              t.mfeTicks,
		PeakUnrealizedTicks:   t.peakUnrealizedTicks,
		DrawdownFromPeakTicks: drawdown,
		MaxRAchieved:          t.maxR,
		MinRAchieved:          t.minR,
		StopAdjustments:       append([]position.StopAdjustment(nil), p.StopAdjustments...),
		PartialExits:          append([]position.PartialExit(nil), p.Partials...),
	}
}

const (
	signalSchemaVersion = 1
	exitSchemaVersion   = 1
)

// lineStore is the shared append-only JSONL primitive underlying both
// sinks, grounded on replay.TraceStore's sequence-numbered, O_APPEND
// write pattern.
type lineStore struct {
	mu   sync.Mutex
	path string
	seq  uint64
}

func newLineStore(dir, filename string) (*lineStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("experience: mkdir: %w", err)
	}
	ls := &lineStore{path: filepath.Join(dir, filename)}
	n, err := ls.countLines()
	if err != nil {
		return nil, err
	}
	ls.seq = n
	return ls, nil
}

func (ls *lineStore) countLines() (uint64, error) {
	data, err := os.ReadFile(ls.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return 0, nil
	}
	return uint64(len(strings.Split(trimmed, "\n"))), nil
}

// seqStamper is implemented by record types that carry their own sequence
// number; append stamps the assigned number into the record before it is
// marshalled.
type seqStamper interface {
	stampSeq(seq uint64) any
}

func (r SignalRecord) stampSeq(seq uint64) any { r.Seq = seq; return r }
func (r ExitRecord) stampSeq(seq uint64) any   { r.Seq = seq; return r }

// append writes one JSON line and fsyncs before returning, per spec §4.9's
// line-atomic requirement.
func (ls *lineStore) append(v any) (uint64, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.seq++
	if s, ok := v.(seqStamper); ok {
		v = s.stampSeq(ls.seq)
	}
	data, err := json.Marshal(v)
	if err != nil {
		ls.seq--
		return 0, fmt.Errorf("experience: marshal: %w", err)
	}

	f, err := os.OpenFile(ls.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		ls.seq--
		return 0, fmt.Errorf("experience: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		ls.seq--
		return 0, fmt.Errorf("experience: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		ls.seq--
		return 0, fmt.Errorf("experience: fsync: %w", err)
	}
	return ls.seq, nil
}

func (ls *lineStore) readAll(out func(line []byte) error) error {
	ls.mu.Lock()
	data, err := os.ReadFile(ls.path)
	ls.mu.Unlock()
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := out([]byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// Recorder is C9's entry point: one per traded symbol, writing to
// signal_<symbol>.jsonl and exit_<symbol>.jsonl under dataDir.
type Recorder struct {
	signals *lineStore
	exits   *lineStore
}

// New returns a Recorder rooted at dataDir for symbol.
func New(dataDir, symbol string) (*Recorder, error) {
	signals, err := newLineStore(dataDir, fmt.Sprintf("signal_%s.jsonl", symbol))
	if err != nil {
		return nil, err
	}
	exits, err := newLineStore(dataDir, fmt.Sprintf("exit_%s.jsonl", symbol))
	if err != nil {
		return nil, err
	}
	return &Recorder{signals: signals, exits: exits}, nil
}

// RecordSignal appends a SignalRecord for a taken or ghost candidate.
func (r *Recorder) RecordSignal(c *signal.SignalCandidate) error {
	rec := SignalRecord{
		SchemaVersion: signalSchemaVersion,
		RecordedAt:    time.Now().UTC(),
		CandidateID:   c.ID,
		Timestamp:     c.Timestamp,
		Side:          c.Side,
		EntryRefPrice: c.EntryRefPrice,
		TradeType:     c.TradeType,
		Confidence:    c.Confidence,
		GhostFlag:     c.GhostFlag,
		Exploration:   c.Exploration,
		Reason:        c.Reason,
		Features:      c.Features,
	}
	seq, err := r.signals.append(rec)
	rec.Seq = seq
	return err
}

// RecordOutcome appends a follow-up line attaching the realized (or
// simulated) outcome to a previously-recorded candidate.
func (r *Recorder) RecordOutcome(candidateID string, outcome OutcomeRecord) error {
	outcome.CandidateID = candidateID
	wrapper := struct {
		SchemaVersion int            `json:"schema_version"`
		RecordedAt    time.Time      `json:"recorded_at"`
		OutcomeOnly   bool           `json:"outcome_only"`
		Outcome       OutcomeRecord  `json:"outcome"`
	}{SchemaVersion: signalSchemaVersion, RecordedAt: time.Now().UTC(), OutcomeOnly: true, Outcome: outcome}
	_, err := r.signals.append(wrapper)
	return err
}

// RecordExit appends the exit experience for a just-closed position.
func (r *Recorder) RecordExit(p *position.Position, paramsUsed position.ExitParams, trajectory TrajectorySummary, durationBars int) error {
	rec := ExitRecord{
		SchemaVersion: exitSchemaVersion,
		RecordedAt:    time.Now().UTC(),
		PositionID:    p.ID,
		Instrument:    p.Instrument,
		Side:          p.Side,
		EntryPrice:    p.EntryPrice,
		EntryTime:     p.EntryTime,
		ClosedAt:      p.ClosedAt,
		DurationBars:  durationBars,
		ExitParams:    paramsUsed,
		Trajectory:    trajectory,
		FinalReason:   p.CloseReason,
		RealizedPnL:   p.RealizedPnL,
	}
	seq, err := r.exits.append(rec)
	rec.Seq = seq
	return err
}

// GhostSimulator advances a cloned exit-rule evaluation against subsequent
// bars for a ghost (not-taken) candidate, producing a synthetic outcome
// without ever touching the live broker or the real position manager
// (spec §4.9: "the recorder simulates by advancing bars with the same
// exit rules using a cloned parameter set").
type GhostSimulator struct {
	manager  *position.Manager
	tickSize float64
}

// NewGhostSimulator returns a simulator using the same exit-rule manager
// shape as the live position manager, so ghost outcomes are directly
// comparable to taken-trade outcomes.
func NewGhostSimulator(provider position.ExitParamsProvider, tickSize float64) *GhostSimulator {
	return &GhostSimulator{manager: position.NewManager(provider, tickSize), tickSize: tickSize}
}

// Simulate opens a hypothetical one-contract position at the candidate's
// entry price and replays bars through the real exit FSM until it fully
// closes, returning the synthetic outcome. ok is false if bars runs out
// before the position closes (undecided ghost, not recorded).
func (g *GhostSimulator) Simulate(c *signal.SignalCandidate, params position.ExitParams, bars []position.BarContext) (OutcomeRecord, TrajectorySummary, bool) {
	if len(bars) == 0 {
		return OutcomeRecord{}, TrajectorySummary{}, false
	}

	side := position.Long
	if c.Side == signal.SideShort {
		side = position.Short
	}
	regime := bars[0].Regime
	tier := position.ClassifyConfidenceTier(c.Confidence)

	p := position.NewPosition(c.ID, "", side, c.EntryRefPrice, 1, bars[0].ATR, string(c.TradeType), c.Confidence, c.Timestamp, params, regime, tier, g.tickSize)

	var tracker TrajectoryTracker
	for i, bar := range bars {
		unrealized := p.UnrealizedTicks(bar.Close, g.tickSize)
		rMultiple := p.RMultiple(bar.Close, g.tickSize)
		tracker.Update(unrealized, rMultiple)

		d := g.manager.EvaluateBar(p, bar, false, "")
		if d.Action == position.NoAction {
			continue
		}
		realized := float64(d.ExitContracts) * (d.ExitPrice - c.EntryRefPrice) * sideSign(side)
		g.manager.ApplyExit(p, d, realized, bar.Now)
		if p.ExitSubstate == position.Closed {
			return OutcomeRecord{
				ClosedAt:     bar.Now,
				ExitReason:   string(p.CloseReason),
				RealizedPnL:  p.RealizedPnL,
				DurationBars: i + 1,
				Simulated:    true,
			}, tracker.Finalize(p), true
		}
	}
	return OutcomeRecord{}, TrajectorySummary{}, false
}

func sideSign(s position.Side) float64 {
	if s == position.Short {
		return -1
	}
	return 1
}
