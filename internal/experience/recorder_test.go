package experience

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/position"
	"github.com/chidi150c/apexfutures/internal/signal"
)

func sampleCandidate(ghost bool) *signal.SignalCandidate {
	return &signal.SignalCandidate{
		ID:            "cand-1",
		Timestamp:     time.Now().UTC(),
		Side:          signal.SideLong,
		EntryRefPrice: 6800.00,
		Reason:        "EMA_CROSS",
		TradeType:     signal.Continuation,
		Confidence:    0.72,
		GhostFlag:     ghost,
		Exploration:   false,
		Features:      signal.FeatureVector{},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestRecordSignalAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, "ES")
	require.NoError(t, err)

	c := sampleCandidate(false)
	require.NoError(t, r.RecordSignal(c))

	lines := readLines(t, dir+"/signal_ES.jsonl")
	require.Len(t, lines, 1)

	var rec SignalRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "cand-1", rec.CandidateID)
	assert.Equal(t, signal.SideLong, rec.Side)
	assert.Equal(t, uint64(1), rec.Seq)
}

func TestRecordSignalSequenceIncrements(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, "ES")
	require.NoError(t, err)

	require.NoError(t, r.RecordSignal(sampleCandidate(false)))
	require.NoError(t, r.RecordSignal(sampleCandidate(true)))

	lines := readLines(t, dir+"/signal_ES.jsonl")
	require.Len(t, lines, 2)
}

func TestRecordOutcomeAppendsFollowupLine(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, "ES")
	require.NoError(t, err)

	require.NoError(t, r.RecordSignal(sampleCandidate(true)))
	require.NoError(t, r.RecordOutcome("cand-1", OutcomeRecord{
		ClosedAt: time.Now().UTC(), ExitReason: "TARGET", RealizedPnL: 125, DurationBars: 4, Simulated: true,
	}))

	lines := readLines(t, dir+"/signal_ES.jsonl")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "cand-1")
	assert.Contains(t, lines[1], "outcome_only")
}

func TestNewLineStoreResumesSequenceAfterRestart(t *testing.T) {
	dir := t.TempDir()
	r1, err := New(dir, "ES")
	require.NoError(t, err)
	require.NoError(t, r1.RecordSignal(sampleCandidate(false)))
	require.NoError(t, r1.RecordSignal(sampleCandidate(false)))

	r2, err := New(dir, "ES")
	require.NoError(t, err)
	require.NoError(t, r2.RecordSignal(sampleCandidate(false)))

	lines := readLines(t, dir+"/signal_ES.jsonl")
	require.Len(t, lines, 3)

	var rec SignalRecord
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, uint64(3), rec.Seq)
}

func TestRecordExitWritesExitFile(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, "ES")
	require.NoError(t, err)

	params := position.DefaultExitParams()
	p := position.NewPosition("pos-1", "ES", position.Long, 6800, 2, 1.5, "CONTINUATION", 0.7, time.Now().UTC(), params, indicators.Normal, position.MedConfidence, 0.25)
	p.ExitSubstate = position.Closed
	p.CloseReason = position.ReasonTarget
	p.ClosedAt = time.Now().UTC()
	p.RealizedPnL = 250

	var tracker TrajectoryTracker
	tracker.Update(5, 0.5)
	tracker.Update(12, 1.2)
	summary := tracker.Finalize(p)

	require.NoError(t, r.RecordExit(p, params, summary, 8))

	lines := readLines(t, dir+"/exit_ES.jsonl")
	require.Len(t, lines, 1)

	var rec ExitRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "pos-1", rec.PositionID)
	assert.Equal(t, position.ReasonTarget, rec.FinalReason)
	assert.Equal(t, 250.0, rec.RealizedPnL)
	assert.Equal(t, 12.0, rec.Trajectory.MFETicks)
}

func TestTrajectoryTrackerTracksMAEAndMFE(t *testing.T) {
	var tr TrajectoryTracker
	tr.Update(-3, -0.3)
	tr.Update(8, 0.8)
	tr.Update(2, 0.2)

	p := &position.Position{}
	summary := tr.Finalize(p)
	assert.Equal(t, -3.0, summary.MAETicks)
	assert.Equal(t, 8.0, summary.MFETicks)
	assert.Equal(t, 8.0, summary.PeakUnrealizedTicks)
	assert.Equal(t, 0.8, summary.MaxRAchieved)
	assert.Equal(t, -0.3, summary.MinRAchieved)
}

func TestGhostSimulatorResolvesOnStopHit(t *testing.T) {
	params := position.DefaultExitParams()
	sim := NewGhostSimulator(position.StaticExitParamsProvider{Params: params}, 0.25)
	c := sampleCandidate(true)

	bars := []position.BarContext{
		{Now: c.Timestamp.Add(1 * time.Minute), Close: 6801.00, ATR: 1.5, Volume: 100, Regime: indicators.Normal},
		{Now: c.Timestamp.Add(2 * time.Minute), Close: 6790.00, ATR: 1.5, Volume: 100, Regime: indicators.Normal},
	}

	outcome, summary, ok := sim.Simulate(c, params, bars)
	require.True(t, ok)
	assert.Equal(t, "STOP", outcome.ExitReason)
	assert.True(t, outcome.Simulated)
	assert.Equal(t, 2, outcome.DurationBars)
	assert.NotZero(t, summary.MAETicks)
}

func TestGhostSimulatorUndecidedWhenBarsRunOut(t *testing.T) {
	params := position.DefaultExitParams()
	sim := NewGhostSimulator(position.StaticExitParamsProvider{Params: params}, 0.25)
	c := sampleCandidate(true)

	bars := []position.BarContext{
		{Now: c.Timestamp.Add(1 * time.Minute), Close: 6801.00, ATR: 1.5, Volume: 100, Regime: indicators.Normal},
	}

	_, _, ok := sim.Simulate(c, params, bars)
	assert.False(t, ok)
}
