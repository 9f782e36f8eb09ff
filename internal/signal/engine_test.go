package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/marketdata"
)

func alwaysLong(bars []marketdata.Bar, snaps []indicators.Snapshot) (bool, Side, string) {
	return true, SideLong, "TEST_ALWAYS_LONG"
}

func neverSignal([]marketdata.Bar, []indicators.Snapshot) (bool, Side, string) {
	return false, "", ""
}

func bar(t time.Time, o, h, l, c float64) marketdata.Bar {
	return marketdata.Bar{StartTS: t, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

func snap() indicators.Snapshot {
	return indicators.Snapshot{
		RSI: 55, VWAP: 100, VWAPBands: indicators.Bands{
			Upper: [4]float64{100.5, 101, 101.5, 102},
			Lower: [4]float64{99.5, 99, 98.5, 98},
		},
	}
}

func TestEngineNoCandidateWhenPredicateFalse(t *testing.T) {
	e := NewEngine(neverSignal, NewHeuristicScorer())
	cand, err := e.OnBar(bar(time.Now(), 1, 1, 1, 1), snap(), SessionContext{}, true)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestEngineProducesCandidate(t *testing.T) {
	e := NewEngine(alwaysLong, NewHeuristicScorer())
	now := time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC)
	cand, err := e.OnBar(bar(now, 100, 100.5, 99.8, 100.2), snap(), SessionContext{}, true)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, SideLong, cand.Side)
	assert.False(t, cand.GhostFlag)
	assert.NotEmpty(t, cand.ID)
	assert.Equal(t, 2, cand.Features.SchemaVersion)
}

func TestEngineMarksGhostWhenEntriesNotAllowed(t *testing.T) {
	e := NewEngine(alwaysLong, NewHeuristicScorer())
	cand, err := e.OnBar(bar(time.Now(), 100, 100.5, 99.8, 100.2), snap(), SessionContext{}, false)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.True(t, cand.GhostFlag)
}

func TestEngineGhostsOnScorerFailure(t *testing.T) {
	e := NewEngine(alwaysLong, failingScorer{})
	cand, err := e.OnBar(bar(time.Now(), 100, 100.5, 99.8, 100.2), snap(), SessionContext{}, true)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.True(t, cand.GhostFlag)
	assert.Equal(t, "SCORER_UNAVAILABLE", cand.Reason)
}

type failingScorer struct{}

func (failingScorer) Score(FeatureVector) (float64, bool, error) {
	return 0, false, ErrScorerUnavailable
}

func TestEngineClassifiesReversalOnPriorBandTouch(t *testing.T) {
	e := NewEngine(alwaysLong, NewHeuristicScorer())
	t0 := time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC)
	s := snap()
	// first bar touches the lower band
	_, _ = e.OnBar(bar(t0, 100, 100, 99.0, 99.6), s, SessionContext{}, true)
	cand, err := e.OnBar(bar(t0.Add(time.Minute), 99.6, 100, 99.5, 99.8), s, SessionContext{}, true)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, Reversal, cand.TradeType)
}

func TestMinuteOfSession(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 1, 2, 18, 30, 0, 0, loc)
	assert.Equal(t, 30, MinuteOfSession(start, "18:00"))
}
