package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/marketdata"
)

func bar(t time.Time, o, h, l, c, v float64) marketdata.Bar {
	return marketdata.Bar{StartTS: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestPipelineDeterministic(t *testing.T) {
	p1 := NewPipeline("18:00")
	p2 := NewPipeline("18:00")
	base := time.Date(2026, 1, 2, 14, 30, 0, 0, time.UTC)

	var last1, last2 Snapshot
	for i := 0; i < 60; i++ {
		b := bar(base.Add(time.Duration(i)*time.Minute), 100+float64(i)*0.1, 100.5+float64(i)*0.1, 99.5+float64(i)*0.1, 100.2+float64(i)*0.1, 1000)
		last1 = p1.OnBar(b)
		last2 = p2.OnBar(b)
	}
	assert.Equal(t, last1, last2, "pipeline must be a pure deterministic function of the bar stream")
	assert.False(t, last1.BarStart.IsZero())
}

func TestVWAPBandsOrdered(t *testing.T) {
	p := NewPipeline("18:00")
	base := time.Date(2026, 1, 2, 14, 30, 0, 0, time.UTC)
	var snap Snapshot
	for i := 0; i < 30; i++ {
		price := 100 + float64(i%5)
		snap = p.OnBar(bar(base.Add(time.Duration(i)*time.Minute), price, price+1, price-1, price, 500))
	}
	require.NotZero(t, snap.VWAP)
	for k := 0; k < 3; k++ {
		assert.GreaterOrEqual(t, snap.VWAPBands.Upper[k+1], snap.VWAPBands.Upper[k])
		assert.LessOrEqual(t, snap.VWAPBands.Lower[k+1], snap.VWAPBands.Lower[k])
	}
}

func TestSessionResetClearsVWAPAccumulator(t *testing.T) {
	p := NewPipeline("18:00")
	beforeBoundary := time.Date(2026, 1, 2, 17, 59, 0, 0, etLoc())
	afterBoundary := beforeBoundary.Add(2 * time.Minute)

	p.OnBar(bar(beforeBoundary.UTC(), 100, 101, 99, 100, 1000))
	preResetVol := p.vwap.cumVol

	snap := p.OnBar(bar(afterBoundary.UTC(), 200, 201, 199, 200, 1000))
	assert.NotZero(t, preResetVol)
	assert.Equal(t, snap.VWAP, 200.0, "VWAP resets to the new session's single bar typical price")
}

func TestSyntheticVIXMonotonic(t *testing.T) {
	low := syntheticVIX(1, 100, 1)
	high := syntheticVIX(3, 100, 1)
	assert.Less(t, low, high, "synthetic VIX increases with ATR")

	lowVol := syntheticVIX(1, 100, 0.5)
	highVol := syntheticVIX(1, 100, 2)
	assert.Less(t, lowVol, highVol, "synthetic VIX increases with volume ratio")
}

func etLoc() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}
