package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTick(ts time.Time, bid, ask, last float64) Tick {
	return Tick{Timestamp: ts, Bid: bid, BidSize: 10, Ask: ask, AskSize: 10, Last: last, LastSize: 1}
}

func TestIngestRejectsCrossedAndOutOfOrder(t *testing.T) {
	f := NewFeed("ES")
	base := time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)

	_, ok := f.Ingest(Tick{Timestamp: base, Bid: 100, Ask: 99}, base)
	assert.False(t, ok, "crossed quote must be rejected")

	tk, ok := f.Ingest(mkTick(base, 100, 100.25, 100.1), base)
	require.True(t, ok)
	assert.Equal(t, 100.1, tk.Last)

	_, ok = f.Ingest(mkTick(base.Add(-time.Second), 100, 100.25, 100.1), base)
	assert.False(t, ok, "out-of-order tick must be rejected")
}

func TestBidEqualAskIsValid(t *testing.T) {
	tk := Tick{Bid: 100, Ask: 100, BidSize: 1, AskSize: 1}
	assert.True(t, tk.Valid())
	assert.Equal(t, 0.0, tk.SpreadTicks(0.25))
}

func TestStalenessSeverity(t *testing.T) {
	f := NewFeed("ES")
	base := time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)
	f.Ingest(mkTick(base, 100, 100.25, 100.1), base)

	assert.Equal(t, StaleNone, f.Staleness(base.Add(time.Second)))
	assert.Equal(t, StaleWarn, f.Staleness(base.Add(3*time.Second)))
	assert.Equal(t, StaleBlockEntries, f.Staleness(base.Add(31*time.Second)))
	assert.Equal(t, StaleForceFlatten, f.Staleness(base.Add(61*time.Second)))
}

func TestBarFinalizationAndSyntheticGapFill(t *testing.T) {
	f := NewFeed("ES")
	base := time.Date(2026, 1, 2, 14, 0, 10, 0, time.UTC)

	f.Ingest(mkTick(base, 100, 100.25, 100.1), base)
	bars := f.OnTick(mkTick(base, 100, 100.25, 100.1))
	assert.Nil(t, bars, "first tick only opens the bucket")

	// Next tick lands 3 minutes later: expect 1 real bar + 2 synthetic fillers.
	later := base.Add(3 * time.Minute)
	f.Ingest(mkTick(later, 101, 101.25, 101.1), later)
	bars = f.OnTick(mkTick(later, 101, 101.25, 101.1))
	require.Len(t, bars, 3)
	assert.False(t, bars[0].Synthetic)
	assert.Equal(t, 100.1, bars[0].Close)
	assert.True(t, bars[1].Synthetic)
	assert.Equal(t, 100.1, bars[1].Open)
	assert.Equal(t, 0.0, bars[1].Volume)
	assert.True(t, bars[2].Synthetic)
}

func TestRollingWindowCapped(t *testing.T) {
	f := NewFeed("ES")
	base := time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 300; i++ {
		ts := base.Add(time.Duration(i) * time.Millisecond)
		f.Ingest(mkTick(ts, 100, 100.25, 100.1), ts)
	}
	assert.Len(t, f.Window(), 200)
}
