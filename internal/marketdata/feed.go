package marketdata

import (
	"time"
)

// StaleSeverity classifies how long the feed has gone without a tick (spec
// §4.1, §7).
type StaleSeverity int

const (
	// StaleNone means the feed is current.
	StaleNone StaleSeverity = iota
	// StaleWarn is a gap > 2s: log a warning, keep trading.
	StaleWarn
	// StaleBlockEntries is a gap > 30s: block new entries.
	StaleBlockEntries
	// StaleForceFlatten is a gap > 60s: force flatten any open position.
	StaleForceFlatten
)

const (
	warnGap          = 2 * time.Second
	blockEntriesGap  = 30 * time.Second
	forceFlattenGap  = 60 * time.Second
	minRollingWindow = 200
)

// Feed normalizes a raw push stream into validated Ticks, keeps a rolling
// window for spread/stress analytics, and tracks staleness (spec §4.1).
type Feed struct {
	symbol     string
	lastTS     time.Time
	lastSeen   time.Time
	window     []Tick
	windowCap  int
	builder    *BarBuilder
	lastBucket time.Time

	rejectedOutOfOrder int
	rejectedInvalid    int
}

// NewFeed returns a Feed for symbol with a rolling window of at least 200
// ticks, per spec §4.1.
func NewFeed(symbol string) *Feed {
	return &Feed{
		symbol:    symbol,
		windowCap: minRollingWindow,
		builder:   NewBarBuilder(0),
	}
}

// Ingest validates and normalizes a raw quote into a Tick. It returns
// (tick, true) on acceptance, or (Tick{}, false) if the tick is invalid or
// out of order and must be discarded (spec §3: "bid <= ask OR tick is
// invalid and discarded"; "reordered ticks discarded").
func (f *Feed) Ingest(raw Tick, now time.Time) (Tick, bool) {
	if !raw.Valid() {
		f.rejectedInvalid++
		return Tick{}, false
	}
	if !f.lastTS.IsZero() && raw.Timestamp.Before(f.lastTS) {
		f.rejectedOutOfOrder++
		return Tick{}, false
	}
	f.lastTS = raw.Timestamp
	f.lastSeen = now
	f.pushWindow(raw)
	return raw, true
}

func (f *Feed) pushWindow(t Tick) {
	f.window = append(f.window, t)
	if len(f.window) > f.windowCap {
		f.window = f.window[len(f.window)-f.windowCap:]
	}
}

// Window returns the rolling tick window (most recent last), used by C3 for
// spread/stress analytics.
func (f *Feed) Window() []Tick {
	return f.window
}

// Staleness reports how stale the feed is as of now, based on the wall
// clock gap since the last accepted tick.
func (f *Feed) Staleness(now time.Time) StaleSeverity {
	if f.lastSeen.IsZero() {
		return StaleNone
	}
	gap := now.Sub(f.lastSeen)
	switch {
	case gap > forceFlattenGap:
		return StaleForceFlatten
	case gap > blockEntriesGap:
		return StaleBlockEntries
	case gap > warnGap:
		return StaleWarn
	default:
		return StaleNone
	}
}

// RejectedCounts reports how many ticks were discarded as invalid or
// out-of-order, for observability.
func (f *Feed) RejectedCounts() (invalid, outOfOrder int) {
	return f.rejectedInvalid, f.rejectedOutOfOrder
}

// OnTick feeds an accepted Tick into the bar builder and returns any
// finalized bars produced by this tick, in chronological order, including
// synthetic bars that backfill a multi-minute gap (spec §4.1's "missed bar"
// rule). The real, just-finalized bar always comes first; any synthetic
// filler bars for whole minutes with no ticks follow it, up to (but not
// including) the bucket the builder now accumulates into.
func (f *Feed) OnTick(t Tick) []Bar {
	newBucket := bucketFor(t.Timestamp)
	finalized, rolled := f.builder.OnTick(t)
	if !rolled {
		return nil
	}
	out := []Bar{finalized}
	out = append(out, f.builder.FinalizeSkipped(finalized.StartTS, newBucket, finalized.Close)...)
	f.lastBucket = finalized.StartTS
	return out
}

// PartialBar exposes the in-flight bar for read-only indicator preview
// (spec §4.1: never fed to the signal engine).
func (f *Feed) PartialBar() (Bar, bool) {
	return f.builder.PartialBar()
}
