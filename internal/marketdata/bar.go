package marketdata

import "time"

// Bar is a 1-minute OHLCV aggregate (spec §3).
type Bar struct {
	StartTS      time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	VWAPSnapshot float64
	Synthetic    bool
}

// BarBuilder accumulates ticks into 1-minute buckets keyed by
// floor(timestamp/60) and finalizes exactly once per minute boundary (spec
// §4.1). It is driven exclusively from the event loop's tick handler, so it
// carries no internal locking.
type BarBuilder struct {
	bucketStart time.Time
	open        float64
	high        float64
	low         float64
	close       float64
	volume      float64
	haveTicks   bool
	lastClose   float64
}

// NewBarBuilder returns an empty builder. lastClose seeds the synthetic-bar
// fallback before any real bar has ever closed.
func NewBarBuilder(lastClose float64) *BarBuilder {
	return &BarBuilder{lastClose: lastClose}
}

func bucketFor(ts time.Time) time.Time {
	return time.Unix(ts.Unix()/60*60, 0).UTC()
}

// OnTick folds a validated Tick into the current bucket. If the tick starts
// a new minute, it returns the just-finalized Bar (or a synthetic bar if no
// ticks landed in the prior bucket) and true; otherwise it returns
// (Bar{}, false).
func (b *BarBuilder) OnTick(t Tick) (Bar, bool) {
	bucket := bucketFor(t.Timestamp)

	if b.bucketStart.IsZero() {
		b.startBucket(bucket, t)
		return Bar{}, false
	}

	if bucket.Equal(b.bucketStart) {
		b.fold(t)
		return Bar{}, false
	}

	// Minute rollover: finalize the prior bucket, then backfill any
	// skipped buckets between it and the new tick as synthetic bars before
	// starting the new bucket. Finalize returns only the bar for the
	// bucket the builder was accumulating; callers that need the skipped
	// bars use FinalizeSkipped.
	finalized := b.finalize()
	b.startBucket(bucket, t)
	return finalized, true
}

// FinalizeSkipped returns synthetic bars for every whole minute strictly
// between the last finalized bucket (exclusive) and upTo (exclusive),
// flagged Synthetic with open=high=low=close=previous close and volume=0
// per spec §4.1's "missed bar" rule. Callers invoke this after OnTick
// reports a rollover, before processing further ticks, to avoid silently
// skipping bars when a tick gap spans more than one minute.
func (b *BarBuilder) FinalizeSkipped(lastFinalized time.Time, upTo time.Time, prevClose float64) []Bar {
	var out []Bar
	cursor := lastFinalized.Add(time.Minute)
	for cursor.Before(upTo) {
		out = append(out, Bar{
			StartTS:   cursor,
			Open:      prevClose,
			High:      prevClose,
			Low:       prevClose,
			Close:     prevClose,
			Volume:    0,
			Synthetic: true,
		})
		cursor = cursor.Add(time.Minute)
	}
	return out
}

// PartialBar exposes the in-progress bucket read-only (for indicators that
// want a live preview). Per spec §4.1 this must never be fed to the signal
// engine; callers enforce that, this type only exposes the data.
func (b *BarBuilder) PartialBar() (Bar, bool) {
	if !b.haveTicks {
		return Bar{}, false
	}
	return Bar{
		StartTS: b.bucketStart,
		Open:    b.open,
		High:    b.high,
		Low:     b.low,
		Close:   b.close,
		Volume:  b.volume,
	}, true
}

func (b *BarBuilder) startBucket(bucket time.Time, t Tick) {
	b.bucketStart = bucket
	b.haveTicks = false
	b.fold(t)
}

func (b *BarBuilder) fold(t Tick) {
	px := t.Last
	if px <= 0 {
		px = t.Mid()
	}
	if !b.haveTicks {
		b.open, b.high, b.low, b.close = px, px, px, px
		b.haveTicks = true
	} else {
		if px > b.high {
			b.high = px
		}
		if px < b.low {
			b.low = px
		}
		b.close = px
	}
	if t.LastSize > 0 {
		b.volume += t.LastSize
	}
}

func (b *BarBuilder) finalize() Bar {
	if !b.haveTicks {
		bar := Bar{
			StartTS:   b.bucketStart,
			Open:      b.lastClose,
			High:      b.lastClose,
			Low:       b.lastClose,
			Close:     b.lastClose,
			Volume:    0,
			Synthetic: true,
		}
		return bar
	}
	bar := Bar{
		StartTS: b.bucketStart,
		Open:    b.open,
		High:    b.high,
		Low:     b.low,
		Close:   b.close,
		Volume:  b.volume,
	}
	b.lastClose = b.close
	return bar
}
