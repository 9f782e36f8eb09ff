// Package marketdata implements C1: normalizing a streamed quote/trade feed
// into validated Ticks and synthesizing 1-minute Bars. Grounded on the
// teacher's Candle/broker-price plumbing (strategy.go, broker.go), expanded
// from a single last-price stream into the full bid/ask/trade Tick the spec
// requires, since the teacher only ever tracked a single trade price.
package marketdata

import "time"

// Tick is one quote or trade update from the market feed (spec §3).
type Tick struct {
	Timestamp time.Time
	Bid       float64
	BidSize   float64
	Ask       float64
	AskSize   float64
	Last      float64
	LastSize  float64
}

// Valid reports whether the tick satisfies spec §3's invariants: bid <= ask
// and non-negative sizes. Monotonic-timestamp ordering is a per-symbol,
// stream-level invariant enforced by Feed, not by the tick itself.
func (t Tick) Valid() bool {
	if t.Bid <= 0 || t.Ask <= 0 {
		return false
	}
	if t.Bid > t.Ask {
		return false
	}
	if t.BidSize < 0 || t.AskSize < 0 || t.LastSize < 0 {
		return false
	}
	return true
}

// Mid returns the midpoint of the bid/ask spread.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// SpreadTicks returns the bid/ask spread expressed in instrument ticks.
func (t Tick) SpreadTicks(tickSize float64) float64 {
	if tickSize <= 0 {
		return 0
	}
	return (t.Ask - t.Bid) / tickSize
}

// Depth is the top-of-book snapshot C3's imbalance calculation consumes.
// Supplemented per SPEC_FULL.md: the spec's Bid/Ask Manager needs bid/ask
// sizes, which C1 is the natural owner of since it owns Tick construction.
type Depth struct {
	Timestamp time.Time
	BidSize   float64
	AskSize   float64
}
