package signal

import (
	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// DefaultEntryPredicate is the production EntryPredicate, the direct
// generalization of the teacher's decide() (strategy.go): that function
// blended a micro-model probability with an MA10/MA30 regime filter into a
// single buy/sell/flat call. Here the regime filter becomes a touch of the
// innermost VWAP band (±1.5σ) on the just-closed bar, and the micro-model
// probability becomes the Scorer's job downstream — this predicate only
// decides whether a directional condition exists at all, matching spec
// §4.4's "at most one candidate per bar."
//
// A LONG condition fires when the bar closed back above VWAP after the
// prior bar's low touched or pierced the lower band (mean-reversion) or
// when trend strength confirms an already-established uptrend through the
// band (continuation); SHORT is the mirror image.
func DefaultEntryPredicate(bars []marketdata.Bar, snapshots []indicators.Snapshot) (ok bool, side Side, reason string) {
	n := len(bars)
	if n < 2 {
		return false, "", ""
	}
	bar := bars[n-1]
	snap := snapshots[n-1]
	prev := bars[n-2]
	prevSnap := snapshots[n-2]

	touchedLower := prev.Low <= prevSnap.VWAPBands.Lower[0]
	touchedUpper := prev.High >= prevSnap.VWAPBands.Upper[0]

	switch {
	case touchedLower && bar.Close > snap.VWAP:
		return true, SideLong, "VWAP_LOWER_BAND_RECLAIM"
	case touchedUpper && bar.Close < snap.VWAP:
		return true, SideShort, "VWAP_UPPER_BAND_REJECTION"
	case snap.TrendStrength > 0 && bar.Close > snap.VWAPBands.Upper[0]:
		return true, SideLong, "TREND_CONTINUATION_ABOVE_UPPER_BAND"
	case snap.TrendStrength > 0 && bar.Close < snap.VWAPBands.Lower[0]:
		return true, SideShort, "TREND_CONTINUATION_BELOW_LOWER_BAND"
	default:
		return false, "", ""
	}
}
