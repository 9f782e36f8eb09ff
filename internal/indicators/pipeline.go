package indicators

import (
	"math"
	"time"

	"github.com/chidi150c/apexfutures/internal/clock"
	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// Regime is the coarse volatility/trendiness classification spec §3 names.
type Regime string

const (
	HighVolChoppy   Regime = "HIGH_VOL_CHOPPY"
	HighVolTrending Regime = "HIGH_VOL_TRENDING"
	NormalChoppy    Regime = "NORMAL_CHOPPY"
	NormalTrending  Regime = "NORMAL_TRENDING"
	Normal          Regime = "NORMAL"
	LowVolRanging   Regime = "LOW_VOL_RANGING"
	LowVolTrending  Regime = "LOW_VOL_TRENDING"
)

// Snapshot is the per-bar indicator vector spec §3 defines.
type Snapshot struct {
	BarStart          time.Time
	RSI               float64
	ATR               float64
	VWAP              float64
	VWAPStdDev        float64
	VWAPDistanceSigma float64
	VolumeRatio       float64
	SyntheticVIX      float64
	TrendStrength     float64
	SRProximityTicks  float64
	Regime            Regime

	// VWAPBands are the ±1.5/2.0/2.5/3.0σ envelopes spec §4.2 requires.
	VWAPBands Bands
}

// Bands holds the upper/lower VWAP envelopes at each configured sigma
// multiple.
type Bands struct {
	Upper [4]float64
	Lower [4]float64
}

var sigmaMultiples = [4]float64{1.5, 2.0, 2.5, 3.0}

// rsiPeriod and atrPeriod are pinned by spec §4.2.
const (
	rsiPeriod       = 10
	atrPeriod       = 14
	volRatioPeriod  = 20
	trendSMAPeriod  = 20
	atrPercentileWin = 100
)

// vwapAccumulator tracks the session-scoped volume-weighted average price,
// reset at the configured session boundary (spec §4.2).
type vwapAccumulator struct {
	sessionStart  time.Time
	cumPV         float64
	cumVol        float64
	deviationHist []float64
}

// Pipeline is a pure function of the finalized bar stream plus a
// session-scoped VWAP accumulator. One Pipeline instance per traded symbol.
type Pipeline struct {
	sessionBoundary string // "HH:MM" in ET, e.g. "18:00"
	vwap            vwapAccumulator

	bars   []marketdata.Bar
	atrHist []float64
}

// NewPipeline returns a Pipeline resetting its VWAP accumulator at
// sessionBoundary (ET, "HH:MM"), defaulting to 18:00 per spec §4.2.
func NewPipeline(sessionBoundary string) *Pipeline {
	if sessionBoundary == "" {
		sessionBoundary = "18:00"
	}
	return &Pipeline{sessionBoundary: sessionBoundary}
}

// OnBar folds a finalized bar into the pipeline and returns the resulting
// Snapshot. Partial bars must never be passed here (spec §4.1).
func (p *Pipeline) OnBar(b marketdata.Bar) Snapshot {
	p.maybeResetSession(b.StartTS)
	p.bars = append(p.bars, b)

	closes := closesOf(p.bars)
	highs := highsOf(p.bars)
	lows := lowsOf(p.bars)
	volumes := volumesOf(p.bars)

	i := len(p.bars) - 1

	rsi := RSI(closes, rsiPeriod)[i]
	atrSeries := ATR(highs, lows, closes, atrPeriod)
	atr := atrSeries[i]
	p.atrHist = append(p.atrHist, atr)

	typicalPrice := (b.High + b.Low + b.Close) / 3
	p.vwap.cumPV += typicalPrice * b.Volume
	p.vwap.cumVol += b.Volume
	vwap := typicalPrice
	if p.vwap.cumVol > 0 {
		vwap = p.vwap.cumPV / p.vwap.cumVol
	}

	deviation := b.Close - vwap
	p.vwap.deviationHist = append(p.vwap.deviationHist, deviation)
	stddev := stddevOf(p.vwap.deviationHist)
	distSigma := 0.0
	if stddev > 1e-9 {
		distSigma = deviation / stddev
	}

	var bands Bands
	for k, mult := range sigmaMultiples {
		bands.Upper[k] = vwap + mult*stddev
		bands.Lower[k] = vwap - mult*stddev
	}

	volRatio := VolumeRatio(volumes, volRatioPeriod)[i]

	sma20 := SMA(closes, trendSMAPeriod)[i]
	trendStrength := 0.0
	if !math.IsNaN(sma20) && sma20 != 0 {
		trendStrength = math.Abs(b.Close-sma20) / sma20
	}

	synthVix := syntheticVIX(atr, b.Close, volRatio)

	atrPctile := percentileRank(p.atrHist, atr, atrPercentileWin)
	regime := classifyRegime(atrPctile, trendStrength)

	srProximity := 0.0 // supplemented hook: populated once a support/resistance
	// detector is wired; left at 0 (no proximity signal) rather than a
	// fabricated value, matching spec §9's "missing field receives
	// documented default" convention used throughout this codebase.

	return Snapshot{
		BarStart:          b.StartTS,
		RSI:               rsi,
		ATR:               atr,
		VWAP:              vwap,
		VWAPStdDev:        stddev,
		VWAPDistanceSigma: distSigma,
		VolumeRatio:       volRatio,
		SyntheticVIX:      synthVix,
		TrendStrength:     trendStrength,
		SRProximityTicks:  srProximity,
		Regime:            regime,
		VWAPBands:         bands,
	}
}

// maybeResetSession resets the VWAP accumulator when barStart crosses the
// configured ET session boundary (spec §4.2: "intraday VWAP accumulators
// reset at the configured session boundary"). The accumulator is keyed by
// the most recent boundary instant at-or-before barStart; a change in that
// key means a new session has begun.
func (p *Pipeline) maybeResetSession(barStart time.Time) {
	key := currentSessionKey(barStart, p.sessionBoundary)
	if p.vwap.sessionStart.IsZero() || !key.Equal(p.vwap.sessionStart) {
		p.vwap.cumPV = 0
		p.vwap.cumVol = 0
		p.vwap.deviationHist = nil
		p.vwap.sessionStart = key
	}
}

// currentSessionKey returns, in UTC, the most recent session-boundary
// instant at or before t, given a boundary expressed as "HH:MM" ET.
func currentSessionKey(t time.Time, hhmm string) time.Time {
	et := clock.InET(t)
	var h, m int
	h, m = parseHHMM(hhmm)
	boundary := time.Date(et.Year(), et.Month(), et.Day(), h, m, 0, 0, et.Location())
	if et.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary.UTC()
}

func parseHHMM(hhmm string) (int, int) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 18, 0
	}
	return t.Hour(), t.Minute()
}

// syntheticVIX computes a deterministic, monotonic-in-both-inputs scalar
// from ATR (normalized by price) and volume ratio. Spec §9 leaves the exact
// formula an open question to be parameterized; this resolution is
// recorded in DESIGN.md. Clamped to [0, 200].
func syntheticVIX(atr, price, volRatio float64) float64 {
	if price <= 0 {
		return 0
	}
	v := 100 * (atr / price) * (0.5 + 0.5*volRatio)
	if v < 0 {
		return 0
	}
	if v > 200 {
		return 200
	}
	return v
}

// classifyRegime maps an ATR percentile rank and trend strength onto the
// seven-way regime enum spec §3 defines. Thresholds documented in
// DESIGN.md (resolves spec §9 Open Question 1).
func classifyRegime(atrPctile, trendStrength float64) Regime {
	highVol := atrPctile >= 0.75
	lowVol := atrPctile <= 0.25
	trending := trendStrength >= 0.01
	choppy := trendStrength < 0.004

	switch {
	case highVol && choppy:
		return HighVolChoppy
	case highVol && trending:
		return HighVolTrending
	case lowVol && trending:
		return LowVolTrending
	case lowVol:
		return LowVolRanging
	case trending:
		return NormalTrending
	case choppy:
		return NormalChoppy
	default:
		return Normal
	}
}

// percentileRank returns the fraction of the last window values in hist
// that are <= the current value, a cheap non-parametric percentile used to
// classify ATR regime without assuming a distribution.
func percentileRank(hist []float64, current float64, window int) float64 {
	start := 0
	if len(hist) > window {
		start = len(hist) - window
	}
	slice := hist[start:]
	if len(slice) == 0 {
		return 0.5
	}
	count := 0
	for _, v := range slice {
		if v <= current {
			count++
		}
	}
	return float64(count) / float64(len(slice))
}

func stddevOf(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	window := x
	if n > 50 {
		window = x[n-50:]
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))
	var sq float64
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(math.Max(sq/float64(len(window)), 1e-12))
}

func closesOf(bars []marketdata.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highsOf(bars []marketdata.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []marketdata.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func volumesOf(bars []marketdata.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
