package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/indicators"
)

func testParams() ExitParams {
	p := DefaultExitParams()
	p.BreakevenThresholdTicks = 6
	p.BreakevenOffsetTicks = 1
	p.TrailingMinProfitTicks = 10
	p.TrailingDistanceTicks = 8
	p.Partial1R, p.Partial1Pct = 2.0, 0.50
	p.InitialStopTicks = 8
	p.InitialTargetTicks = 100 // keep target far away so other rules can fire in tests
	return p
}

func newTestPosition(side Side, entry float64, contracts int) *Position {
	params := testParams()
	return NewPosition("pos-1", "ES", side, entry, contracts, 2.0, "CONTINUATION", 0.7, time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC), params, indicators.Normal, MedConfidence, 0.25)
}

func TestStopHitExitsFull(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 3)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	// stop = 6800 - 8*0.25 = 6798.00
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6797.50, Regime: indicators.Normal}, false, "")
	assert.Equal(t, ExitFull, d.Action)
	assert.Equal(t, ReasonStop, d.Reason)
	assert.Equal(t, 3, d.ExitContracts)
}

func TestForcedFlattenOverridesLowerPriorityRules(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 2)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6800.50, Regime: indicators.Normal}, true, ReasonForcedFlatten)
	assert.Equal(t, ExitFull, d.Action)
	assert.Equal(t, ReasonForcedFlatten, d.Reason)
}

func TestBreakevenArmsAndNeverRetreats(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 2)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	// unrealized 6 ticks = 6801.50
	_ = mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6801.50, Regime: indicators.Normal}, false, "")
	require.True(t, p.BreakevenArmed)
	assert.Equal(t, 6800.25, p.CurrentStop)

	// Price retreats below the arming level but stays above the armed stop;
	// the stop must hold at breakeven+offset, not move again.
	_ = mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(2 * time.Minute), Close: 6800.75, Regime: indicators.Normal}, false, "")
	assert.Equal(t, 6800.25, p.CurrentStop)
}

func TestTrailingRatchetsMonotonically(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 2)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	// unrealized 12 ticks favorable = 6803.00 >= TrailingMinProfitTicks(10)
	_ = mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6803.00, Regime: indicators.Normal}, false, "")
	stop1 := p.CurrentStop
	assert.Greater(t, stop1, 6798.00)

	// Price advances further, trailing stop should move up again.
	_ = mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(2 * time.Minute), Close: 6806.00, Regime: indicators.Normal}, false, "")
	assert.Greater(t, p.CurrentStop, stop1)
}

func TestPartialExitIdempotentPerLevel(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 4)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	// R-multiple 2.0 => unrealized 16 ticks => close 6804.00
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6804.00, Regime: indicators.Normal}, false, "")
	require.Equal(t, ExitPartial, d.Action)
	require.Equal(t, ReasonPartial1, d.Reason)
	mgr.ApplyExit(p, d, 0, p.EntryTime.Add(time.Minute))
	assert.True(t, p.TriggeredPartials[1])

	// Same bar-equivalent price again on a later bar must not re-trigger partial_1.
	d2 := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(2 * time.Minute), Close: 6804.00, Regime: indicators.Normal}, false, "")
	assert.NotEqual(t, ReasonPartial1, d2.Reason)
}

func TestUnderwaterTimeoutFires(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 1)
	mgr := NewManager(StaticExitParamsProvider{Params: testParams()}, 0.25)
	params := testParams()
	params.UnderwaterTimeoutMinutes = 5
	mgr = NewManager(StaticExitParamsProvider{Params: params}, 0.25)

	// Stay underwater (but above stop) across bars spanning > 5 minutes.
	_ = mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6799.90, Regime: indicators.Normal}, false, "")
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(7 * time.Minute), Close: 6799.90, Regime: indicators.Normal}, false, "")
	assert.Equal(t, ExitFull, d.Action)
	assert.Equal(t, ReasonUnderwaterTime, d.Reason)
}

func TestVolSpikeExits(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 1)
	params := testParams()
	params.VolSpikeMult = 2.0
	mgr := NewManager(StaticExitParamsProvider{Params: params}, 0.25)
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(time.Minute), Close: 6800.10, ATR: 5.0, Regime: indicators.Normal}, false, "")
	assert.Equal(t, ExitFull, d.Action)
	assert.Equal(t, ReasonVolSpike, d.Reason)
}

func TestMaxHoldExits(t *testing.T) {
	p := newTestPosition(Long, 6800.00, 1)
	params := testParams()
	params.MaxHoldDurationMinutes = 60
	mgr := NewManager(StaticExitParamsProvider{Params: params}, 0.25)
	d := mgr.EvaluateBar(p, BarContext{Now: p.EntryTime.Add(61 * time.Minute), Close: 6800.10, Regime: indicators.Normal}, false, "")
	assert.Equal(t, ExitFull, d.Action)
	assert.Equal(t, ReasonMaxHold, d.Reason)
}

func TestSizeContractsScalesWithConfidence(t *testing.T) {
	assert.Equal(t, 1, SizeContracts(3, 0.0, false))
	assert.Equal(t, 3, SizeContracts(3, 1.0, false))
	assert.Equal(t, 1, SizeContracts(3, 0.99, true))
}
