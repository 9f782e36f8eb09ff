package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/apexfutures/internal/indicators"
)

func TestNewPositionSeedsStopAndTargetForLong(t *testing.T) {
	params := DefaultExitParams()
	params.InitialStopTicks = 8
	params.InitialTargetTicks = 16
	p := NewPosition("p1", "ES", Long, 6800.00, 2, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	assert.Equal(t, Open, p.ExitSubstate)
	assert.InDelta(t, 6798.00, p.CurrentStop, 1e-9)
	assert.InDelta(t, 6804.00, p.InitialTarget, 1e-9)
	assert.NotNil(t, p.TriggeredPartials)
}

func TestNewPositionSeedsStopAndTargetForShort(t *testing.T) {
	params := DefaultExitParams()
	params.InitialStopTicks = 8
	params.InitialTargetTicks = 16
	p := NewPosition("p2", "ES", Short, 6800.00, 2, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	assert.InDelta(t, 6802.00, p.CurrentStop, 1e-9)
	assert.InDelta(t, 6796.00, p.InitialTarget, 1e-9)
}

func TestUnrealizedTicksAndRMultiple(t *testing.T) {
	params := DefaultExitParams()
	params.InitialStopTicks = 8
	p := NewPosition("p3", "ES", Long, 6800.00, 1, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	assert.InDelta(t, 8.0, p.UnrealizedTicks(6802.00, 0.25), 1e-9)
	assert.InDelta(t, 1.0, p.RMultiple(6802.00, 0.25), 1e-9)

	assert.InDelta(t, -8.0, p.UnrealizedTicks(6798.00, 0.25), 1e-9)
}

func TestRecordStopAdjustmentAppendsHistory(t *testing.T) {
	params := DefaultExitParams()
	p := NewPosition("p4", "ES", Long, 6800.00, 1, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	p.recordStopAdjustment(time.Now(), 6801.00, "TEST")
	assert.Len(t, p.StopAdjustments, 1)
	assert.Equal(t, 6801.00, p.CurrentStop)
	assert.Equal(t, "TEST", p.StopAdjustments[0].Reason)
}

func TestApplyExitPartialThenFullClose(t *testing.T) {
	params := DefaultExitParams()
	params.Partial1R, params.Partial1Pct = 1.0, 0.5
	mgr := NewManager(StaticExitParamsProvider{Params: params}, 0.25)
	p := NewPosition("p5", "ES", Long, 6800.00, 4, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)

	mgr.ApplyExit(p, Decision{Action: ExitPartial, Reason: ReasonPartial1, ExitContracts: 2}, 50.0, time.Now())
	assert.Equal(t, 2, p.RemainingContracts)
	assert.Equal(t, Partial1, p.ExitSubstate)
	assert.Equal(t, 50.0, p.RealizedPnL)

	mgr.ApplyExit(p, Decision{Action: ExitFull, Reason: ReasonTarget, ExitContracts: 2}, 80.0, time.Now())
	assert.Equal(t, 0, p.RemainingContracts)
	assert.Equal(t, Closed, p.ExitSubstate)
	assert.Equal(t, Closing, p.PriorSubstate)
	assert.Equal(t, 130.0, p.RealizedPnL)
}

func TestApplyExitStopRecordsStopHitBranch(t *testing.T) {
	params := DefaultExitParams()
	mgr := NewManager(StaticExitParamsProvider{Params: params}, 0.25)
	p := NewPosition("p6", "ES", Long, 6800.00, 1, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	mgr.ApplyExit(p, Decision{Action: ExitFull, Reason: ReasonStop, ExitContracts: 1}, -20.0, time.Now())
	assert.Equal(t, StopHit, p.PriorSubstate)
}

func TestApplyExitForcedFlattenRecordsBranch(t *testing.T) {
	params := DefaultExitParams()
	mgr := NewManager(StaticExitParamsProvider{Params: params}, 0.25)
	p := NewPosition("p7", "ES", Long, 6800.00, 1, 1.5, "CONTINUATION", 0.7, time.Now(), params, indicators.Normal, MedConfidence, 0.25)
	mgr.ApplyExit(p, Decision{Action: ExitFull, Reason: ReasonForcedFlatten, ExitContracts: 1}, 5.0, time.Now())
	assert.Equal(t, ForcedFlatten, p.PriorSubstate)
}
