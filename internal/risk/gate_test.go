package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/apexfutures/internal/clock"
)

func testParams() Params {
	return Params{
		DailyLossLimit:     1000,
		StopOnApproach:     true,
		MaxTradesPerDay:    6,
		MaxContracts:       3,
		ConfidenceThresh:   0.55,
		SessionStartET:     "18:00",
		MaintenanceStartET: "16:45",
		FlattenForcedET:    "17:00",
		FridayCutoffET:     "16:30",
		FOMCBlockEnabled:   true,
	}
}

func TestGateBlocksOnDailyLossLimit(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	g.RecordPnL(-1000, time.Now())
	d := g.Evaluate(time.Now(), false, LicenseValid)
	assert.False(t, d.EntriesAllowed)
	assert.Contains(t, d.BlockReasons, "DAILY_LOSS_LIMIT")
	assert.True(t, g.State().Halted)
	assert.Equal(t, "DAILY_LOSS_LIMIT", g.State().HaltReason)
}

func TestGateRecoveryModeScalesTiers(t *testing.T) {
	p := testParams()
	p.StopOnApproach = false
	g := NewGate(p, clock.NewSystem(), 50000, nil)
	g.RecordPnL(-900, time.Now()) // 0.90 of 1000
	d := g.Evaluate(time.Now(), false, LicenseValid)
	assert.True(t, d.EntriesAllowed)
	assert.Equal(t, 0.85, d.ConfidenceFloor)
	assert.Equal(t, 0.50, d.MaxContractsScale)
}

func TestGateBlocksAtMaxTradesPerDay(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	for i := 0; i < 6; i++ {
		g.RecordTradeOpened()
	}
	d := g.Evaluate(time.Now(), false, LicenseValid)
	assert.False(t, d.EntriesAllowed)
	assert.Contains(t, d.BlockReasons, "MAX_TRADES_PER_DAY")
}

func TestGateMaintenanceWindowForcesFlatten(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	loc, _ := time.LoadLocation("America/New_York")
	now := time.Date(2026, 1, 5, 16, 50, 0, 0, loc) // Monday 16:50 ET
	d := g.Evaluate(now, true, LicenseValid)
	assert.False(t, d.EntriesAllowed)
	assert.Contains(t, d.BlockReasons, "MAINTENANCE_WINDOW")
	assert.True(t, d.ForceFlattenAll)
}

func TestGateFridayCutoffBlocksEntries(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	loc, _ := time.LoadLocation("America/New_York")
	now := time.Date(2026, 1, 2, 16, 35, 0, 0, loc) // Friday 16:35 ET
	d := g.Evaluate(now, false, LicenseValid)
	assert.False(t, d.EntriesAllowed)
	assert.Contains(t, d.BlockReasons, "FRIDAY_CUTOFF")
}

func TestGateEventBlackoutFlattenOnlyOnce(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	evAt := time.Date(2026, 1, 6, 14, 30, 0, 0, loc)
	g := NewGate(testParams(), clock.NewSystem(), 50000, []EconomicEvent{{At: evAt}})
	now := evAt.Add(-10 * time.Minute)
	d1 := g.Evaluate(now, true, LicenseValid)
	assert.False(t, d1.EntriesAllowed)
	assert.True(t, d1.ForceFlattenAll)

	d2 := g.Evaluate(now.Add(time.Minute), true, LicenseValid)
	assert.False(t, d2.EntriesAllowed)
	assert.False(t, d2.ForceFlattenAll)
}

func TestGateLicenseExpiredNoPositionDisablesAll(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	d := g.Evaluate(time.Now(), false, LicenseExpiredNoPosition)
	assert.False(t, d.EntriesAllowed)
	assert.False(t, d.ForceFlattenAll)
}

func TestGateLicenseExpiredWithPositionForcesFlatten(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	d := g.Evaluate(time.Now(), true, LicenseExpiredNoPosition)
	assert.False(t, d.EntriesAllowed)
	assert.True(t, d.ForceFlattenAll)
	assert.Equal(t, "LICENSE_EXPIRED", d.FlattenReason)
}

func TestGateLicenseConflictWithPositionBlocksEntriesOnly(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	d := g.Evaluate(time.Now(), true, LicenseConflictWithPosition)
	assert.False(t, d.EntriesAllowed)
	assert.False(t, d.ForceFlattenAll)
	assert.Contains(t, d.BlockReasons, "LICENSE_CONFLICT")
}

func TestGateMaybeResetClearsCounters(t *testing.T) {
	g := NewGate(testParams(), clock.NewSystem(), 50000, nil)
	g.RecordPnL(-500, time.Now())
	g.RecordTradeOpened()
	loc, _ := time.LoadLocation("America/New_York")
	next := time.Date(2026, 1, 3, 18, 0, 0, 0, loc)
	reset := g.MaybeReset(next, 49500)
	assert.True(t, reset)
	assert.True(t, g.State().DailyPnL.IsZero())
	assert.Equal(t, 0, g.State().TradesToday)
}
