package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/position"
)

func testStore(t *testing.T) *Store {
	dir := t.TempDir()
	return New(dir, "ES", zerolog.Nop())
}

func samplePosition() *position.Position {
	params := position.DefaultExitParams()
	return position.NewPosition("pos-1", "ES", position.Long, 6800.00, 2, 1.5, "CONTINUATION", 0.7, time.Now().UTC(), params, indicators.Normal, position.MedConfidence, 0.25)
}

func TestSavePositionThenLoadRoundTrips(t *testing.T) {
	s := testStore(t)
	p := samplePosition()
	p.TriggeredPartials[1] = true

	require.NoError(t, s.SavePosition(FromPosition(p)))
	loaded, err := s.LoadPosition()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, p.ID, loaded.ID)
	assert.Equal(t, p.RemainingContracts, loaded.RemainingContracts)
	assert.True(t, loaded.TriggeredPartials[1])

	restored := loaded.ToPosition()
	assert.Equal(t, p.CurrentStop, restored.CurrentStop)
	assert.Equal(t, p.ExitSubstate, restored.ExitSubstate)
}

func TestLoadPositionMissingFileReturnsNilNoError(t *testing.T) {
	s := testStore(t)
	loaded, err := s.LoadPosition()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSavePositionRotatesPriorToBackup(t *testing.T) {
	s := testStore(t)
	p := samplePosition()

	require.NoError(t, s.SavePosition(FromPosition(p)))
	p.RemainingContracts = 1
	require.NoError(t, s.SavePosition(FromPosition(p)))

	_, err := os.Stat(s.positionPath() + ".backup")
	require.NoError(t, err)
	_, err = os.Stat(s.positionPath() + ".new")
	assert.True(t, os.IsNotExist(err), "the .new temp file must not survive a successful rename")

	loaded, err := s.LoadPosition()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.RemainingContracts)
}

func TestClearPositionRemovesSnapshotAndBackup(t *testing.T) {
	s := testStore(t)
	p := samplePosition()
	require.NoError(t, s.SavePosition(FromPosition(p)))
	require.NoError(t, s.SavePosition(FromPosition(p)))

	require.NoError(t, s.ClearPosition())
	loaded, err := s.LoadPosition()
	require.NoError(t, err)
	assert.Nil(t, loaded)
	_, err = os.Stat(s.positionPath() + ".backup")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveSessionThenLoadRoundTrips(t *testing.T) {
	s := testStore(t)
	snap := SessionSnapshot{TradingDate: time.Now().UTC(), StartingEquity: 50000, CurrentEquity: 50500, DailyPnL: 500, TradesToday: 3}
	require.NoError(t, s.SaveSession(snap))
	loaded, err := s.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 500.0, loaded.DailyPnL)
	assert.Equal(t, 3, loaded.TradesToday)
}

func TestReconcileDiscardsWhenBrokerHasNoPosition(t *testing.T) {
	snap := &PositionSnapshot{Side: "LONG", RemainingContracts: 2}
	res := Reconcile(snap, nil, "ES", 2.0, 0.25, 8)
	assert.True(t, res.Discarded)
	assert.Nil(t, res.Position)
}

func TestReconcilePassesThroughWhenAgreeing(t *testing.T) {
	snap := &PositionSnapshot{ID: "pos-1", Instrument: "ES", Side: "LONG", RemainingContracts: 2, EntryPrice: 6800, CurrentStop: 6798, TriggeredPartials: map[int]bool{}}
	bps := []broker.BrokerPosition{{Instrument: "ES", Side: broker.Long, Qty: 2, AvgPrice: 6800}}
	res := Reconcile(snap, bps, "ES", 2.0, 0.25, 8)
	require.NotNil(t, res.Position)
	assert.False(t, res.Discarded)
	assert.False(t, res.Reconstructed)
	assert.Equal(t, 2, res.Position.RemainingContracts)
}

func TestReconcileReconstructsOnSizeMismatch(t *testing.T) {
	snap := &PositionSnapshot{ID: "pos-1", Instrument: "ES", Side: "LONG", RemainingContracts: 2, TriggeredPartials: map[int]bool{}}
	bps := []broker.BrokerPosition{{Instrument: "ES", Side: broker.Long, Qty: 3, AvgPrice: 6810}}
	res := Reconcile(snap, bps, "ES", 2.0, 0.25, 8)
	require.NotNil(t, res.Position)
	assert.True(t, res.Reconstructed)
	assert.Equal(t, 3, res.Position.RemainingContracts)
	assert.Equal(t, 6810.0, res.Position.EntryPrice)
	assert.InDelta(t, 6808.0, res.Position.CurrentStop, 1e-9)
	assert.NotEmpty(t, res.Warning)
}

func TestReconcileReconstructsFromBrokerWithNoSnapshot(t *testing.T) {
	bps := []broker.BrokerPosition{{Instrument: "ES", Side: broker.Short, Qty: 1, AvgPrice: 6800}}
	res := Reconcile(nil, bps, "ES", 2.0, 0.25, 8)
	require.NotNil(t, res.Position)
	assert.True(t, res.Reconstructed)
	assert.Equal(t, position.Short, res.Position.Side)
	assert.InDelta(t, 6802.0, res.Position.CurrentStop, 1e-9)
}

func TestReconcileNoPositionEitherSide(t *testing.T) {
	res := Reconcile(nil, nil, "ES", 2.0, 0.25, 8)
	assert.Nil(t, res.Position)
	assert.False(t, res.Discarded)
	assert.False(t, res.Reconstructed)
}

func TestPositionPathIncludesSymbol(t *testing.T) {
	s := testStore(t)
	assert.Equal(t, filepath.Join(s.dataDir, "position_ES.json"), s.positionPath())
}
