package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/apexfutures/internal/marketdata"
)

func params() Params {
	return Params{
		TickSize:                   0.25,
		MaxAcceptableSpread:        4,
		MinBidAskSize:              5,
		ImbalanceThreshold:         3,
		NormalHoursSlippageTicks:   1.0,
		IlliquidHoursSlippageTicks: 2.0,
		IlliquidHoursStartET:       "00:00",
		IlliquidHoursEndET:         "09:30",
	}
}

func TestImbalanceClassification(t *testing.T) {
	m := NewManager(params())
	m.Update(marketdata.Tick{Bid: 100, BidSize: 40, Ask: 100.25, AskSize: 10})
	assert.Equal(t, StrongBid, m.Classify())

	m.Update(marketdata.Tick{Bid: 100, BidSize: 5, Ask: 100.25, AskSize: 40})
	assert.Equal(t, StrongAsk, m.Classify())

	m.Update(marketdata.Tick{Bid: 100, BidSize: 10, Ask: 100.25, AskSize: 10})
	assert.Equal(t, Balanced, m.Classify())
}

func TestEntryGateRejectsWideSpread(t *testing.T) {
	m := NewManager(params())
	m.Update(marketdata.Tick{Bid: 100, BidSize: 10, Ask: 102, AskSize: 10}) // 8 ticks
	ok, reason := m.EntryGate(Long)
	assert.False(t, ok)
	assert.Equal(t, "spread_too_wide", reason)
}

func TestEntryGateRejectsInsufficientDepth(t *testing.T) {
	m := NewManager(params())
	m.Update(marketdata.Tick{Bid: 100, BidSize: 1, Ask: 100.25, AskSize: 1})
	ok, reason := m.EntryGate(Long)
	assert.False(t, ok)
	assert.Equal(t, "insufficient_depth", reason)
}

func TestEntryGateWideningFlag(t *testing.T) {
	m := NewManager(params())
	spreads := []float64{1, 2, 3, 4, 5, 6}
	for i, s := range spreads {
		ask := 100 + s*0.25
		_ = i
		m.Update(marketdata.Tick{Bid: 100, BidSize: 10, Ask: ask, AskSize: 10})
	}
	assert.True(t, m.Widening())
	ok, reason := m.EntryGate(Long)
	assert.False(t, ok)
	assert.Contains(t, []string{"spread_widening", "spread_too_wide"}, reason)
}

func TestExpectedSlippageLiquidAndIlliquidHours(t *testing.T) {
	m := NewManager(params())
	m.Update(marketdata.Tick{Bid: 100, BidSize: 10, Ask: 100.25, AskSize: 10})
	liquidHour := time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)
	illiquidHour := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, m.ExpectedSlippageTicks(liquidHour))
	assert.Equal(t, 2.0, m.ExpectedSlippageTicks(illiquidHour))
}

func TestQueueMonitorFillsBeforeTimeout(t *testing.T) {
	qm := NewQueueMonitor(2 * time.Second)
	calls := 0
	outcome := qm.Monitor(context.Background(), Long, 100, 0.25, 2, func(ctx context.Context) (bool, float64, error) {
		calls++
		return calls >= 2, 100, nil
	})
	assert.Equal(t, QueueFilled, outcome)
}

func TestQueueMonitorTimesOut(t *testing.T) {
	qm := NewQueueMonitor(600 * time.Millisecond)
	outcome := qm.Monitor(context.Background(), Long, 100, 0.25, 2, func(ctx context.Context) (bool, float64, error) {
		return false, 100, nil
	})
	assert.Equal(t, QueueTimeout, outcome)
}

func TestQueueMonitorDetectsPriceMovedAway(t *testing.T) {
	qm := NewQueueMonitor(5 * time.Second)
	outcome := qm.Monitor(context.Background(), Long, 100, 0.25, 2, func(ctx context.Context) (bool, float64, error) {
		return false, 100.75, nil // 3 ticks up, adverse for a resting long
	})
	assert.Equal(t, QueuePriceMovedAway, outcome)
}

func TestQueueMonitorCancelledByHalt(t *testing.T) {
	qm := NewQueueMonitor(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := qm.Monitor(ctx, Long, 100, 0.25, 2, func(ctx context.Context) (bool, float64, error) {
		return false, 100, nil
	})
	assert.Equal(t, QueueCancelled, outcome)
}
