package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/marketdata"
	"github.com/chidi150c/apexfutures/internal/quotes"
)

type fakeBroker struct {
	mid           float64
	nextStatus    broker.OrderStatus
	nextFillQty   int
	nextFillPrice float64
	placeErr      error
	orders        map[string]*broker.Order
	healthErr     error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{orders: map[string]*broker.Order{}, nextStatus: broker.Filled}
}

func (f *fakeBroker) Name() string { return "fake" }

func (f *fakeBroker) PlaceLimit(ctx context.Context, instrument string, side broker.Side, qty int, limitPrice float64) (*broker.Order, error) {
	return f.place(instrument, side, qty, broker.Limit, limitPrice)
}

func (f *fakeBroker) PlaceMarket(ctx context.Context, instrument string, side broker.Side, qty int) (*broker.Order, error) {
	return f.place(instrument, side, qty, broker.Market, 0)
}

func (f *fakeBroker) place(instrument string, side broker.Side, qty int, typ broker.OrderType, limitPrice float64) (*broker.Order, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	fillQty := f.nextFillQty
	if fillQty == 0 {
		fillQty = qty
	}
	fillPrice := f.nextFillPrice
	if fillPrice == 0 {
		fillPrice = f.mid
	}
	o := &broker.Order{
		ID: "ord-1", Instrument: instrument, Side: side, Type: typ,
		LimitPrice: limitPrice, RequestedQty: qty, FilledQty: fillQty,
		AvgFillPrice: fillPrice, Status: f.nextStatus,
	}
	f.orders["ord-1"] = o
	return o, nil
}

func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, errors.New("not found")
	}
	return o, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	if o, ok := f.orders[orderID]; ok {
		o.Status = broker.Cancelled
	}
	return nil
}

func (f *fakeBroker) Mid(ctx context.Context, instrument string) (float64, error) { return f.mid, nil }

func (f *fakeBroker) HealthProbe(ctx context.Context) error { return f.healthErr }

func (f *fakeBroker) ListPositions(ctx context.Context) ([]broker.BrokerPosition, error) {
	return nil, nil
}

func qmWithImbalance(imb quotes.Imbalance) *quotes.Manager {
	m := quotes.NewManager(quotes.Params{TickSize: 0.25, ImbalanceThreshold: 3, MaxAcceptableSpread: 4, MinBidAskSize: 1})
	switch imb {
	case quotes.StrongBid:
		m.Update(marketdata.Tick{Bid: 100, BidSize: 40, Ask: 100.25, AskSize: 5})
	case quotes.StrongAsk:
		m.Update(marketdata.Tick{Bid: 100, BidSize: 5, Ask: 100.25, AskSize: 40})
	default:
		m.Update(marketdata.Tick{Bid: 100, BidSize: 10, Ask: 100.25, AskSize: 10})
	}
	return m
}

func TestEnterRoutesAggressiveWhenImbalanceNotAligned(t *testing.T) {
	fb := newFakeBroker()
	fb.mid = 100.1
	qm := qmWithImbalance(quotes.StrongAsk)
	r := New(fb, qm, Config{TickSize: 0.25, EntrySlippageAlertTck: 2, QueueMoveAwayTicks: 2, PassiveOrderTimeout: time.Second})

	outcome, err := r.Enter(context.Background(), "ES", broker.Long, 1, 100.0)
	require.NoError(t, err)
	require.NotNil(t, outcome.Order)
	assert.Equal(t, broker.Market, outcome.Order.Type)
}

func TestEnterRoutesPassiveWhenAligned(t *testing.T) {
	fb := newFakeBroker()
	fb.mid = 100.0
	fb.nextStatus = broker.Filled
	qm := qmWithImbalance(quotes.StrongBid)
	r := New(fb, qm, Config{TickSize: 0.25, EntrySlippageAlertTck: 2, QueueMoveAwayTicks: 2, PassiveOrderTimeout: time.Second})

	outcome, err := r.Enter(context.Background(), "ES", broker.Long, 1, 100.0)
	require.NoError(t, err)
	require.NotNil(t, outcome.Order)
	assert.Equal(t, broker.Limit, outcome.Order.Type)
}

func TestEnterAbortsOnInsufficientPartialFill(t *testing.T) {
	fb := newFakeBroker()
	fb.mid = 100.1
	fb.nextStatus = broker.PartiallyFilled
	fb.nextFillQty = 1 // 1/4 = 0.25 < 0.5 threshold
	qm := qmWithImbalance(quotes.StrongAsk)
	r := New(fb, qm, Config{TickSize: 0.25, PassiveOrderTimeout: time.Second})

	outcome, err := r.Enter(context.Background(), "ES", broker.Long, 4, 100.0)
	require.NoError(t, err)
	assert.True(t, outcome.Aborted)
}

func TestExitEmergencyExhaustsRetriesOnPersistentFailure(t *testing.T) {
	fb := newFakeBroker()
	fb.mid = 100.0
	fb.placeErr = errors.New("temporary broker error")
	qm := qmWithImbalance(quotes.Balanced)
	r := New(fb, qm, Config{TickSize: 0.25, PassiveOrderTimeout: time.Second})

	_, err := r.Exit(context.Background(), "ES", broker.Long, 1, ReasonEmergency, 0)
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fb := newFakeBroker()
	fb.placeErr = errors.New("boom")
	qm := qmWithImbalance(quotes.Balanced)
	r := New(fb, qm, Config{TickSize: 0.25, PassiveOrderTimeout: time.Second})

	for i := 0; i < 5; i++ {
		_, _ = r.Exit(context.Background(), "ES", broker.Long, 1, ReasonStop, 0)
	}
	assert.True(t, r.BreakerOpen())
}

func TestValidateEntrySlippageAlertsOnAdverseFill(t *testing.T) {
	fb := newFakeBroker()
	qm := qmWithImbalance(quotes.Balanced)
	r := New(fb, qm, Config{TickSize: 0.25, EntrySlippageAlertTck: 2})
	ticks, alert := r.validateEntrySlippage(broker.Long, 100.0, 100.75) // 3 ticks adverse
	assert.Equal(t, 3.0, ticks)
	assert.True(t, alert)
}
