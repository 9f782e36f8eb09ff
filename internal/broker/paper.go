package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Paper is an in-memory simulated broker, the futures-router analog of the
// teacher's PaperBroker (broker_paper.go): no external calls, fills
// computed against a mutable last-known price the caller feeds via
// SetMid. Market orders fill immediately at mid; limit orders fill once
// SetMid crosses the resting price, exactly like advancing a backtest
// clock.
type Paper struct {
	mu     sync.Mutex
	mid    float64
	orders map[string]*Order
}

// NewPaper returns an empty Paper broker.
func NewPaper() *Paper {
	return &Paper{orders: make(map[string]*Order)}
}

func (p *Paper) Name() string { return "paper" }

// SetMid updates the simulated market price and resolves any working limit
// orders it now crosses, matching the teacher's pattern of a single
// mutable p.price driven externally by the tick/bar feed.
func (p *Paper) SetMid(mid float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mid = mid
	for _, o := range p.orders {
		if o.Status != Submitted && o.Status != Acked {
			continue
		}
		if o.Type != Limit {
			continue
		}
		crossed := (o.Side == Long && mid <= o.LimitPrice) || (o.Side == Short && mid >= o.LimitPrice)
		if crossed {
			o.FilledQty = o.RequestedQty
			o.AvgFillPrice = o.LimitPrice
			o.Status = Filled
			o.LastUpdateAt = time.Now().UTC()
		}
	}
}

func (p *Paper) Mid(ctx context.Context, instrument string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mid <= 0 {
		return 0, errors.New("paper: no mid price set")
	}
	return p.mid, nil
}

func (p *Paper) PlaceLimit(ctx context.Context, instrument string, side Side, qty int, limitPrice float64) (*Order, error) {
	if qty <= 0 {
		return nil, errors.New("paper: qty must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o := &Order{
		ID:           uuid.NewString(),
		Instrument:   instrument,
		Side:         side,
		Type:         Limit,
		LimitPrice:   limitPrice,
		RequestedQty: qty,
		Status:       Acked,
		SubmittedAt:  time.Now().UTC(),
		LastUpdateAt: time.Now().UTC(),
	}
	p.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (p *Paper) PlaceMarket(ctx context.Context, instrument string, side Side, qty int) (*Order, error) {
	if qty <= 0 {
		return nil, errors.New("paper: qty must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mid <= 0 {
		return nil, errors.New("paper: no mid price set")
	}
	o := &Order{
		ID:           uuid.NewString(),
		Instrument:   instrument,
		Side:         side,
		Type:         Market,
		RequestedQty: qty,
		FilledQty:    qty,
		AvgFillPrice: p.mid,
		Status:       Filled,
		SubmittedAt:  time.Now().UTC(),
		LastUpdateAt: time.Now().UTC(),
	}
	p.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (p *Paper) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil, errors.New("paper: unknown order id")
	}
	return cloneOrder(o), nil
}

func (p *Paper) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil
	}
	if o.Status == Filled || o.Status == Cancelled || o.Status == Rejected {
		return nil
	}
	o.Status = Cancelled
	o.LastUpdateAt = time.Now().UTC()
	return nil
}

func (p *Paper) HealthProbe(ctx context.Context) error { return nil }

// ListPositions derives the net open position per instrument from filled
// orders recorded so far. Paper has no independent position ledger of its
// own (spec §4.8's reconciliation is exercised against this in tests), so
// the derived view is reconstructed on every call rather than cached.
func (p *Paper) ListPositions(ctx context.Context) ([]BrokerPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	type agg struct {
		netQty   int // positive = long, negative = short
		notional float64
	}
	byInstrument := map[string]*agg{}
	for _, o := range p.orders {
		if o.FilledQty <= 0 {
			continue
		}
		a, ok := byInstrument[o.Instrument]
		if !ok {
			a = &agg{}
			byInstrument[o.Instrument] = a
		}
		signed := o.FilledQty
		if o.Side == Short {
			signed = -signed
		}
		a.netQty += signed
		a.notional += float64(o.FilledQty) * o.AvgFillPrice
	}

	var out []BrokerPosition
	for instrument, a := range byInstrument {
		if a.netQty == 0 {
			continue
		}
		side := Long
		qty := a.netQty
		if a.netQty < 0 {
			side = Short
			qty = -a.netQty
		}
		avg := 0.0
		if qty > 0 {
			avg = a.notional / float64(qty)
		}
		out = append(out, BrokerPosition{Instrument: instrument, Side: side, Qty: qty, AvgPrice: avg})
	}
	return out, nil
}

func cloneOrder(o *Order) *Order {
	cp := *o
	return &cp
}
