package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/chidi150c/apexfutures/internal/result"
)

// Live talks to a real futures venue: REST for order placement/cancel
// (hashicorp/go-retryablehttp, classified through internal/result so the
// router's circuit breaker sees the same Transient/Permanent/Timeout
// taxonomy as every other outbound call), and a streaming WebSocket
// (gorilla/websocket) for the mid-price feed BridgeBroker (broker_bridge.go)
// instead polled over plain HTTP. Order status is polled over REST
// (GetOrder); the stream carries only mid prices. Grounded on the
// teacher's BridgeBroker for the REST shape (base URL trimming, JSON
// decode of a sidecar-style response) and generalized to a venue-neutral
// order-status stream.
type Live struct {
	baseURL string
	hc      *retryablehttp.Client

	wsURL string

	mu      sync.RWMutex
	mid     float64
	conn    *websocket.Conn
	closeCh chan struct{}
}

// NewLive returns a Live broker pointed at baseURL (REST) and wsURL
// (streaming). Construction does not dial; call Connect to start the
// streaming reader.
func NewLive(baseURL, wsURL string) *Live {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	hc := retryablehttp.NewClient()
	hc.RetryMax = result.DefaultRetrySpec.Max
	hc.RetryWaitMin = result.DefaultRetrySpec.BaseDelay
	hc.RetryWaitMax = result.DefaultRetrySpec.MaxDelay
	hc.Logger = nil
	return &Live{baseURL: baseURL, wsURL: wsURL, hc: hc, closeCh: make(chan struct{})}
}

func (l *Live) Name() string { return "live" }

// Connect dials the streaming feed and starts a background reader that
// updates the cached mid price. The reader exits when ctx is cancelled.
func (l *Live) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	go l.readLoop(ctx)
	return nil
}

func (l *Live) readLoop(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
		}
		l.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.closeCh:
			return
		default:
		}
		l.mu.RLock()
		conn := l.conn
		l.mu.RUnlock()
		if conn == nil {
			return
		}
		var msg struct {
			Mid float64 `json:"mid"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Mid > 0 {
			l.mu.Lock()
			l.mid = msg.Mid
			l.mu.Unlock()
		}
	}
}

// Close stops the streaming reader.
func (l *Live) Close() {
	close(l.closeCh)
}

func (l *Live) Mid(ctx context.Context, instrument string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.mid <= 0 {
		return 0, fmt.Errorf("live: no mid price yet for %s", instrument)
	}
	return l.mid, nil
}

type orderRequest struct {
	Instrument string  `json:"instrument"`
	Side       Side    `json:"side"`
	Qty        int     `json:"qty"`
	Type       string  `json:"type"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

type orderResponse struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	FilledQty    int     `json:"filled_qty"`
	AvgFillPrice float64 `json:"avg_fill_price"`
	Reason       string  `json:"reason,omitempty"`
}

func (l *Live) placeOrder(ctx context.Context, req orderRequest) (*Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, result.WrapPermanent(err)
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/orders", body)
	if err != nil {
		return nil, result.WrapPermanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := l.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return nil, result.WrapPermanent(fmt.Errorf("live: order rejected, status %d", res.StatusCode))
	}
	if res.StatusCode >= 500 {
		return nil, fmt.Errorf("live: venue error, status %d", res.StatusCode)
	}

	var out orderResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &Order{
		ID:              out.OrderID,
		Instrument:      req.Instrument,
		Side:            req.Side,
		Type:            OrderType(req.Type),
		LimitPrice:      req.LimitPrice,
		RequestedQty:    req.Qty,
		FilledQty:       out.FilledQty,
		AvgFillPrice:    out.AvgFillPrice,
		Status:          OrderStatus(out.Status),
		RejectionReason: out.Reason,
		SubmittedAt:     time.Now().UTC(),
		LastUpdateAt:    time.Now().UTC(),
	}, nil
}

func (l *Live) PlaceLimit(ctx context.Context, instrument string, side Side, qty int, limitPrice float64) (*Order, error) {
	return l.placeOrder(ctx, orderRequest{Instrument: instrument, Side: side, Qty: qty, Type: string(Limit), LimitPrice: limitPrice})
}

func (l *Live) PlaceMarket(ctx context.Context, instrument string, side Side, qty int) (*Order, error) {
	return l.placeOrder(ctx, orderRequest{Instrument: instrument, Side: side, Qty: qty, Type: string(Market)})
}

func (l *Live) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, result.WrapPermanent(err)
	}
	res, err := l.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, result.WrapPermanent(fmt.Errorf("live: unknown order %s", orderID))
	}
	var out orderResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &Order{
		ID:           out.OrderID,
		FilledQty:    out.FilledQty,
		AvgFillPrice: out.AvgFillPrice,
		Status:       OrderStatus(out.Status),
		LastUpdateAt: time.Now().UTC(),
	}, nil
}

func (l *Live) CancelOrder(ctx context.Context, orderID string) error {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, l.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return result.WrapPermanent(err)
	}
	res, err := l.hc.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusNotFound {
		return result.WrapPermanent(fmt.Errorf("live: cancel rejected, status %d", res.StatusCode))
	}
	return nil
}

type positionResponse struct {
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	Qty        int     `json:"qty"`
	AvgPrice   float64 `json:"avg_price"`
}

// ListPositions queries the venue's open-positions endpoint, the
// authoritative source spec §4.8's startup reconciliation compares the
// persisted snapshot against.
func (l *Live) ListPositions(ctx context.Context) ([]BrokerPosition, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/positions", nil)
	if err != nil {
		return nil, result.WrapPermanent(err)
	}
	res, err := l.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("live: list positions status %d", res.StatusCode)
	}
	var out []positionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	positions := make([]BrokerPosition, 0, len(out))
	for _, pr := range out {
		positions = append(positions, BrokerPosition{
			Instrument: pr.Instrument,
			Side:       Side(pr.Side),
			Qty:        pr.Qty,
			AvgPrice:   pr.AvgPrice,
		})
	}
	return positions, nil
}

func (l *Live) HealthProbe(ctx context.Context) error {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return result.WrapPermanent(err)
	}
	res, err := l.hc.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("live: health probe status %d", res.StatusCode)
	}
	return nil
}
