package quotes

import (
	"context"
	"time"
)

// QueueOutcome is the terminal result of monitoring a passive limit order
// (spec §4.3).
type QueueOutcome int

const (
	QueueFilled QueueOutcome = iota
	QueuePriceMovedAway
	QueueTimeout
	QueueCancelled
)

func (o QueueOutcome) String() string {
	switch o {
	case QueueFilled:
		return "FILLED"
	case QueuePriceMovedAway:
		return "PRICE_MOVED_AWAY"
	case QueueTimeout:
		return "TIMEOUT"
	case QueueCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// FillStatusFunc polls the broker for the working order's status. It
// returns (filled, currentMid, error); currentMid is used to detect
// adverse price movement away from the resting limit.
type FillStatusFunc func(ctx context.Context) (filled bool, currentMid float64, err error)

// QueueMonitor polls fill status every 500ms for up to a configured
// timeout (spec §4.3's passive_order_timeout_s, default 10s). It is
// expressed as a cooperative poll loop so a session-halt event (via ctx
// cancellation) preempts it immediately rather than blocking (spec §4.10,
// §5).
type QueueMonitor struct {
	pollInterval time.Duration
	timeout      time.Duration
}

// NewQueueMonitor returns a QueueMonitor with the given passive-order
// timeout. The poll cadence is fixed at 500ms per spec §4.3.
func NewQueueMonitor(timeout time.Duration) *QueueMonitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueueMonitor{pollInterval: 500 * time.Millisecond, timeout: timeout}
}

// Monitor polls poll until filled, the mid price moves >= moveAwayTicks*
// tickSize against entryMid in the adverse direction, the timeout elapses,
// or ctx is cancelled (session halt).
func (q *QueueMonitor) Monitor(ctx context.Context, side Side, entryMid, tickSize, moveAwayTicks float64, poll FillStatusFunc) QueueOutcome {
	deadline := time.Now().Add(q.timeout)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return QueueCancelled
		case <-ticker.C:
			filled, mid, err := poll(ctx)
			if err != nil {
				continue
			}
			if filled {
				return QueueFilled
			}
			if movedAway(side, entryMid, mid, tickSize, moveAwayTicks) {
				return QueuePriceMovedAway
			}
			if time.Now().After(deadline) {
				return QueueTimeout
			}
		}
	}
}

// movedAway reports whether the mid has moved at least moveAwayTicks ticks
// against the resting side (spec §4.3: "mid moved >=2 ticks adverse").
// A resting LONG entry sits at the bid: the market running up and away
// means the order likely won't fill without chasing, so "adverse" is a
// rise. A resting SHORT entry sits at the ask: adverse is a fall.
func movedAway(side Side, entryMid, currentMid, tickSize, moveAwayTicks float64) bool {
	if tickSize <= 0 {
		return false
	}
	delta := (currentMid - entryMid) / tickSize
	switch side {
	case Long:
		return delta >= moveAwayTicks
	case Short:
		return -delta >= moveAwayTicks
	default:
		return false
	}
}
