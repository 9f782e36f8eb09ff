package backtest

import (
	"context"
	"fmt"

	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/clock"
	"github.com/chidi150c/apexfutures/internal/engine"
	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// Result summarizes a completed replay for the CLI to report.
type Result struct {
	BarsProcessed int
}

// Run replays bars through eng in order, advancing clk to each bar's
// timestamp before stepping so every Clock.Now() call the engine makes
// during that bar sees bar-accurate time (spec §9's "global time" design
// note: the engine never calls time.Now() directly, so live and backtest
// share identical decision logic given the same inputs). paper, if
// non-nil, has its simulated mid price advanced to the bar's close before
// each step so resting limit orders fill exactly as they would against a
// live tick feed.
func Run(ctx context.Context, eng *engine.Engine, clk *clock.Manual, paper *broker.Paper, bars []marketdata.Bar) (Result, error) {
	for _, b := range bars {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		clk.Set(b.StartTS)
		if paper != nil {
			paper.SetMid(b.Close)
		}
		if err := eng.StepBar(ctx, b); err != nil {
			return Result{}, fmt.Errorf("backtest: step bar at %s: %w", b.StartTS, err)
		}
	}
	return Result{BarsProcessed: len(bars)}, nil
}
