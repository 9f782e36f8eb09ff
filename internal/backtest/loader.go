// Package backtest drives the engine deterministically over a recorded bar
// history instead of a live tick stream. Grounded on the teacher's
// backtest.go (loadCSV/parseTimeFlexible/sortCandles), generalized from the
// teacher's Candle (time, OHLCV) to marketdata.Bar and from a bespoke
// train/test walk-forward to spec §6's `backtest --from --to` replay driven
// through the same Engine.StepBar path live trading uses.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chidi150c/apexfutures/internal/marketdata"
)

// LoadCSV reads a bar history CSV with headers time|timestamp, open, high,
// low, close, volume (case-insensitive, extra columns ignored), matching
// the teacher's loadCSV contract exactly.
func LoadCSV(path string) ([]marketdata.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []marketdata.Bar
	var headers []string
	rowIdx := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: read %s: %w", path, err)
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		ts := first(row, "time", "timestamp")
		op := first(row, "open")
		cp := first(row, "close")
		if ts == "" || op == "" || cp == "" {
			continue
		}
		tt, err := parseTimeFlexible(ts)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(op, 64)
		h, _ := strconv.ParseFloat(first(row, "high"), 64)
		l, _ := strconv.ParseFloat(first(row, "low"), 64)
		c, _ := strconv.ParseFloat(cp, 64)
		v, _ := strconv.ParseFloat(first(row, "volume", "vol"), 64)
		out = append(out, marketdata.Bar{StartTS: tt, Open: o, High: h, Low: l, Close: c, Volume: v})
		rowIdx++
	}

	sortBars(out)
	return out, nil
}

// FilterRange returns the subset of bars with StartTS in [from, to]
// inclusive, backing the `backtest --from --to` flags.
func FilterRange(bars []marketdata.Bar, from, to time.Time) []marketdata.Bar {
	var out []marketdata.Bar
	for _, b := range bars {
		if !from.IsZero() && b.StartTS.Before(from) {
			continue
		}
		if !to.IsZero() && b.StartTS.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("backtest: bad time %q", s)
}

func sortBars(b []marketdata.Bar) {
	sort.Slice(b, func(i, j int) bool { return b[i].StartTS.Before(b[j].StartTS) })
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
