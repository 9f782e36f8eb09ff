// Package clock provides the single injected source of time the engine
// reads. Spec design note "global time": the core never calls time.Now()
// or a monotonic source directly outside this package, so the same engine
// code runs deterministically against a live clock or a backtest replay.
package clock

import "time"

// Clock is the engine's only view of time: a wall clock for calendar/session
// logic (ET session boundaries, event blackouts) and a monotonic clock for
// timers and elapsed-duration math.
type Clock interface {
	// Now returns the current wall-clock time, UTC.
	Now() time.Time
	// Monotonic returns a monotonically increasing duration since some
	// arbitrary epoch fixed at Clock construction. Only differences between
	// two Monotonic() calls are meaningful.
	Monotonic() time.Duration
}

// System is the live Clock backed by the OS.
type System struct {
	start time.Time
}

// NewSystem returns a Clock backed by the real OS clock.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() time.Time { return time.Now().UTC() }

func (s *System) Monotonic() time.Duration { return time.Since(s.start) }

// Manual is a Clock a backtest or test drives explicitly. It is not
// goroutine-safe; the engine's single-threaded event loop is its only
// caller, matching spec §5's scheduling model.
type Manual struct {
	now  time.Time
	mono time.Duration
}

// NewManual returns a Manual clock seeded at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) Monotonic() time.Duration { return m.mono }

// Advance moves the manual clock forward by d, keeping wall and monotonic
// time in lockstep — the simplest model a replay harness needs.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
	m.mono += d
}

// Set jumps the wall clock to t without advancing the monotonic clock,
// for seeding a backtest's starting timestamp.
func (m *Manual) Set(t time.Time) {
	m.now = t.UTC()
}

// ET is a small helper shared by every component that reasons about
// session boundaries expressed in Eastern Time (spec §4.2, §4.5).
var ET *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed UTC-5 offset (standard time, no DST) if the
		// platform has no tzdata installed; logged by callers that care.
		loc = time.FixedZone("ET", -5*60*60)
	}
	ET = loc
}

// InET converts t to the shared Eastern-Time location used for all session,
// maintenance-window and blackout-window comparisons.
func InET(t time.Time) time.Time {
	return t.In(ET)
}
