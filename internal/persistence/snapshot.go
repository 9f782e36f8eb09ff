// Package persistence implements C8: atomic position-state and
// session-state snapshots plus startup broker reconciliation (spec §4.8).
// Grounded on the teacher's Trader.saveStateFrom/loadState (trader.go):
// same write-to-temp-then-rename shape, generalized to fsync before
// rename and rotate the prior file to ".backup" instead of overwriting it
// outright, and split into two independently-flushed ledgers (position,
// session) instead of one monolithic BotState blob.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/position"
)

// PositionSnapshot is the closed-schema, on-disk record of an open
// Position (spec §9: "closed schema per domain entity with a
// schema_version"). Fields mirror position.Position's economically
// meaningful state; derived fields (peaks, adjustment logs) are kept so a
// restored position resumes its exit FSM exactly where it left off.
type PositionSnapshot struct {
	SchemaVersion int `json:"schema_version"`

	ID                 string    `json:"id"`
	Instrument         string    `json:"instrument"`
	Side               string    `json:"side"`
	EntryPrice         float64   `json:"entry_price"`
	EntryTime          time.Time `json:"entry_time"`
	OriginalContracts  int       `json:"original_contracts"`
	RemainingContracts int       `json:"remaining_contracts"`

	InitialRiskTicks float64 `json:"initial_risk_ticks"`
	CurrentStop      float64 `json:"current_stop"`
	InitialTarget    float64 `json:"initial_target"`
	EntryATR         float64 `json:"entry_atr"`
	TradeType        string  `json:"trade_type"`
	Confidence       float64 `json:"confidence"`

	ExitSubstate   string `json:"exit_substate"`
	BreakevenArmed bool   `json:"breakeven_armed"`
	PeakFavorable  float64 `json:"peak_favorable"`
	PeakUnrealized float64 `json:"peak_unrealized"`

	UnderwaterSince time.Time `json:"underwater_since"`
	SidewaysSince   time.Time `json:"sideways_since"`

	TriggeredPartials map[int]bool `json:"triggered_partials"`

	AdverseBarStreak int `json:"adverse_bar_streak"`

	SlippageAlerts     int     `json:"slippage_alerts"`
	TotalSlippageTicks float64 `json:"total_slippage_ticks"`

	WrittenAt time.Time `json:"written_at"`
}

const positionSchemaVersion = 1

// FromPosition converts an in-memory Position into its persisted form.
func FromPosition(p *position.Position) PositionSnapshot {
	return PositionSnapshot{
		SchemaVersion:       positionSchemaVersion,
		ID:                  p.ID,
		Instrument:          p.Instrument,
		Side:                string(p.Side),
		EntryPrice:          p.EntryPrice,
		EntryTime:           p.EntryTime,
		OriginalContracts:   p.OriginalContracts,
		RemainingContracts:  p.RemainingContracts,
		InitialRiskTicks:    p.InitialRiskTicks,
		CurrentStop:         p.CurrentStop,
		InitialTarget:       p.InitialTarget,
		EntryATR:            p.EntryATR,
		TradeType:           p.TradeType,
		Confidence:          p.Confidence,
		ExitSubstate:        string(p.ExitSubstate),
		BreakevenArmed:      p.BreakevenArmed,
		PeakFavorable:       p.PeakFavorable,
		PeakUnrealized:      p.PeakUnrealized,
		UnderwaterSince:     p.UnderwaterSince,
		SidewaysSince:       p.SidewaysSince,
		TriggeredPartials:   copyTriggered(p.TriggeredPartials),
		AdverseBarStreak:    p.AdverseBarStreak,
		SlippageAlerts:      p.SlippageAlerts,
		TotalSlippageTicks:  p.TotalSlippageTicks,
		WrittenAt:           time.Now().UTC(),
	}
}

func copyTriggered(src map[int]bool) map[int]bool {
	out := make(map[int]bool, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ToPosition reconstructs a position.Position from its persisted snapshot.
// Derived-only runtime fields (StopAdjustments, Partials history) are not
// restored; they are an append log the experience recorder already holds
// durably, not state the exit FSM needs to resume correctly.
func (s PositionSnapshot) ToPosition() *position.Position {
	triggered := s.TriggeredPartials
	if triggered == nil {
		triggered = map[int]bool{}
	}
	return &position.Position{
		ID:                 s.ID,
		Instrument:         s.Instrument,
		Side:               position.Side(s.Side),
		EntryPrice:         s.EntryPrice,
		EntryTime:          s.EntryTime,
		OriginalContracts:  s.OriginalContracts,
		RemainingContracts: s.RemainingContracts,
		InitialRiskTicks:   s.InitialRiskTicks,
		CurrentStop:        s.CurrentStop,
		InitialTarget:      s.InitialTarget,
		EntryATR:           s.EntryATR,
		TradeType:          s.TradeType,
		Confidence:         s.Confidence,
		ExitSubstate:       position.ExitSubstate(s.ExitSubstate),
		BreakevenArmed:     s.BreakevenArmed,
		PeakFavorable:      s.PeakFavorable,
		PeakUnrealized:     s.PeakUnrealized,
		UnderwaterSince:    s.UnderwaterSince,
		SidewaysSince:      s.SidewaysSince,
		TriggeredPartials:  triggered,
		AdverseBarStreak:   s.AdverseBarStreak,
		SlippageAlerts:     s.SlippageAlerts,
		TotalSlippageTicks: s.TotalSlippageTicks,
	}
}

// Store owns atomic persistence of position and session snapshots under
// dataDir. One Store per traded symbol (spec §1 scopes one symbol per
// engine instance).
type Store struct {
	dataDir string
	symbol  string
	log     zerolog.Logger
}

// New returns a Store rooted at dataDir for the given symbol.
func New(dataDir, symbol string, log zerolog.Logger) *Store {
	return &Store{dataDir: dataDir, symbol: symbol, log: log}
}

func (s *Store) positionPath() string {
	return filepath.Join(s.dataDir, fmt.Sprintf("position_%s.json", s.symbol))
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.dataDir, fmt.Sprintf("session_%s.json", s.symbol))
}

// atomicWrite implements spec §4.8's write protocol: write to ".new",
// fsync, rename over the live path; the prior live file is first rotated
// to ".backup" so a crash mid-rename never loses both copies.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".new"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		backup := path + ".backup"
		if err := os.Rename(path, backup); err != nil {
			return err
		}
	}
	return os.Rename(tmp, path)
}

// SavePosition writes the position snapshot atomically. Called after every
// position mutation per spec §4.8.
func (s *Store) SavePosition(snap PositionSnapshot) error {
	snap.WrittenAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.positionPath(), data)
}

// ClearPosition removes the position snapshot (and its backup) once a
// position is fully closed and the close is durably recorded, per spec
// §3's lifecycle rule.
func (s *Store) ClearPosition() error {
	for _, p := range []string{s.positionPath(), s.positionPath() + ".backup"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// LoadPosition reads the persisted position snapshot, if any. A missing
// file is not an error: it means no position was open at last shutdown.
func (s *Store) LoadPosition() (*PositionSnapshot, error) {
	return loadSnapshot[PositionSnapshot](s.positionPath())
}

func loadSnapshot[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveSession writes the session-state ledger atomically. Called after
// each completed trade and on clean shutdown (spec §4.8).
func (s *Store) SaveSession(snap SessionSnapshot) error {
	snap.WrittenAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.sessionPath(), data)
}

// LoadSession reads the persisted session snapshot, if any.
func (s *Store) LoadSession() (*SessionSnapshot, error) {
	return loadSnapshot[SessionSnapshot](s.sessionPath())
}

// ReconcileResult records what startup reconciliation decided, for the
// audit trail spec §4.8 requires.
type ReconcileResult struct {
	Position    *position.Position
	Discarded   bool
	Reconstructed bool
	Warning     string
}

// Reconcile implements spec §4.8's startup check: the persisted snapshot
// is compared against the broker's authoritative open-position list for
// the symbol. Three outcomes:
//   - broker has no position, snapshot has one: snapshot discarded, audit note.
//   - broker has a position differing in size or side from the snapshot:
//     broker wins; a minimal Position is reconstructed from the broker's
//     avg price with its stop placed defaultStopTicks ticks away. currentATR
//     is stored as the reconstructed EntryATR and does not set the stop
//     distance.
//   - snapshot and broker agree (or snapshot absent, broker absent): pass
//     through unchanged.
func Reconcile(snap *PositionSnapshot, brokerPositions []broker.BrokerPosition, instrument string, currentATR, tickSize float64, defaultStopTicks float64) ReconcileResult {
	var bp *broker.BrokerPosition
	for i := range brokerPositions {
		if brokerPositions[i].Instrument == instrument {
			bp = &brokerPositions[i]
			break
		}
	}

	switch {
	case snap == nil && bp == nil:
		return ReconcileResult{}
	case snap != nil && bp == nil:
		return ReconcileResult{Discarded: true, Warning: "snapshot showed an open position but broker reports none; snapshot discarded"}
	case snap == nil && bp != nil:
		return reconstructFromBroker(*bp, instrument, currentATR, tickSize, defaultStopTicks, "no persisted snapshot found; reconstructing from broker position")
	default:
		sameSize := snap.RemainingContracts == bp.Qty
		sameSide := snap.Side == string(bp.Side)
		if sameSize && sameSide {
			return ReconcileResult{Position: snap.ToPosition()}
		}
		return reconstructFromBroker(*bp, instrument, currentATR, tickSize, defaultStopTicks,
			fmt.Sprintf("snapshot (side=%s qty=%d) disagreed with broker (side=%s qty=%d); broker is authoritative", snap.Side, snap.RemainingContracts, bp.Side, bp.Qty))
	}
}

func reconstructFromBroker(bp broker.BrokerPosition, instrument string, currentATR, tickSize, defaultStopTicks float64, warning string) ReconcileResult {
	side := position.Side(bp.Side)
	stopDistance := defaultStopTicks * tickSize
	var stop float64
	switch side {
	case position.Long:
		stop = bp.AvgPrice - stopDistance
	case position.Short:
		stop = bp.AvgPrice + stopDistance
	}
	p := &position.Position{
		ID:                 "reconciled-" + instrument,
		Instrument:         instrument,
		Side:               side,
		EntryPrice:         bp.AvgPrice,
		EntryTime:          time.Now().UTC(),
		OriginalContracts:  bp.Qty,
		RemainingContracts: bp.Qty,
		InitialRiskTicks:   defaultStopTicks,
		CurrentStop:        stop,
		EntryATR:           currentATR,
		TradeType:          "CONTINUATION",
		ExitSubstate:       position.Open,
		TriggeredPartials:  map[int]bool{},
	}
	return ReconcileResult{Position: p, Reconstructed: true, Warning: warning}
}
