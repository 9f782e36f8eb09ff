package experience

import (
	"time"

	"github.com/chidi150c/apexfutures/internal/risk"
)

const auditSchemaVersion = 1

// AuditRecord is one line of the session audit log: either a risk-gate
// decision or an order-state transition, distinguished by Kind. This is the
// SUPPLEMENTED sink spec §7 names ("entry in the session audit log") but
// does not assign to a component; C5 produces the events, C9 owns the
// append-only sink they're written through.
type AuditRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Seq           uint64    `json:"seq"`
	RecordedAt    time.Time `json:"recorded_at"`
	Kind          string    `json:"kind"`

	// Risk-gate decision fields (Kind == "RISK_DECISION").
	EntriesAllowed    bool     `json:"entries_allowed,omitempty"`
	ForceFlattenAll   bool     `json:"force_flatten_all,omitempty"`
	FlattenReason     string   `json:"flatten_reason,omitempty"`
	ConfidenceFloor   float64  `json:"confidence_floor,omitempty"`
	MaxContractsScale float64  `json:"max_contracts_scale,omitempty"`
	BlockReasons      []string `json:"block_reasons,omitempty"`

	// Order-state transition fields (Kind == "ORDER_STATE").
	OrderID     string `json:"order_id,omitempty"`
	Instrument  string `json:"instrument,omitempty"`
	Side        string `json:"side,omitempty"`
	Status      string `json:"status,omitempty"`
	FilledQty   int    `json:"filled_qty,omitempty"`
	RequestedQty int   `json:"requested_qty,omitempty"`
}

func (r AuditRecord) stampSeq(seq uint64) any { r.Seq = seq; return r }

// AuditLog is the session audit sink: one append-only audit_<symbol>.jsonl
// file per traded symbol, using the same line-atomic write+fsync primitive
// as the signal/exit sinks.
type AuditLog struct {
	store *lineStore
}

// NewAuditLog returns an AuditLog rooted at dataDir for symbol.
func NewAuditLog(dataDir, symbol string) (*AuditLog, error) {
	store, err := newLineStore(dataDir, "audit_"+symbol+".jsonl")
	if err != nil {
		return nil, err
	}
	return &AuditLog{store: store}, nil
}

// RecordRiskDecision appends a risk-gate decision, recorded on every bar the
// decision carries a block reason or forces a flatten — a clean pass
// (entries allowed, no forced flatten) is not audit-worthy noise.
func (a *AuditLog) RecordRiskDecision(at time.Time, d risk.Decision) error {
	if a == nil {
		return nil
	}
	if d.EntriesAllowed && !d.ForceFlattenAll {
		return nil
	}
	rec := AuditRecord{
		SchemaVersion:     auditSchemaVersion,
		RecordedAt:        at,
		Kind:              "RISK_DECISION",
		EntriesAllowed:    d.EntriesAllowed,
		ForceFlattenAll:   d.ForceFlattenAll,
		FlattenReason:     d.FlattenReason,
		ConfidenceFloor:   d.ConfidenceFloor,
		MaxContractsScale: d.MaxContractsScale,
		BlockReasons:      d.BlockReasons,
	}
	seq, err := a.store.append(rec)
	rec.Seq = seq
	return err
}

// RecordOrderState appends an order-state transition (spec §4.6's
// SUBMITTED -> ACKED -> {FILLED|PARTIALLY_FILLED|REJECTED|CANCELLED}), so
// the audit log carries a full trail of what the router actually did
// alongside why the gate allowed it.
func (a *AuditLog) RecordOrderState(at time.Time, orderID, instrument, side, status string, filledQty, requestedQty int) error {
	if a == nil {
		return nil
	}
	rec := AuditRecord{
		SchemaVersion: auditSchemaVersion,
		RecordedAt:    at,
		Kind:          "ORDER_STATE",
		OrderID:       orderID,
		Instrument:    instrument,
		Side:          side,
		Status:        status,
		FilledQty:     filledQty,
		RequestedQty:  requestedQty,
	}
	seq, err := a.store.append(rec)
	rec.Seq = seq
	return err
}
