package position

import "github.com/chidi150c/apexfutures/internal/indicators"

// ExitParams is the closed-schema bundle the exit-params provider returns
// (spec §4.7/§6: "≥120 named fields"). Per spec §9's design-note on closed
// schemas, this is a fixed struct, not a map: every knob §4.7's eleven
// exit rules reference has a name here, plus regime/trade-type/session/
// confidence-tier adjustment fields so a single provider call can express a
// full day's worth of context-dependent exit behavior without the core
// ever needing to know what the model conditions on. The manager uses
// these values verbatim and never overrides them when the provider
// succeeds (spec §4.7); DefaultExitParams is the fallback used only on
// provider failure.
type ExitParams struct {
	SchemaVersion int `json:"schema_version"`

	// --- base per-trade knobs (§4.7 rules 1,3,4,5,6,7,8,9,10,11) ---
	InitialStopTicks          float64 `json:"initial_stop_ticks"`
	InitialTargetTicks        float64 `json:"initial_target_ticks"`
	BreakevenThresholdTicks   float64 `json:"breakeven_threshold_ticks"`
	BreakevenOffsetTicks      float64 `json:"breakeven_offset_ticks"`
	TrailingMinProfitTicks    float64 `json:"trailing_min_profit_ticks"`
	TrailingDistanceTicks     float64 `json:"trailing_distance_ticks"`
	Partial1R                 float64 `json:"partial_1_r"`
	Partial1Pct                float64 `json:"partial_1_pct"`
	Partial2R                 float64 `json:"partial_2_r"`
	Partial2Pct                float64 `json:"partial_2_pct"`
	Partial3R                 float64 `json:"partial_3_r"`
	Partial3Pct                float64 `json:"partial_3_pct"`
	UnderwaterTimeoutMinutes  float64 `json:"underwater_timeout_minutes"`
	SidewaysRangePct          float64 `json:"sideways_range_pct"`
	SidewaysTimeoutMinutes    float64 `json:"sideways_timeout_minutes"`
	VolSpikeMult              float64 `json:"vol_spike_mult"`
	ProfitDrawdownPct         float64 `json:"profit_drawdown_pct"`
	AdverseMomentumBars       int     `json:"adverse_momentum_bars"`
	VolumeExhaustionThreshold float64 `json:"volume_exhaustion_threshold"`
	MaxHoldDurationMinutes    float64 `json:"max_hold_duration_minutes"`

	// --- per-regime multiplier table (7 regimes x 7 knobs = 49 fields) ---
	HighVolChoppyStopTicksMult              float64 `json:"high_vol_choppy_stop_ticks_mult"`
	HighVolChoppyTargetTicksMult            float64 `json:"high_vol_choppy_target_ticks_mult"`
	HighVolChoppyBreakevenThresholdMult     float64 `json:"high_vol_choppy_breakeven_threshold_mult"`
	HighVolChoppyTrailingDistanceMult       float64 `json:"high_vol_choppy_trailing_distance_mult"`
	HighVolChoppyPartial1RMult              float64 `json:"high_vol_choppy_partial_1_r_mult"`
	HighVolChoppyMaxHoldMult                float64 `json:"high_vol_choppy_max_hold_mult"`
	HighVolChoppyVolSpikeMultOverride       float64 `json:"high_vol_choppy_vol_spike_mult_override"`

	HighVolTrendingStopTicksMult          float64 `json:"high_vol_trending_stop_ticks_mult"`
	HighVolTrendingTargetTicksMult        float64 `json:"high_vol_trending_target_ticks_mult"`
	HighVolTrendingBreakevenThresholdMult float64 `json:"high_vol_trending_breakeven_threshold_mult"`
	HighVolTrendingTrailingDistanceMult   float64 `json:"high_vol_trending_trailing_distance_mult"`
	HighVolTrendingPartial1RMult          float64 `json:"high_vol_trending_partial_1_r_mult"`
	HighVolTrendingMaxHoldMult            float64 `json:"high_vol_trending_max_hold_mult"`
	HighVolTrendingVolSpikeMultOverride   float64 `json:"high_vol_trending_vol_spike_mult_override"`

	NormalChoppyStopTicksMult          float64 `json:"normal_choppy_stop_ticks_mult"`
	NormalChoppyTargetTicksMult        float64 `json:"normal_choppy_target_ticks_mult"`
	NormalChoppyBreakevenThresholdMult float64 `json:"normal_choppy_breakeven_threshold_mult"`
	NormalChoppyTrailingDistanceMult   float64 `json:"normal_choppy_trailing_distance_mult"`
	NormalChoppyPartial1RMult          float64 `json:"normal_choppy_partial_1_r_mult"`
	NormalChoppyMaxHoldMult            float64 `json:"normal_choppy_max_hold_mult"`
	NormalChoppyVolSpikeMultOverride   float64 `json:"normal_choppy_vol_spike_mult_override"`

	NormalTrendingStopTicksMult          float64 `json:"normal_trending_stop_ticks_mult"`
	NormalTrendingTargetTicksMult        float64 `json:"normal_trending_target_ticks_mult"`
	NormalTrendingBreakevenThresholdMult float64 `json:"normal_trending_breakeven_threshold_mult"`
	NormalTrendingTrailingDistanceMult   float64 `json:"normal_trending_trailing_distance_mult"`
	NormalTrendingPartial1RMult          float64 `json:"normal_trending_partial_1_r_mult"`
	NormalTrendingMaxHoldMult            float64 `json:"normal_trending_max_hold_mult"`
	NormalTrendingVolSpikeMultOverride   float64 `json:"normal_trending_vol_spike_mult_override"`

	NormalStopTicksMult          float64 `json:"normal_stop_ticks_mult"`
	NormalTargetTicksMult        float64 `json:"normal_target_ticks_mult"`
	NormalBreakevenThresholdMult float64 `json:"normal_breakeven_threshold_mult"`
	NormalTrailingDistanceMult   float64 `json:"normal_trailing_distance_mult"`
	NormalPartial1RMult          float64 `json:"normal_partial_1_r_mult"`
	NormalMaxHoldMult            float64 `json:"normal_max_hold_mult"`
	NormalVolSpikeMultOverride   float64 `json:"normal_vol_spike_mult_override"`

	LowVolRangingStopTicksMult          float64 `json:"low_vol_ranging_stop_ticks_mult"`
	LowVolRangingTargetTicksMult        float64 `json:"low_vol_ranging_target_ticks_mult"`
	LowVolRangingBreakevenThresholdMult float64 `json:"low_vol_ranging_breakeven_threshold_mult"`
	LowVolRangingTrailingDistanceMult   float64 `json:"low_vol_ranging_trailing_distance_mult"`
	LowVolRangingPartial1RMult          float64 `json:"low_vol_ranging_partial_1_r_mult"`
	LowVolRangingMaxHoldMult            float64 `json:"low_vol_ranging_max_hold_mult"`
	LowVolRangingVolSpikeMultOverride   float64 `json:"low_vol_ranging_vol_spike_mult_override"`

	LowVolTrendingStopTicksMult          float64 `json:"low_vol_trending_stop_ticks_mult"`
	LowVolTrendingTargetTicksMult        float64 `json:"low_vol_trending_target_ticks_mult"`
	LowVolTrendingBreakevenThresholdMult float64 `json:"low_vol_trending_breakeven_threshold_mult"`
	LowVolTrendingTrailingDistanceMult   float64 `json:"low_vol_trending_trailing_distance_mult"`
	LowVolTrendingPartial1RMult          float64 `json:"low_vol_trending_partial_1_r_mult"`
	LowVolTrendingMaxHoldMult            float64 `json:"low_vol_trending_max_hold_mult"`
	LowVolTrendingVolSpikeMultOverride   float64 `json:"low_vol_trending_vol_spike_mult_override"`

	// --- per-trade-type multipliers (2 x 5 = 10 fields) ---
	ReversalStopTicksMult              float64 `json:"reversal_stop_ticks_mult"`
	ReversalTargetTicksMult            float64 `json:"reversal_target_ticks_mult"`
	ReversalBreakevenThresholdMult     float64 `json:"reversal_breakeven_threshold_mult"`
	ReversalTrailingDistanceMult       float64 `json:"reversal_trailing_distance_mult"`
	ReversalMaxHoldMult                float64 `json:"reversal_max_hold_mult"`
	ContinuationStopTicksMult          float64 `json:"continuation_stop_ticks_mult"`
	ContinuationTargetTicksMult        float64 `json:"continuation_target_ticks_mult"`
	ContinuationBreakevenThresholdMult float64 `json:"continuation_breakeven_threshold_mult"`
	ContinuationTrailingDistanceMult   float64 `json:"continuation_trailing_distance_mult"`
	ContinuationMaxHoldMult            float64 `json:"continuation_max_hold_mult"`

	// --- per-side overrides (2 x 3 = 6 fields) ---
	LongBreakevenOffsetTicksOverride      float64 `json:"long_breakeven_offset_ticks_override"`
	LongTrailingDistanceTicksOverride     float64 `json:"long_trailing_distance_ticks_override"`
	LongMaxHoldDurationMinutesOverride    float64 `json:"long_max_hold_duration_minutes_override"`
	ShortBreakevenOffsetTicksOverride     float64 `json:"short_breakeven_offset_ticks_override"`
	ShortTrailingDistanceTicksOverride    float64 `json:"short_trailing_distance_ticks_override"`
	ShortMaxHoldDurationMinutesOverride   float64 `json:"short_max_hold_duration_minutes_override"`

	// --- per-session-window multipliers (3 windows x 4 = 12 fields) ---
	OpenWindowStopTicksMult      float64 `json:"open_window_stop_ticks_mult"`
	OpenWindowTargetTicksMult    float64 `json:"open_window_target_ticks_mult"`
	OpenWindowMaxContractsScale  float64 `json:"open_window_max_contracts_scale"`
	OpenWindowMaxHoldMult        float64 `json:"open_window_max_hold_mult"`
	MiddayWindowStopTicksMult     float64 `json:"midday_window_stop_ticks_mult"`
	MiddayWindowTargetTicksMult   float64 `json:"midday_window_target_ticks_mult"`
	MiddayWindowMaxContractsScale float64 `json:"midday_window_max_contracts_scale"`
	MiddayWindowMaxHoldMult       float64 `json:"midday_window_max_hold_mult"`
	PreCloseWindowStopTicksMult     float64 `json:"pre_close_window_stop_ticks_mult"`
	PreCloseWindowTargetTicksMult   float64 `json:"pre_close_window_target_ticks_mult"`
	PreCloseWindowMaxContractsScale float64 `json:"pre_close_window_max_contracts_scale"`
	PreCloseWindowMaxHoldMult       float64 `json:"pre_close_window_max_hold_mult"`

	// --- per-confidence-tier multipliers (3 tiers x 4 = 12 fields) ---
	LowConfidenceStopTicksMult       float64 `json:"low_confidence_stop_ticks_mult"`
	LowConfidenceTargetTicksMult     float64 `json:"low_confidence_target_ticks_mult"`
	LowConfidencePartial1RMult       float64 `json:"low_confidence_partial_1_r_mult"`
	LowConfidenceTrailingDistanceMult float64 `json:"low_confidence_trailing_distance_mult"`
	MedConfidenceStopTicksMult       float64 `json:"med_confidence_stop_ticks_mult"`
	MedConfidenceTargetTicksMult     float64 `json:"med_confidence_target_ticks_mult"`
	MedConfidencePartial1RMult       float64 `json:"med_confidence_partial_1_r_mult"`
	MedConfidenceTrailingDistanceMult float64 `json:"med_confidence_trailing_distance_mult"`
	HighConfidenceStopTicksMult       float64 `json:"high_confidence_stop_ticks_mult"`
	HighConfidenceTargetTicksMult     float64 `json:"high_confidence_target_ticks_mult"`
	HighConfidencePartial1RMult       float64 `json:"high_confidence_partial_1_r_mult"`
	HighConfidenceTrailingDistanceMult float64 `json:"high_confidence_trailing_distance_mult"`

	// --- misc operational knobs (10 fields) ---
	EntryATRTicks                float64 `json:"entry_atr_ticks"`
	StopLossSlippageBufferTicks  float64 `json:"stop_loss_slippage_buffer_ticks"`
	TargetSlippageBufferTicks    float64 `json:"target_slippage_buffer_ticks"`
	MinHoldSeconds               float64 `json:"min_hold_seconds"`
	ReEntryCooldownMinutes       float64 `json:"re_entry_cooldown_minutes"`
	MaxPartialLevels             int     `json:"max_partial_levels"`
	PartialFillMinRatio          float64 `json:"partial_fill_min_ratio"`
	EmergencyFlattenGraceSeconds float64 `json:"emergency_flatten_grace_seconds"`
	LicenseGraceMaxMinutes       float64 `json:"license_grace_max_minutes"`
	StaleDataMaxSeconds          float64 `json:"stale_data_max_seconds"`
}

// DefaultExitParams returns the documented fallback bundle spec §4.7
// requires ("Fallback defaults activate only if the provider fails"). All
// multiplier fields default to 1.0 (no adjustment); override fields
// default to 0, meaning "no override, use the base/trailing value".
func DefaultExitParams() ExitParams {
	p := ExitParams{
		SchemaVersion: 2,

		InitialStopTicks:          8,
		InitialTargetTicks:        16,
		BreakevenThresholdTicks:   6,
		BreakevenOffsetTicks:      1,
		TrailingMinProfitTicks:    10,
		TrailingDistanceTicks:     8,
		Partial1R:                 1.0,
		Partial1Pct:               0.33,
		Partial2R:                 2.0,
		Partial2Pct:               0.33,
		Partial3R:                 3.0,
		Partial3Pct:               0.34,
		UnderwaterTimeoutMinutes:  20,
		SidewaysRangePct:          0.25,
		SidewaysTimeoutMinutes:    30,
		VolSpikeMult:              2.5,
		ProfitDrawdownPct:         0.40,
		AdverseMomentumBars:       3,
		VolumeExhaustionThreshold: 1.5,
		MaxHoldDurationMinutes:    120,

		MaxPartialLevels:             3,
		PartialFillMinRatio:          0.5,
		EmergencyFlattenGraceSeconds: 30,
		LicenseGraceMaxMinutes:       60,
		StaleDataMaxSeconds:          60,
	}
	for _, f := range []*float64{
		&p.HighVolChoppyStopTicksMult, &p.HighVolChoppyTargetTicksMult, &p.HighVolChoppyBreakevenThresholdMult, &p.HighVolChoppyTrailingDistanceMult, &p.HighVolChoppyPartial1RMult, &p.HighVolChoppyMaxHoldMult,
		&p.HighVolTrendingStopTicksMult, &p.HighVolTrendingTargetTicksMult, &p.HighVolTrendingBreakevenThresholdMult, &p.HighVolTrendingTrailingDistanceMult, &p.HighVolTrendingPartial1RMult, &p.HighVolTrendingMaxHoldMult,
		&p.NormalChoppyStopTicksMult, &p.NormalChoppyTargetTicksMult, &p.NormalChoppyBreakevenThresholdMult, &p.NormalChoppyTrailingDistanceMult, &p.NormalChoppyPartial1RMult, &p.NormalChoppyMaxHoldMult,
		&p.NormalTrendingStopTicksMult, &p.NormalTrendingTargetTicksMult, &p.NormalTrendingBreakevenThresholdMult, &p.NormalTrendingTrailingDistanceMult, &p.NormalTrendingPartial1RMult, &p.NormalTrendingMaxHoldMult,
		&p.NormalStopTicksMult, &p.NormalTargetTicksMult, &p.NormalBreakevenThresholdMult, &p.NormalTrailingDistanceMult, &p.NormalPartial1RMult, &p.NormalMaxHoldMult,
		&p.LowVolRangingStopTicksMult, &p.LowVolRangingTargetTicksMult, &p.LowVolRangingBreakevenThresholdMult, &p.LowVolRangingTrailingDistanceMult, &p.LowVolRangingPartial1RMult, &p.LowVolRangingMaxHoldMult,
		&p.LowVolTrendingStopTicksMult, &p.LowVolTrendingTargetTicksMult, &p.LowVolTrendingBreakevenThresholdMult, &p.LowVolTrendingTrailingDistanceMult, &p.LowVolTrendingPartial1RMult, &p.LowVolTrendingMaxHoldMult,
		&p.ReversalStopTicksMult, &p.ReversalTargetTicksMult, &p.ReversalBreakevenThresholdMult, &p.ReversalTrailingDistanceMult, &p.ReversalMaxHoldMult,
		&p.ContinuationStopTicksMult, &p.ContinuationTargetTicksMult, &p.ContinuationBreakevenThresholdMult, &p.ContinuationTrailingDistanceMult, &p.ContinuationMaxHoldMult,
		&p.OpenWindowStopTicksMult, &p.OpenWindowTargetTicksMult, &p.OpenWindowMaxContractsScale, &p.OpenWindowMaxHoldMult,
		&p.MiddayWindowStopTicksMult, &p.MiddayWindowTargetTicksMult, &p.MiddayWindowMaxContractsScale, &p.MiddayWindowMaxHoldMult,
		&p.PreCloseWindowStopTicksMult, &p.PreCloseWindowTargetTicksMult, &p.PreCloseWindowMaxContractsScale, &p.PreCloseWindowMaxHoldMult,
		&p.LowConfidenceStopTicksMult, &p.LowConfidenceTargetTicksMult, &p.LowConfidencePartial1RMult, &p.LowConfidenceTrailingDistanceMult,
		&p.MedConfidenceStopTicksMult, &p.MedConfidenceTargetTicksMult, &p.MedConfidencePartial1RMult, &p.MedConfidenceTrailingDistanceMult,
		&p.HighConfidenceStopTicksMult, &p.HighConfidenceTargetTicksMult, &p.HighConfidencePartial1RMult, &p.HighConfidenceTrailingDistanceMult,
	} {
		*f = 1.0
	}
	return p
}

// ConfidenceTier buckets a scorer confidence into the three tiers the
// multiplier table keys on.
type ConfidenceTier string

const (
	LowConfidence  ConfidenceTier = "LOW"
	MedConfidence  ConfidenceTier = "MEDIUM"
	HighConfidence ConfidenceTier = "HIGH"
)

// ClassifyConfidenceTier buckets confidence into LOW (<0.6), MEDIUM
// (0.6-0.8), HIGH (>0.8).
func ClassifyConfidenceTier(confidence float64) ConfidenceTier {
	switch {
	case confidence > 0.8:
		return HighConfidence
	case confidence >= 0.6:
		return MedConfidence
	default:
		return LowConfidence
	}
}

// SessionWindow buckets the time of day the regime/session multiplier
// table keys on.
type SessionWindow string

const (
	OpenWindow     SessionWindow = "OPEN"
	MiddayWindow   SessionWindow = "MIDDAY"
	PreCloseWindow SessionWindow = "PRE_CLOSE"
)

// regimeMults, confidenceMults and sessionMults look up the multiplier
// fields; a small dispatch table stands in for what a map would otherwise
// do, keeping ExitParams itself a flat, named-field struct.
func (p ExitParams) regimeMults(r indicators.Regime) (stop, target, breakeven, trailing, partial1R, maxHold, volSpikeOverride float64) {
	switch r {
	case indicators.HighVolChoppy:
		return p.HighVolChoppyStopTicksMult, p.HighVolChoppyTargetTicksMult, p.HighVolChoppyBreakevenThresholdMult, p.HighVolChoppyTrailingDistanceMult, p.HighVolChoppyPartial1RMult, p.HighVolChoppyMaxHoldMult, p.HighVolChoppyVolSpikeMultOverride
	case indicators.HighVolTrending:
		return p.HighVolTrendingStopTicksMult, p.HighVolTrendingTargetTicksMult, p.HighVolTrendingBreakevenThresholdMult, p.HighVolTrendingTrailingDistanceMult, p.HighVolTrendingPartial1RMult, p.HighVolTrendingMaxHoldMult, p.HighVolTrendingVolSpikeMultOverride
	case indicators.NormalChoppy:
		return p.NormalChoppyStopTicksMult, p.NormalChoppyTargetTicksMult, p.NormalChoppyBreakevenThresholdMult, p.NormalChoppyTrailingDistanceMult, p.NormalChoppyPartial1RMult, p.NormalChoppyMaxHoldMult, p.NormalChoppyVolSpikeMultOverride
	case indicators.NormalTrending:
		return p.NormalTrendingStopTicksMult, p.NormalTrendingTargetTicksMult, p.NormalTrendingBreakevenThresholdMult, p.NormalTrendingTrailingDistanceMult, p.NormalTrendingPartial1RMult, p.NormalTrendingMaxHoldMult, p.NormalTrendingVolSpikeMultOverride
	case indicators.LowVolRanging:
		return p.LowVolRangingStopTicksMult, p.LowVolRangingTargetTicksMult, p.LowVolRangingBreakevenThresholdMult, p.LowVolRangingTrailingDistanceMult, p.LowVolRangingPartial1RMult, p.LowVolRangingMaxHoldMult, p.LowVolRangingVolSpikeMultOverride
	case indicators.LowVolTrending:
		return p.LowVolTrendingStopTicksMult, p.LowVolTrendingTargetTicksMult, p.LowVolTrendingBreakevenThresholdMult, p.LowVolTrendingTrailingDistanceMult, p.LowVolTrendingPartial1RMult, p.LowVolTrendingMaxHoldMult, p.LowVolTrendingVolSpikeMultOverride
	default:
		return p.NormalStopTicksMult, p.NormalTargetTicksMult, p.NormalBreakevenThresholdMult, p.NormalTrailingDistanceMult, p.NormalPartial1RMult, p.NormalMaxHoldMult, p.NormalVolSpikeMultOverride
	}
}

func (p ExitParams) confidenceMults(tier ConfidenceTier) (stop, target, partial1R, trailing float64) {
	switch tier {
	case HighConfidence:
		return p.HighConfidenceStopTicksMult, p.HighConfidenceTargetTicksMult, p.HighConfidencePartial1RMult, p.HighConfidenceTrailingDistanceMult
	case LowConfidence:
		return p.LowConfidenceStopTicksMult, p.LowConfidenceTargetTicksMult, p.LowConfidencePartial1RMult, p.LowConfidenceTrailingDistanceMult
	default:
		return p.MedConfidenceStopTicksMult, p.MedConfidenceTargetTicksMult, p.MedConfidencePartial1RMult, p.MedConfidenceTrailingDistanceMult
	}
}

func (p ExitParams) sessionMults(w SessionWindow) (stop, target, maxContractsScale, maxHold float64) {
	switch w {
	case OpenWindow:
		return p.OpenWindowStopTicksMult, p.OpenWindowTargetTicksMult, p.OpenWindowMaxContractsScale, p.OpenWindowMaxHoldMult
	case PreCloseWindow:
		return p.PreCloseWindowStopTicksMult, p.PreCloseWindowTargetTicksMult, p.PreCloseWindowMaxContractsScale, p.PreCloseWindowMaxHoldMult
	default:
		return p.MiddayWindowStopTicksMult, p.MiddayWindowTargetTicksMult, p.MiddayWindowMaxContractsScale, p.MiddayWindowMaxHoldMult
	}
}

// EffectiveStop/Target/etc. compose the base value with the regime,
// trade-type, and confidence-tier multipliers. Session-window multipliers
// are not part of these compositions, and sessionMults has no caller.
func (p ExitParams) EffectiveStopTicks(r indicators.Regime, tt string, tier ConfidenceTier) float64 {
	rm, _, _, _, _, _, _ := p.regimeMults(r)
	cm, _, _, _ := p.confidenceMults(tier)
	ttm := 1.0
	if tt == "REVERSAL" {
		ttm = p.ReversalStopTicksMult
	} else if tt == "CONTINUATION" {
		ttm = p.ContinuationStopTicksMult
	}
	return p.InitialStopTicks * nz(rm) * nz(cm) * nz(ttm)
}

func (p ExitParams) EffectiveTargetTicks(r indicators.Regime, tt string, tier ConfidenceTier) float64 {
	_, rm, _, _, _, _, _ := p.regimeMults(r)
	_, cm, _, _ := p.confidenceMults(tier)
	ttm := 1.0
	if tt == "REVERSAL" {
		ttm = p.ReversalTargetTicksMult
	} else if tt == "CONTINUATION" {
		ttm = p.ContinuationTargetTicksMult
	}
	return p.InitialTargetTicks * nz(rm) * nz(cm) * nz(ttm)
}

func (p ExitParams) EffectiveTrailingDistanceTicks(r indicators.Regime, side string) float64 {
	_, _, _, rm, _, _, _ := p.regimeMults(r)
	override := 0.0
	if side == "LONG" {
		override = p.LongTrailingDistanceTicksOverride
	} else if side == "SHORT" {
		override = p.ShortTrailingDistanceTicksOverride
	}
	if override > 0 {
		return override
	}
	return p.TrailingDistanceTicks * nz(rm)
}

func (p ExitParams) EffectiveMaxHoldMinutes(r indicators.Regime, side string) float64 {
	_, _, _, _, _, rm, _ := p.regimeMults(r)
	override := 0.0
	if side == "LONG" {
		override = p.LongMaxHoldDurationMinutesOverride
	} else if side == "SHORT" {
		override = p.ShortMaxHoldDurationMinutesOverride
	}
	if override > 0 {
		return override
	}
	return p.MaxHoldDurationMinutes * nz(rm)
}

func nz(v float64) float64 {
	if v == 0 {
		return 1.0
	}
	return v
}
