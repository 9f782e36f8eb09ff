package config

import (
	"fmt"
	"strings"
)

// Violation is one configuration defect, named so a `validate-config` run
// can print a precise, complete list rather than failing on the first
// problem (spec §7: "fail fast at startup with a precise list of
// violations").
type Violation struct {
	Field  string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Detail)
}

// Validate returns every violation found in cfg. A nil/empty result means
// cfg is safe to run with.
func Validate(cfg Config) []Violation {
	var v []Violation

	if strings.TrimSpace(cfg.Instrument) == "" {
		v = append(v, Violation{"instrument", "must not be empty"})
	}
	if cfg.AccountSize <= 0 {
		v = append(v, Violation{"account_size", "must be > 0"})
	}
	if cfg.MaxContracts <= 0 {
		v = append(v, Violation{"max_contracts", "must be > 0"})
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade > 1 {
		v = append(v, Violation{"risk_per_trade", "must be in (0, 1]"})
	}
	if cfg.MinRiskReward <= 0 {
		v = append(v, Violation{"min_risk_reward", "must be > 0"})
	}
	if cfg.DailyLossLimit <= 0 {
		v = append(v, Violation{"daily_loss_limit", "must be > 0"})
	}
	if cfg.MaxTradesPerDay <= 0 {
		v = append(v, Violation{"max_trades_per_day", "must be > 0"})
	}
	if cfg.ConfidenceThresh < 0 || cfg.ConfidenceThresh > 1 {
		v = append(v, Violation{"confidence_threshold", "must be in [0, 1]"})
	}
	if cfg.ExplorationRate < 0 || cfg.ExplorationRate > 1 {
		v = append(v, Violation{"exploration_rate", "must be in [0, 1]"})
	}
	for _, f := range []struct{ name, val string }{
		{"session_start_et", cfg.SessionStartET},
		{"maintenance_start_et", cfg.MaintenanceStartET},
		{"flatten_forced_et", cfg.FlattenForcedET},
		{"friday_cutoff_et", cfg.FridayCutoffET},
		{"illiquid_hours_start_et", cfg.IlliquidHoursStartET},
		{"illiquid_hours_end_et", cfg.IlliquidHoursEndET},
	} {
		if !isHHMM(f.val) {
			v = append(v, Violation{f.name, fmt.Sprintf("must be HH:MM, got %q", f.val)})
		}
	}
	if cfg.EntrySlippageAlertTicks < 0 {
		v = append(v, Violation{"entry_slippage_alert_ticks", "must be >= 0"})
	}
	if cfg.PassiveOrderTimeoutS <= 0 {
		v = append(v, Violation{"passive_order_timeout_s", "must be > 0"})
	}
	if cfg.QueuePriceMoveCancelTick <= 0 {
		v = append(v, Violation{"queue_price_move_cancel_ticks", "must be > 0"})
	}
	if cfg.ImbalanceThreshold <= 1 {
		v = append(v, Violation{"imbalance_threshold", "must be > 1"})
	}
	if cfg.MinBidAskSize < 0 {
		v = append(v, Violation{"min_bid_ask_size", "must be >= 0"})
	}
	if cfg.MaxAcceptableSpread <= 0 {
		v = append(v, Violation{"max_acceptable_spread", "must be > 0"})
	}
	if cfg.NormalHoursSlippageTicks < 0 || cfg.IlliquidHoursSlippageTicks < 0 {
		v = append(v, Violation{"{normal,illiquid}_hours_slippage_ticks", "must be >= 0"})
	}

	switch strings.ToLower(cfg.BrokerType) {
	case "paper", "live":
	default:
		v = append(v, Violation{"broker_type", fmt.Sprintf("unknown broker type %q", cfg.BrokerType)})
	}
	if !cfg.DryRun && strings.ToLower(cfg.BrokerType) == "live" {
		if strings.TrimSpace(cfg.BrokerAPIKey) == "" {
			v = append(v, Violation{"broker_api_key", "required when dry_run=false and broker_type=live"})
		}
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		v = append(v, Violation{"log_level", fmt.Sprintf("unknown level %q", cfg.LogLevel)})
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		v = append(v, Violation{"data_dir", "must not be empty"})
	}

	return v
}

func isHHMM(s string) bool {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return false
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return false
	}
	return h >= 0 && h <= 23 && m >= 0 && m <= 59
}
