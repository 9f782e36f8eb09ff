// Package config defines the flat configuration surface of spec §6 and the
// loader that populates it. Grounded on the teacher's env.go/config.go
// (getEnv/getEnvFloat/getEnvBool/getEnvInt + Config struct), generalized to
// also read a YAML file for the bulk, non-secret surface (gopkg.in/yaml.v3,
// a direct dependency of ChoSanghyuk/blackholedex) while keeping the
// teacher's env-var overlay for secrets and operator overrides. Local
// secrets (.env) load through github.com/joho/godotenv rather than the
// teacher's hand-rolled scanner, per SPEC_FULL.md.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every named option of spec §6's configuration surface.
type Config struct {
	Instrument string `yaml:"instrument"`

	AccountSize   float64 `yaml:"account_size"`
	MaxContracts  int     `yaml:"max_contracts"`
	RiskPerTrade  float64 `yaml:"risk_per_trade"`
	MinRiskReward float64 `yaml:"min_risk_reward"`

	DailyLossLimit    float64 `yaml:"daily_loss_limit"`
	StopOnApproach    bool    `yaml:"stop_on_approach"`
	MaxTradesPerDay   int     `yaml:"max_trades_per_day"`
	ConfidenceThresh  float64 `yaml:"confidence_threshold"`
	ExplorationRate   float64 `yaml:"exploration_rate"`

	SessionStartET     string `yaml:"session_start_et"`
	MaintenanceStartET string `yaml:"maintenance_start_et"`
	FlattenForcedET    string `yaml:"flatten_forced_et"`
	FridayCutoffET     string `yaml:"friday_cutoff_et"`
	FOMCBlockEnabled   bool   `yaml:"fomc_block_enabled"`

	EntrySlippageAlertTicks  float64 `yaml:"entry_slippage_alert_ticks"`
	PassiveOrderTimeoutS     int     `yaml:"passive_order_timeout_s"`
	QueuePriceMoveCancelTick float64 `yaml:"queue_price_move_cancel_ticks"`
	ImbalanceThreshold       float64 `yaml:"imbalance_threshold"`
	MinBidAskSize            float64 `yaml:"min_bid_ask_size"`
	MaxAcceptableSpread      float64 `yaml:"max_acceptable_spread"`

	NormalHoursSlippageTicks   float64 `yaml:"normal_hours_slippage_ticks"`
	IlliquidHoursSlippageTicks float64 `yaml:"illiquid_hours_slippage_ticks"`
	IlliquidHoursStartET       string  `yaml:"illiquid_hours_start_et"`
	IlliquidHoursEndET         string  `yaml:"illiquid_hours_end_et"`

	BrokerType  string `yaml:"broker_type"`
	BrokerBaseURL string `yaml:"broker_base_url"`
	BrokerWSURL   string `yaml:"broker_ws_url"`
	DryRun      bool   `yaml:"dry_run"`
	CloudAPIURL string `yaml:"cloud_api_url"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`

	// Secrets — never sourced from the YAML file, only .env/env vars.
	BrokerAPIKey    string `yaml:"-"`
	BrokerAPISecret string `yaml:"-"`
	LicenseKey      string `yaml:"-"`
	DeviceFingerprint string `yaml:"-"`
}

// Default returns the documented defaults for every field, matching the
// teacher's loadConfigFromEnv() fallback values where spec.md names an
// equivalent knob, and spec.md's own stated defaults otherwise
// (session_start_et 18:00, maintenance_start_et 16:45, flatten_forced_et
// 17:00, friday_cutoff_et 16:30, approach threshold 0.80 is in internal/risk
// since it is not operator-tunable per spec).
func Default() Config {
	return Config{
		Instrument:    "ES",
		AccountSize:   50000,
		MaxContracts:  3,
		RiskPerTrade:  0.01,
		MinRiskReward: 1.5,

		DailyLossLimit:   1000,
		StopOnApproach:   true,
		MaxTradesPerDay:  6,
		ConfidenceThresh: 0.55,
		ExplorationRate:  0.05,

		SessionStartET:     "18:00",
		MaintenanceStartET: "16:45",
		FlattenForcedET:    "17:00",
		FridayCutoffET:     "16:30",
		FOMCBlockEnabled:   true,

		EntrySlippageAlertTicks:  2,
		PassiveOrderTimeoutS:     10,
		QueuePriceMoveCancelTick: 2,
		ImbalanceThreshold:       3,
		MinBidAskSize:            5,
		MaxAcceptableSpread:      4,

		NormalHoursSlippageTicks:   1.0,
		IlliquidHoursSlippageTicks: 2.0,
		IlliquidHoursStartET:       "00:00",
		IlliquidHoursEndET:         "09:30",

		BrokerType:    "paper",
		BrokerBaseURL: "",
		BrokerWSURL:   "",
		DryRun:        true,
		CloudAPIURL:   "",
		LogLevel:      "info",
		DataDir:       "data",
	}
}

// Load builds a Config by: (1) starting from Default(), (2) overlaying a
// YAML file at yamlPath if present, (3) loading envPath (and ".env" in cwd)
// via godotenv without overriding already-exported variables, (4) overlaying
// any of the recognized environment variables present. Each stage is
// best-effort: a missing YAML file or .env is not an error, matching the
// teacher's "don't require shell exports" philosophy (env.go).
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	_ = godotenv.Load(envPathOrDefault(envPath))

	overlayEnv(&cfg)
	return cfg, nil
}

// instrumentTickSizes names the minimum price increment for the handful of
// CME E-mini/Micro futures contracts spec §1 scopes this engine to; an
// instrument outside this table falls back to defaultTickSize.
var instrumentTickSizes = map[string]float64{
	"ES": 0.25, "MES": 0.25,
	"NQ": 0.25, "MNQ": 0.25,
	"YM": 1.0, "MYM": 1.0,
	"RTY": 0.10, "M2K": 0.10,
}

const defaultTickSize = 0.25

// TickSizeFor returns the configured instrument's minimum price increment.
func TickSizeFor(instrument string) float64 {
	if ts, ok := instrumentTickSizes[strings.ToUpper(strings.TrimSpace(instrument))]; ok {
		return ts
	}
	return defaultTickSize
}

func envPathOrDefault(p string) string {
	if p != "" {
		return p
	}
	return ".env"
}

func overlayEnv(cfg *Config) {
	str(&cfg.Instrument, "INSTRUMENT")
	fl(&cfg.AccountSize, "ACCOUNT_SIZE")
	in(&cfg.MaxContracts, "MAX_CONTRACTS")
	fl(&cfg.RiskPerTrade, "RISK_PER_TRADE")
	fl(&cfg.MinRiskReward, "MIN_RISK_REWARD")

	fl(&cfg.DailyLossLimit, "DAILY_LOSS_LIMIT")
	bl(&cfg.StopOnApproach, "STOP_ON_APPROACH")
	in(&cfg.MaxTradesPerDay, "MAX_TRADES_PER_DAY")
	fl(&cfg.ConfidenceThresh, "CONFIDENCE_THRESHOLD")
	fl(&cfg.ExplorationRate, "EXPLORATION_RATE")

	str(&cfg.SessionStartET, "SESSION_START_ET")
	str(&cfg.MaintenanceStartET, "MAINTENANCE_START_ET")
	str(&cfg.FlattenForcedET, "FLATTEN_FORCED_ET")
	str(&cfg.FridayCutoffET, "FRIDAY_CUTOFF_ET")
	bl(&cfg.FOMCBlockEnabled, "FOMC_BLOCK_ENABLED")

	fl(&cfg.EntrySlippageAlertTicks, "ENTRY_SLIPPAGE_ALERT_TICKS")
	in(&cfg.PassiveOrderTimeoutS, "PASSIVE_ORDER_TIMEOUT_S")
	fl(&cfg.QueuePriceMoveCancelTick, "QUEUE_PRICE_MOVE_CANCEL_TICKS")
	fl(&cfg.ImbalanceThreshold, "IMBALANCE_THRESHOLD")
	fl(&cfg.MinBidAskSize, "MIN_BID_ASK_SIZE")
	fl(&cfg.MaxAcceptableSpread, "MAX_ACCEPTABLE_SPREAD")

	fl(&cfg.NormalHoursSlippageTicks, "NORMAL_HOURS_SLIPPAGE_TICKS")
	fl(&cfg.IlliquidHoursSlippageTicks, "ILLIQUID_HOURS_SLIPPAGE_TICKS")
	str(&cfg.IlliquidHoursStartET, "ILLIQUID_HOURS_START_ET")
	str(&cfg.IlliquidHoursEndET, "ILLIQUID_HOURS_END_ET")

	str(&cfg.BrokerType, "BROKER_TYPE")
	str(&cfg.BrokerBaseURL, "BROKER_BASE_URL")
	str(&cfg.BrokerWSURL, "BROKER_WS_URL")
	bl(&cfg.DryRun, "DRY_RUN")
	str(&cfg.CloudAPIURL, "CLOUD_API_URL")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.DataDir, "DATA_DIR")

	str(&cfg.BrokerAPIKey, "BROKER_API_KEY")
	str(&cfg.BrokerAPISecret, "BROKER_API_SECRET")
	str(&cfg.LicenseKey, "LICENSE_KEY")
	str(&cfg.DeviceFingerprint, "DEVICE_FINGERPRINT")
}

func str(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func fl(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func in(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func bl(dst *bool, key string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		*dst = true
	case "0", "false", "n", "no":
		*dst = false
	}
}
