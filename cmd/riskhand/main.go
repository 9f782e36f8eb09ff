// Command riskhand is the entrypoint for the intraday futures execution
// engine. Grounded on the teacher's main.go (boot sequence: load env, build
// config, wire broker, start the run loop, serve /metrics), generalized
// from the teacher's hand-rolled flag.Parse() dispatch to three cobra
// subcommands matching spec §6: live, backtest, validate-config.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chidi150c/apexfutures/internal/backtest"
	"github.com/chidi150c/apexfutures/internal/broker"
	"github.com/chidi150c/apexfutures/internal/clock"
	"github.com/chidi150c/apexfutures/internal/config"
	"github.com/chidi150c/apexfutures/internal/engine"
	"github.com/chidi150c/apexfutures/internal/experience"
	"github.com/chidi150c/apexfutures/internal/indicators"
	"github.com/chidi150c/apexfutures/internal/license"
	"github.com/chidi150c/apexfutures/internal/logging"
	"github.com/chidi150c/apexfutures/internal/marketdata"
	"github.com/chidi150c/apexfutures/internal/metrics"
	"github.com/chidi150c/apexfutures/internal/persistence"
	"github.com/chidi150c/apexfutures/internal/position"
	"github.com/chidi150c/apexfutures/internal/quotes"
	"github.com/chidi150c/apexfutures/internal/risk"
	"github.com/chidi150c/apexfutures/internal/router"
	"github.com/chidi150c/apexfutures/internal/signal"
)

// Exit codes per spec §6.
const (
	exitClean             = 0
	exitConfigInvalid     = 1
	exitBrokerAuthFailure = 2
	exitLicenseInvalid    = 3
	exitUnrecoverable     = 4
)

// cliError carries the exit code a failed subcommand should terminate with,
// so main's single os.Exit call stays the only place that decides the
// process's exit status.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitUnrecoverable
		var ce *cliError
		if as, ok := err.(*cliError); ok {
			ce = as
		}
		if ce != nil {
			code = ce.code
		}
		fmt.Fprintln(os.Stderr, "riskhand:", err)
		os.Exit(code)
	}
}

var (
	flagConfigPath string
	flagEnvPath    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "riskhand",
		Short: "Intraday futures execution engine",
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "config.yaml", "path to the YAML config file")
	pf.StringVar(&flagEnvPath, "env", ".env", "path to the .env secrets file")

	root.AddCommand(newLiveCmd(), newBacktestCmd(), newValidateConfigCmd())
	return root
}

func loadAndValidate() (config.Config, error) {
	cfg, err := config.Load(flagConfigPath, flagEnvPath)
	if err != nil {
		return cfg, &cliError{exitConfigInvalid, fmt.Errorf("load config: %w", err)}
	}
	if violations := config.Validate(cfg); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "config violation:", v.String())
		}
		return cfg, &cliError{exitConfigInvalid, fmt.Errorf("%d configuration violation(s)", len(violations))}
	}
	return cfg, nil
}

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration without connecting to a broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfigPath, flagEnvPath)
			if err != nil {
				return &cliError{exitConfigInvalid, fmt.Errorf("load config: %w", err)}
			}
			violations := config.Validate(cfg)
			fmt.Printf("%+v\n", cfg)
			if len(violations) == 0 {
				fmt.Println("config OK: no violations")
				return nil
			}
			for _, v := range violations {
				fmt.Println("violation:", v.String())
			}
			return &cliError{exitConfigInvalid, fmt.Errorf("%d configuration violation(s)", len(violations))}
		},
	}
}

func newLiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Run the engine against a live or paper broker in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndValidate()
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg)
		},
	}
}

func newBacktestCmd() *cobra.Command {
	var from, to, csvPath string
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a bar history through the engine deterministically",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndValidate()
			if err != nil {
				return err
			}
			return runBacktest(cmd.Context(), cfg, csvPath, from, to)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&csvPath, "csv", "", "path to the bar-history CSV (time,open,high,low,close,volume)")
	fs.StringVar(&from, "from", "", "RFC3339 start timestamp, inclusive (default: earliest bar)")
	fs.StringVar(&to, "to", "", "RFC3339 end timestamp, inclusive (default: latest bar)")
	_ = cmd.MarkFlagRequired("csv")
	cmd.Flags().SortFlags = false
	pflag.CommandLine.AddFlagSet(fs)
	return cmd
}

// buildDeps wires every collaborator a running Engine needs from cfg, a
// concrete clock and broker. This is the single place live and backtest
// share so both modes build an identical decision pipeline off the same
// Config (spec §9's "global time"/single-pipeline design notes).
func buildDeps(cfg config.Config, clk clock.Clock, br broker.Broker, log zerolog.Logger) (engine.Deps, float64, error) {
	tickSize := config.TickSizeFor(cfg.Instrument)

	store := persistence.New(cfg.DataDir, cfg.Instrument, logging.Component(log, "persistence"))

	recorder, err := experience.New(cfg.DataDir, cfg.Instrument)
	if err != nil {
		return engine.Deps{}, 0, fmt.Errorf("experience recorder: %w", err)
	}
	auditLog, err := experience.NewAuditLog(cfg.DataDir, cfg.Instrument)
	if err != nil {
		return engine.Deps{}, 0, fmt.Errorf("audit log: %w", err)
	}

	riskParams := risk.Params{
		DailyLossLimit:     cfg.DailyLossLimit,
		StopOnApproach:     cfg.StopOnApproach,
		MaxTradesPerDay:    cfg.MaxTradesPerDay,
		MaxContracts:       cfg.MaxContracts,
		ConfidenceThresh:   cfg.ConfidenceThresh,
		SessionStartET:     cfg.SessionStartET,
		MaintenanceStartET: cfg.MaintenanceStartET,
		FlattenForcedET:    cfg.FlattenForcedET,
		FridayCutoffET:     cfg.FridayCutoffET,
		FOMCBlockEnabled:   cfg.FOMCBlockEnabled,
	}
	gate := risk.NewGate(riskParams, clk, cfg.AccountSize, nil)

	quotesMgr := quotes.NewManager(quotes.Params{
		TickSize:                   tickSize,
		MaxAcceptableSpread:        cfg.MaxAcceptableSpread,
		MinBidAskSize:              cfg.MinBidAskSize,
		ImbalanceThreshold:         cfg.ImbalanceThreshold,
		NormalHoursSlippageTicks:   cfg.NormalHoursSlippageTicks,
		IlliquidHoursSlippageTicks: cfg.IlliquidHoursSlippageTicks,
		IlliquidHoursStartET:       cfg.IlliquidHoursStartET,
		IlliquidHoursEndET:         cfg.IlliquidHoursEndET,
	})

	scorer := &signal.ExplorationScorer{
		Base:            signal.NewHeuristicScorer(),
		ExplorationRate: cfg.ExplorationRate,
		RNG:             rand.Float64,
	}
	signalEngine := signal.NewEngine(signal.DefaultEntryPredicate, scorer)

	positionMgr := position.NewManager(position.StaticExitParamsProvider{Params: position.DefaultExitParams()}, tickSize)

	rt := router.New(br, quotesMgr, router.Config{
		TickSize:              tickSize,
		EntrySlippageAlertTck: cfg.EntrySlippageAlertTicks,
		QueueMoveAwayTicks:    cfg.QueuePriceMoveCancelTick,
		PassiveOrderTimeout:   time.Duration(cfg.PassiveOrderTimeoutS) * time.Second,
		PartialAcceptRatio:    0.5,
	})

	var lic *license.Client
	if cfg.LicenseKey != "" {
		lic = license.New(cfg.CloudAPIURL, cfg.LicenseKey, cfg.DeviceFingerprint, logging.Component(log, "license"))
	}

	deps := engine.Deps{
		Clock:      clk,
		Feed:       marketdata.NewFeed(cfg.Instrument),
		Indicators: indicators.NewPipeline(cfg.SessionStartET),
		Quotes:     quotesMgr,
		Signal:     signalEngine,
		Risk:       gate,
		Position:   positionMgr,
		Router:     rt,
		Store:      store,
		Recorder:   recorder,
		Metrics:    metrics.New(cfg.Instrument),
		License:    lic,
		Audit:      auditLog,
		Log:        logging.Component(log, "engine"),
	}
	return deps, tickSize, nil
}

func selectBroker(cfg config.Config) (broker.Broker, error) {
	switch cfg.BrokerType {
	case "live":
		if cfg.BrokerBaseURL == "" {
			return nil, &cliError{exitBrokerAuthFailure, fmt.Errorf("broker_type=live requires broker_base_url")}
		}
		return broker.NewLive(cfg.BrokerBaseURL, cfg.BrokerWSURL), nil
	default:
		return broker.NewPaper(), nil
	}
}

func runLive(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, false)
	br, err := selectBroker(cfg)
	if err != nil {
		return err
	}
	deps, tickSize, err := buildDeps(cfg, clock.NewSystem(), br, log)
	if err != nil {
		return &cliError{exitUnrecoverable, err}
	}
	eng := engine.New(cfg, tickSize, deps)

	bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := eng.Bootstrap(bootCtx, br, position.DefaultExitParams().InitialStopTicks); err != nil {
		cancel()
		return &cliError{exitUnrecoverable, fmt.Errorf("bootstrap: %w", err)}
	}
	cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok\n")) })
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("serving /metrics and /healthz")
		_ = srv.ListenAndServe()
	}()

	runCtx, stop := ossignal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := eng.Run(runCtx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil && runErr != context.Canceled {
		return &cliError{exitUnrecoverable, runErr}
	}
	return nil
}

func runBacktest(ctx context.Context, cfg config.Config, csvPath, fromStr, toStr string) error {
	log := logging.New(cfg.LogLevel, true)

	bars, err := backtest.LoadCSV(csvPath)
	if err != nil {
		return &cliError{exitUnrecoverable, err}
	}
	var from, to time.Time
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return &cliError{exitConfigInvalid, fmt.Errorf("--from: %w", err)}
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return &cliError{exitConfigInvalid, fmt.Errorf("--to: %w", err)}
		}
	}
	bars = backtest.FilterRange(bars, from, to)
	if len(bars) == 0 {
		return &cliError{exitUnrecoverable, fmt.Errorf("no bars in the requested range")}
	}

	paper := broker.NewPaper()
	clk := clock.NewManual(bars[0].StartTS)
	deps, tickSize, err := buildDeps(cfg, clk, paper, log)
	if err != nil {
		return &cliError{exitUnrecoverable, err}
	}
	eng := engine.New(cfg, tickSize, deps)

	result, err := backtest.Run(ctx, eng, clk, paper, bars)
	if err != nil {
		return &cliError{exitUnrecoverable, err}
	}
	log.Info().Int("bars_processed", result.BarsProcessed).Msg("backtest complete")
	return nil
}
