package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polycycle/config"
	"github.com/alejandrodnm/polycycle/internal/adapters/notify"
	"github.com/alejandrodnm/polycycle/internal/adapters/paper"
	"github.com/alejandrodnm/polycycle/internal/adapters/polymarket"
	"github.com/alejandrodnm/polycycle/internal/adapters/portfolio"
	"github.com/alejandrodnm/polycycle/internal/adapters/storage"
	"github.com/alejandrodnm/polycycle/internal/adapters/workforce"
	"github.com/alejandrodnm/polycycle/internal/api"
	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/orchestrator"
	"github.com/alejandrodnm/polycycle/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one manual cycle and exit")
	paperMode := flag.Bool("paper", false, "simulate fills instead of submitting real orders")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full action tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polycycle starting",
		"config", *configPath,
		"interval_hours", cfg.Trigger.IntervalHours,
		"staleness", cfg.Staleness(),
		"paper", *paperMode,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.APIKey)
	feed := polymarket.NewFeed(client, cfg.API.MaxMarkets)
	pfolio := portfolio.NewMemory(cfg.Portfolio.InitialCashUSDC)

	var gateway ports.ExecutionGateway
	if *paperMode {
		gateway = paper.NewGateway(feed, pfolio)
	} else {
		gateway = polymarket.NewGateway(client, feed, pfolio)
	}

	wf := workforce.NewClient(cfg.Workforce.BaseURL, cfg.Workforce.MinConfidence)

	store, err := storage.NewSQLiteAudit(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open audit storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	recorder := orchestrator.NewRecorder(200, store)
	notifier := notify.NewConsole(*table)

	gate := orchestrator.NewGate(feed)
	runner := orchestrator.NewRunner(gate, wf, gateway, pfolio)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctrlCfg := orchestrator.DefaultConfig()
	ctrlCfg.Interval = time.Duration(float64(time.Hour) * cfg.Trigger.IntervalHours)
	ctrlCfg.Staleness = cfg.Staleness()
	ctrlCfg.MinGap = cfg.MinGap()
	ctrlCfg.CycleTimeout = cfg.CycleTimeout()
	ctrlCfg.WorkforceTimeout = cfg.WorkforceTimeout()
	ctrlCfg.Limits = domain.Limits{
		MaxOpenPositions: cfg.Limits.MaxOpenPositions,
		MaxDailyLoss:     cfg.Limits.MaxDailyLoss,
		MaxDrawdown:      cfg.Limits.MaxDrawdown,
	}

	if *once {
		runOnce(ctx, runner, recorder, notifier, ctrlCfg)
		return
	}

	controller := orchestrator.NewController(ctrlCfg, runner, recorder, notifier)

	if cfg.Admin.Enabled {
		server := api.NewServer(cfg.Admin.Addr, controller, recorder)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start admin api", "err", err, "addr", cfg.Admin.Addr)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("admin api shutdown", "err", err)
			}
		}()
	}

	// Arranca el tren de interval cycles: el primero corre ya, los
	// siguientes se programan a fin-de-ciclo + cadencia.
	if _, err := controller.Trigger(domain.TriggerInterval, "startup schedule", 0); err != nil {
		slog.Error("failed to start interval schedule", "err", err)
		os.Exit(1)
	}

	if err := controller.Run(ctx); err != nil {
		slog.Error("controller exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polycycle stopped cleanly")
}

// runOnce ejecuta un único ciclo manual sin pasar por el controller.
func runOnce(ctx context.Context, runner *orchestrator.Runner, recorder *orchestrator.Recorder, notifier *notify.Console, cfg orchestrator.Config) {
	req := domain.CycleRequest{
		ID:          uuid.NewString(),
		Mode:        domain.TriggerManual,
		RequestedAt: time.Now(),
		Reason:      "one-shot run",
	}

	runCtx := ctx
	if cfg.CycleTimeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeout(ctx, cfg.CycleTimeout)
		defer stop()
	}

	result := runner.Run(runCtx, req, orchestrator.RunConfig{
		Staleness:        cfg.Staleness,
		WorkforceTimeout: cfg.WorkforceTimeout,
		Limits:           cfg.Limits,
	})
	recorder.RecordCycle(result)

	if err := notifier.Notify(ctx, result); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	if result.State != domain.CycleCompleted {
		slog.Error("cycle did not complete", "state", result.State, "err", result.Err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
