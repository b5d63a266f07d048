package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"netsentry/internal/adapter"
	"netsentry/internal/config"
	"netsentry/internal/logging"
	"netsentry/internal/notify"
	"netsentry/internal/policy"
	"netsentry/internal/repository/sqlite"
	"netsentry/internal/service"
	"netsentry/internal/telemetry"
	"netsentry/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file path (overrides search path)")
	dbPath := flag.String("db", "", "inventory database path (overrides config)")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	flag.Parse()

	if err := run(*configPath, *dbPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "netsentry: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, once bool) error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log := logging.New(cfg.Log)
	log.Info().Str("config", path).Msg("starting netsentry")

	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "" {
		return fmt.Errorf("telegram credentials missing: set %s and %s", config.EnvBotToken, config.EnvChatID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening inventory database: %w", err)
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("inventory database opened")

	pol := policy.NewStore(cfg.Policy.WhitelistPath, cfg.Policy.BlacklistPath, log)
	if allow, deny := pol.Refresh(); allow == 0 && deny == 0 {
		log.Warn().
			Str("whitelist", cfg.Policy.WhitelistPath).
			Str("blacklist", cfg.Policy.BlacklistPath).
			Msg("policy lists are empty: every observed device will alert")
	}

	// Policy file edits take effect on the next cycle without a restart
	go func() {
		paths := []string{cfg.Policy.WhitelistPath, cfg.Policy.BlacklistPath}
		if err := watcher.Watch(ctx, paths, log, func(string) { pol.Invalidate() }); err != nil {
			log.Warn().Err(err).Msg("policy file watcher stopped")
		}
	}()

	messenger := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = messenger.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("verifying telegram credentials: %w", err)
	}
	log.Info().Msg("telegram credentials verified")

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics = telemetry.New(registry)
		go func() {
			if err := telemetry.Serve(ctx, cfg.Metrics.Addr, registry, log); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	scanner := buildScanner(cfg, log)
	reconciler := service.NewReconciler(scanner, store, pol, cfg.Scan, metrics, log)
	dispatcher := service.NewDispatcher(messenger, cfg.Alerts, metrics, log)

	if once {
		return runOnce(ctx, reconciler, dispatcher, cfg, log)
	}

	monitor := service.NewMonitor(reconciler, dispatcher, cfg.Scan, metrics, log)
	if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("netsentry stopped")
	return nil
}

// runOnce drives a single cycle, used for cron-style deployments and
// smoke testing a new config.
func runOnce(ctx context.Context, reconciler *service.Reconciler, dispatcher *service.Dispatcher, cfg *config.Config, log zerolog.Logger) error {
	cycleCtx, cancel := context.WithTimeout(ctx, cfg.Scan.CycleTimeout.Duration())
	defer cancel()

	report, err := reconciler.RunCycle(cycleCtx)
	if err != nil {
		return fmt.Errorf("scan cycle: %w", err)
	}
	dispatcher.Dispatch(cycleCtx, report.Events)

	log.Info().
		Int("observations", report.Observations).
		Int("new_devices", report.NewDevices).
		Int("events", len(report.Events)).
		Int("errors", len(report.Errors)).
		Msg("single cycle complete")

	if report.Degraded() {
		return fmt.Errorf("all %d subnet scans failed", len(cfg.Scan.Subnets))
	}
	return nil
}

func buildScanner(cfg *config.Config, log zerolog.Logger) adapter.Scanner {
	var arpOpts []adapter.ARPOption
	if cfg.Scan.ARPScanPath != "" {
		arpOpts = append(arpOpts, adapter.WithBinaryPath(cfg.Scan.ARPScanPath))
	}
	local := adapter.NewARPScanner(cfg.Scan.Interface, log, arpOpts...)
	remote := adapter.NewNmapScanner(log)
	return adapter.NewCompositeScanner(local, remote, log)
}
