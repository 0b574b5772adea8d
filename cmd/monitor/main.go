package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/monitor"
	"github.com/Vodeneev/ttmonitor/internal/parser/browser"
	"github.com/Vodeneev/ttmonitor/internal/parser/parsers"
	pkgconfig "github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/health"
	"github.com/Vodeneev/ttmonitor/internal/pkg/logging"
	"github.com/Vodeneev/ttmonitor/internal/pkg/performance"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"

	_ "github.com/Vodeneev/ttmonitor/internal/parser/parsers/all"
)

type config struct {
	configPath string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Monitor failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	slog.Info("Loading config", "path", cfg.configPath)
	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serviceName := appConfig.ServiceName
	_, logCloser, err := logging.SetupLogger(&appConfig.Logging, serviceName)
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer logCloser.Close()
	}
	slog.Info("Starting table tennis monitor", "sources", len(appConfig.Sources))

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	store, err := storage.Open(ctx, appConfig.Storage)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	slog.Info("Store ready", "driver", appConfig.Storage.Driver)

	status := health.NewStatus()
	var reporter health.Reporter = status
	if appConfig.Telegram.Enabled() {
		alerter, err := health.NewTelegramAlerter(status, appConfig.Telegram)
		if err != nil {
			slog.Warn("Telegram alerts disabled", "error", err)
		} else {
			defer alerter.Close()
			reporter = alerter
		}
	}

	if appConfig.Health.Enabled {
		health.Run(ctx, health.AddrFor(appConfig.Health.Port), serviceName, health.NewRouter(status, store))
	}

	orch := monitor.NewOrchestrator(appConfig.Maintenance, store, reporter)
	for _, src := range appConfig.Sources {
		ex, err := parsers.New(src.Parser, appConfig)
		if err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
		chrome := browser.NewChrome(appConfig.Browser)
		defer closeBrowser(src.Name, chrome)

		sched := monitor.NewScheduler(src, appConfig.Scheduler, chrome, ex, store, orch.Observations())
		orch.Add(sched)
		slog.Info("Configured source", "source", src.Name, "parser", ex.GetName(), "url", src.URL)
	}

	if err := orch.Run(ctx); err != nil {
		return err
	}
	cancel()
	performance.GetTracker().PrintSummary()
	slog.Info("Monitor stopped gracefully")
	return nil
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file. Empty = defaults and environment only")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration. 0 = run until SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

func closeBrowser(source string, b browser.Browser) {
	if err := b.Close(); err != nil {
		slog.Warn("Failed to close browser", "source", source, "error", err)
	}
}
