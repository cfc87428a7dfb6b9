package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cuemby/debughostd/pkg/config"
	"github.com/cuemby/debughostd/pkg/engine"
	"github.com/cuemby/debughostd/pkg/events"
	"github.com/cuemby/debughostd/pkg/health"
	"github.com/cuemby/debughostd/pkg/lifecycle"
	"github.com/cuemby/debughostd/pkg/log"
	"github.com/cuemby/debughostd/pkg/logs"
	"github.com/cuemby/debughostd/pkg/metrics"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/registry"
	"github.com/cuemby/debughostd/pkg/scanner"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "debughostd",
	Short: "debughostd - developer-workstation container supervisor",
	Long: `debughostd is a long-running local service that, on behalf of a
controlling agent (an AI coding assistant and its browser dashboard),
launches, monitors, restarts, and tears down developer processes running
inside containers, one per registered project.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"debughostd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	config.BindFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the container supervisor daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	portReg, err := ports.New(log.WithComponent("ports"), filepath.Join(cfg.DataDir, "ports.json"), cfg.PortRanges)
	if err != nil {
		return fmt.Errorf("failed to initialize port registry: %w", err)
	}

	rangeMap := cfg.PortRangeMap()
	reg, err := registry.New(log.WithComponent("registry"), filepath.Join(cfg.DataDir, "projects.json"), scanner.New(), portReg, rangeMap)
	if err != nil {
		return fmt.Errorf("failed to initialize project registry: %w", err)
	}

	eng, err := engine.New(log.WithComponent("engine"), cfg.EngineSocket)
	if err != nil {
		return fmt.Errorf("failed to initialize container engine: %w", err)
	}
	defer eng.Close()

	logBroker := events.NewLogBroker()
	healthBroker := events.NewHealthBroker()

	logCollector := logs.New(log.WithComponent("logs"), eng, logBroker)
	healthMonitor := health.NewMonitor(log.WithComponent("health"), nil)

	techs := make([]string, 0, len(rangeMap))
	for tech := range rangeMap {
		techs = append(techs, tech)
	}

	mgr := lifecycle.New(log.WithComponent("lifecycle"), reg, portReg, eng, logCollector, healthMonitor, healthBroker, lifecycle.DefaultTemplates(), cfg.Health)
	healthMonitor.SetObserver(mgr)

	collector := metrics.NewCollector(reg, portReg, techs)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("engine", true, "connected")
	metrics.RegisterComponent("registry", true, "loaded")
	metrics.RegisterComponent("ports", true, "loaded")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics and health endpoints listening")

	logger.Info().Str("data_dir", cfg.DataDir).Msg("debughostd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("metrics server failed")
	}

	lifecycleCtx, lifecycleCancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer lifecycleCancel()
	if err := mgr.Shutdown(lifecycleCtx); err != nil {
		logger.Warn().Err(err).Msg("lifecycle manager did not shut down cleanly")
	}
	logCollector.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server did not shut down cleanly")
	}

	logger.Info().Msg("debughostd stopped")
	return nil
}
