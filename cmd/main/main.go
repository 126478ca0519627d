package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rank-observer/src/config"
	"rank-observer/src/logger"
	"rank-observer/src/scheduler"
	"rank-observer/src/tracker"
	"rank-observer/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf, conf.Name)
	defer appLogger.Sync()

	// 1. Components
	networkManager := setupNetwork(conf.MConfig)
	registry := setupSources(conf.MConfig, appLogger, networkManager)
	display := setupDisplay(conf.MConfig)

	sinks, closeSinks, err := setupSinks(conf.MConfig, appLogger, display)
	if err != nil {
		appLogger.Critical("Failed to init sinks: %v", err)
	}
	defer closeSinks()

	rankTracker := tracker.NewTracker(conf.MConfig, registry, sinks, logger.NewLogger(conf, "Tracker"))

	// 2. Scheduler
	interval := time.Duration(conf.DataSource.UpdateIntervalSeconds) * time.Second
	tickScheduler := scheduler.NewTickScheduler(interval, func(ctx context.Context) {
		// Failures are logged by the tracker
		_, _ = rankTracker.RunTick(ctx)
	}, logger.NewLogger(conf, "Scheduler"))

	if conf.DataSource.MarketHoursOnly {
		market := utils.NewMarketScheduler(conf.DataSource.CalendarMIC, logger.NewLogger(conf, "MarketScheduler"))
		tickScheduler.Gate = market.MarketOpen
	}
	display.NextUpdate = tickScheduler.NextRun

	// 3. Servers
	grpcServer := startServers(display, conf, *configPath, registry, rankTracker, networkManager, tickScheduler, appLogger)

	// 4. Run until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tickScheduler.Start(ctx); err != nil {
		appLogger.Critical("Failed to start scheduler: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received %s, shutting down...", sig)

	// 5. Shutdown, the in-flight tick finishes first
	cancel()
	tickScheduler.Stop()
	grpcServer.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := display.Stop(shutdownCtx); err != nil {
		appLogger.Error("Display server shutdown failed: %v", err)
	}

	appLogger.Info("Shutdown complete.")
}
