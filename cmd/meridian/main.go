package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/backend"
	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/orchestrator"
	"github.com/ternarybob/meridian/internal/server"
	"github.com/ternarybob/meridian/internal/storage"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Meridian version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Merge port flags (shorthand takes precedence)
	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("meridian.toml"); err == nil {
			configFiles = append(configFiles, "meridian.toml")
		} else if _, err := os.Stat("deployments/local/meridian.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/meridian.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger = common.SetupLogger(config)
	defer common.Stop()

	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	common.PrintBanner(config, "orchestrator", logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobStore, err := backend.OpenStore(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open job store")
	}
	defer jobStore.Close()

	jobQueue, err := backend.OpenQueue(ctx, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open queue")
	}
	defer jobQueue.Close()

	layout := storage.New(logger, config.Storage.Root)
	orch := orchestrator.New(jobStore, jobQueue, layout, logger)

	// Single consumer of the status channel: dispatch decisions stay
	// linearizable with respect to observed worker events.
	common.SafeGoWithContext(ctx, logger, "status-consumer", func() {
		if err := orch.ConsumeStatus(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("status consumer stopped")
		}
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := server.New(orch, logger, addr)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	common.PrintShutdownBanner("orchestrator", logger)
}
