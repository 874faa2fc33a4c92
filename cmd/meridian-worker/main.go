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
	"github.com/ternarybob/meridian/internal/worker"
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
	configFiles  configPaths
	serviceName  = flag.String("service", "", "Service name this worker handles (required; polls <service>_requests)")
	stepTimeout  = flag.Duration("timeout", 0, "Per-subprocess timeout (overrides the 300s default)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

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

	if *serviceName == "" {
		fmt.Fprintln(os.Stderr, "meridian-worker: -service is required")
		flag.Usage()
		os.Exit(2)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("meridian.toml"); err == nil {
			configFiles = append(configFiles, "meridian.toml")
		} else if _, err := os.Stat("deployments/local/meridian.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/meridian.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.SetupLogger(config)
	defer common.Stop()

	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	common.PrintBanner(config, "worker:"+*serviceName, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobQueue, err := backend.OpenQueue(ctx, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open queue")
	}
	defer jobQueue.Close()

	runtime := worker.New(*serviceName, config.Storage.Root, jobQueue, logger)
	if *stepTimeout > 0 {
		runtime.Timeout = *stepTimeout
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("Interrupt signal received")
		cancel()
	}()

	logger.Info().
		Str("service", *serviceName).
		Str("storage_root", config.Storage.Root).
		Dur("timeout", runtime.Timeout).
		Msg("Worker ready - Press Ctrl+C to stop")

	if err := runtime.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("Worker loop stopped")
	}

	// Give an in-flight status publish a moment to flush before the
	// queue handle closes underneath it.
	time.Sleep(100 * time.Millisecond)

	common.PrintShutdownBanner("worker:"+*serviceName, logger)
}
