package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tabd/internal/config"
	"tabd/internal/constants"
	"tabd/internal/dispatch"
	"tabd/internal/executor"
	"tabd/internal/logger"
	"tabd/internal/metrics"
	"tabd/internal/scheduler"
	"tabd/internal/version"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch daemon (main command)",
	Long: `Start tabd with the specified configuration.
This will load the job table, initialize the executor and the dispatch pool,
and run the minute tick until interrupted. SIGHUP reloads the job table.`,
	Run: serveHandler,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to config file")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "override logging level")
}

func serveHandler(cmd *cobra.Command, args []string) {
	// Load .env file if exists
	if err := config.LoadEnvOptional(constants.DefaultEnvFile); err != nil {
		fmt.Printf("❌ Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	// Determine config path
	configPath := serveConfigPath
	if configPath == "" {
		configPath = constants.DefaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level if flag is set
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	// Validate configuration
	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("❌ Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	// Log startup information
	log.Info("🚀 Starting "+version.Short(),
		logger.Field{Key: "build_time", Value: BuildTime},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "table", Value: cfg.Crontab.Path},
		logger.Field{Key: "executor", Value: cfg.Executor.Type},
		logger.Field{Key: "timezone", Value: cfg.Location().String()},
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Initialize metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("tabd", nil)
		go metrics.Serve(cfg.Metrics.Listen, log)
	}

	// Initialize executor
	var exec executor.Executor
	switch cfg.Executor.Type {
	case "docker":
		exec, err = executor.NewDocker(ctx, executor.DockerConfig{
			Image:       cfg.Executor.Docker.Image,
			MemoryLimit: cfg.Executor.Docker.MemoryLimit,
			CPULimit:    cfg.Executor.Docker.CPULimit,
			PidsLimit:   cfg.Executor.Docker.PidsLimit,
			SecurityOpt: cfg.Executor.Docker.SecurityOpt,
		}, log)
		if err != nil {
			log.Error("Failed to connect to Docker daemon", err)
			os.Exit(1)
		}
		log.Info("✅ Docker executor initialized",
			logger.Field{Key: "image", Value: cfg.Executor.Docker.Image})
	default:
		exec = executor.NewLocal(log)
		log.Info("✅ Local executor initialized")
	}
	defer exec.Close()

	// Initialize dispatch pool
	pool := dispatch.NewPool(cfg.Dispatch.PoolSize, cfg.Dispatch.QueueSize, exec, m, log)
	pool.Start()

	// Load the job table and start the scheduler
	sched := scheduler.New(cfg, pool, m, log)
	if err := sched.Load(); err != nil {
		log.Error("Failed to load job table", err)
		os.Exit(1)
	}

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx)
	}()

	// Wait for shutdown signal; SIGHUP triggers a table reload
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				log.Info("🔄 SIGHUP received, reloading job table")
				sched.Reload()
				continue
			}
			log.Info("🛑 Shutdown signal received",
				logger.Field{Key: "signal", Value: sig.String()})
			cancel()
			<-schedDone
			pool.Stop()
			log.Info("👋 tabd stopped")
			return

		case err := <-schedDone:
			if err != nil {
				log.Error("Scheduler terminated", err)
			}
			pool.Stop()
			os.Exit(1)
		}
	}
}
