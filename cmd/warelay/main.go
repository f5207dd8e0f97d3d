package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warelay/internal/config"
	"warelay/internal/constants"
	"warelay/internal/database"
	"warelay/internal/service"
	"warelay/internal/tracing"
	"warelay/pkg/wassup"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("warelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting warelay")

	wassup.Version = Version

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    "warelay",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// open the database with exponential backoff, the file may live on
	// storage that attaches after the process starts
	db, err := backoff.Retry(ctx, func() (*database.Database, error) {
		db, err := database.New(cfg.Database.Path)
		if err != nil {
			logger.Warnf("Failed to open database: %v", err)
		}
		return db, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(constants.DefaultDatabaseRetryAttempts),
	)
	if err != nil {
		return fmt.Errorf("failed to open database after retries: %w", err)
	}
	defer db.Close()

	factory := service.NewClientFactory(cfg.Gateway, cfg.Server.Hostname)

	refresher := service.NewRefresher(
		db, factory.ForSetup(),
		cfg.Gateway.ClientID, cfg.Gateway.ClientSecret,
		time.Duration(cfg.Refresh.LookaheadSec)*time.Second,
		logger,
	)
	refreshJob := service.NewScheduler(
		"token-refresh",
		time.Duration(cfg.Refresh.PollIntervalSec)*time.Second,
		refresher.RefreshDue,
		logger,
	)
	go refreshJob.Start(ctx)
	defer refreshJob.Stop()

	prober := service.NewProber(db, db, factory, cfg.Prober.SampleSize, cfg.Prober.StalenessDays, logger)
	proberJob := service.NewScheduler(
		"whatsappable",
		time.Duration(cfg.Prober.IntervalSec)*time.Second,
		prober.Run,
		logger,
	)
	go proberJob.Start(ctx)
	defer proberJob.Stop()

	server := NewServer(cfg, db, factory, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
