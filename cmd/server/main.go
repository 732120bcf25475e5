// Package main is the entry point for the Fin-Agent backend: a
// single-tenant, locally-hosted service for ingesting market data, freezing
// point-in-time world-state snapshots, sandboxing user-authored strategy
// code through backtests and parameter tuning sweeps, and serving live
// boundary-distance snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/archive"
	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/ingest"
	"github.com/aristath/sentinel/internal/jobs"
	"github.com/aristath/sentinel/internal/live"
	"github.com/aristath/sentinel/internal/preflight"
	"github.com/aristath/sentinel/internal/ratelimit"
	"github.com/aristath/sentinel/internal/sandbox"
	"github.com/aristath/sentinel/internal/screener"
	"github.com/aristath/sentinel/internal/server"
	"github.com/aristath/sentinel/internal/session"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/tuning"
	"github.com/aristath/sentinel/internal/worldstate"
	"github.com/aristath/sentinel/pkg/logger"
)

const jobWorkerCount = 4

func main() {
	// Sandbox worker re-exec: when this binary is invoked as
	// `<binary> __sandbox_worker__ <artifact_dir> <cpu_seconds> <memory_mb>`,
	// it is the child spawned by sandbox.Run to evaluate untrusted strategy
	// code. Handle that before any other startup work (no config/logging).
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerSubcommand {
		os.Exit(sandbox.RunWorker(os.Args[2:], os.Stdin))
	}

	cfg, err := config.Load()
	if err != nil {
		fallbackLog, logErr := logger.New(logger.Config{Level: "info", Pretty: true})
		if logErr != nil {
			panic(err)
		}
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Pretty:   cfg.DevMode,
		FilePath: cfg.LogsDir() + "/structured.log",
	})
	if err != nil {
		panic(err)
	}

	log.Info().Msg("starting fin-agent")

	if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create logs directory")
	}
	if err := os.MkdirAll(cfg.ArtifactsDir(), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create artifacts directory")
	}

	stateDB, err := database.New(database.Config{Path: cfg.StateDBPath(), Profile: database.ProfileStandard, Name: "state"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state database")
	}
	defer stateDB.Close()

	analyticsDB, err := database.New(database.Config{Path: cfg.AnalyticsDBPath(), Profile: database.ProfileStandard, Name: "analytics"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open analytics database")
	}
	defer analyticsDB.Close()

	stateStore, err := store.New(stateDB, log, cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize state store")
	}

	analyticsStore, err := analytics.New(analyticsDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analytics store")
	}

	eventManager := events.NewManager()

	ingestImporter := ingest.New(analyticsStore, stateStore, log)
	worldStateBuilder := worldstate.New(analyticsStore, stateStore, log)
	backtestEngine := backtest.New(analyticsStore, stateStore, worldStateBuilder, cfg.ArtifactsDir(), log)
	tuningEngine := tuning.New(backtestEngine, stateStore, log)
	liveEngine := live.New(analyticsStore, stateStore, cfg.ArtifactsDir(), log)
	screenerEngine := screener.New(analyticsStore.Conn())
	preflightEstimator := preflight.New(analyticsStore.Conn())
	sessionLedger := session.New(stateStore)
	rateGate := ratelimit.NewGate()
	archiver := archive.New(cfg.S3Bucket, cfg.S3Region, log)

	jobManager := jobs.New(stateStore, eventManager, log)
	registerRunners(jobManager, ingestImporter, backtestEngine, tuningEngine, liveEngine, archiver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobManager.Start(ctx, jobWorkerCount)
	log.Info().Int("workers", jobWorkerCount).Msg("job manager started")

	scheduler := jobs.NewScheduler(log)
	if archiver.Enabled() {
		archiveTick := jobs.SubmitTick{
			TickName: "artifact-archive-sweep",
			Submit: func() error {
				log.Debug().Msg("artifact archive sweep tick fired with nothing queued yet")
				return nil
			},
		}
		if err := scheduler.AddTick("0 */15 * * * *", archiveTick); err != nil {
			log.Warn().Err(err).Msg("failed to register artifact archive tick")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Log:     log,
		Cfg:     cfg,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,

		StateStore:     stateStore,
		AnalyticsStore: analyticsStore,

		Ingest:     ingestImporter,
		WorldState: worldStateBuilder,
		Backtest:   backtestEngine,
		Tuning:     tuningEngine,
		Live:       liveEngine,
		Jobs:       jobManager,
		RateLimit:  rateGate,
		Screener:   screenerEngine,
		Preflight:  preflightEstimator,
		Session:    sessionLedger,
		Events:     eventManager,

		StartupTime: time.Now(),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("fin-agent started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("fin-agent stopped")
}
