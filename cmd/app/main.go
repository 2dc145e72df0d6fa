// File: cmd/app/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speech-to-text/internal/config"
	"speech-to-text/internal/infra/adapters/errtrack"
	httpapi "speech-to-text/internal/infra/http"
	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/infra/metrics"
	"speech-to-text/internal/infra/worker"
	"speech-to-text/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	daemon := flag.Bool("daemon", false, "run forever looking for jobs (default from worker.daemon)")
	noDaemon := flag.Bool("no-daemon", false, "run one job and exit")
	create := flag.String("create", "", "create a job for the given media file")
	jobID := flag.String("job-id", "", "job id to use with -create (default: random UUID)")
	modelName := flag.String("model", "", "whisper model to request with -create")
	receiveDone := flag.Bool("receive-done", false, "receive one completed job and print it")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
		cancel()
	}()

	reporter := errtrack.NewReporter(cfg.Honeybadger, logger)
	defer reporter.Flush()

	// ---- Storage and queues ----
	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backends")
	}
	defer b.Close()

	// ---- Operator modes ----
	if *create != "" || *receiveDone {
		submitter := usecase.NewJobSubmitter(b.store, b.todo, b.done, logger)
		if *create != "" {
			id, err := submitter.Create(ctx, *create, *jobID, *modelName)
			if err != nil {
				logger.Fatal().Err(err).Msg("create job")
			}
			fmt.Println(id)
		}
		if *receiveDone {
			job, err := submitter.ReceiveDone(ctx)
			if err != nil {
				logger.Fatal().Err(err).Msg("receive done job")
			}
			if job == nil {
				logger.Info().Str("queue", b.done.Name()).Msg("no done jobs")
				return
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(job)
		}
		return
	}

	// ---- Worker ----
	eng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, eng.invoker.EngineInfo().Name)

	decoder, err := usecase.NewJobDecoder()
	if err != nil {
		logger.Fatal().Err(err).Msg("job schema")
	}
	media := usecase.NewMediaGateway(b.store, eng.prober, logger)
	publisher := usecase.NewResultPublisher(b.store, eng.writers.Extensions(), logger)
	processor := worker.NewJobProcessor(
		b.todo, b.done, b.store,
		decoder, media, eng.invoker, publisher, reporter,
		worker.Options{
			WaitTime:          cfg.Worker.WaitTime,
			WorkDir:           cfg.Worker.WorkDir,
			KeepFailedWorkDir: cfg.Worker.KeepFailedWorkDir,
			DeleteSourceMedia: *cfg.Worker.DeleteSourceMedia,
			ErrorPause:        5 * time.Second,
		},
		logger,
	)

	// ---- Admin server (metrics, health) ----
	if cfg.Admin.Port > 0 {
		srv := httpapi.NewServer(cfg.Admin.Port, b.checks, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("admin server error")
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	runDaemon := *cfg.Worker.Daemon || *daemon
	if *noDaemon {
		runDaemon = false
	}
	logger.Info().
		Str("version", version).
		Str("engine", eng.invoker.EngineInfo().Name).
		Str("todo", b.todo.Name()).
		Str("done", b.done.Name()).
		Bool("daemon", runDaemon).
		Msg("speech-to-text worker starting")

	if err := processor.Run(ctx, runDaemon); err != nil && ctx.Err() == nil {
		reporter.Flush()
		logger.Error().Err(err).Msg("job processing failed")
		os.Exit(1)
	}
}
