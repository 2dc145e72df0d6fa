package main

import (
	"context"
	"fmt"

	"speech-to-text/internal/config"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/ai"
	"speech-to-text/internal/infra/adapters/command"
	"speech-to-text/internal/infra/adapters/probe"
	"speech-to-text/internal/infra/adapters/storage"
	"speech-to-text/internal/infra/adapters/whisper"
	"speech-to-text/internal/infra/adapters/writer"
	awsinfra "speech-to-text/internal/infra/aws"
	pg "speech-to-text/internal/infra/db/postgres"
	httpapi "speech-to-text/internal/infra/http"
	red "speech-to-text/internal/infra/redis"
	"speech-to-text/internal/usecase"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
)

// backends holds the queue and storage adapters selected by config.
type backends struct {
	todo    adapter.Queue
	done    adapter.Queue
	store   adapter.ObjectStore
	checks  map[string]httpapi.Check
	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackends(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*backends, error) {
	b := &backends{checks: map[string]httpapi.Check{}}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsinfra.LoadConfig(ctx, cfg.AWS, logger)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	switch cfg.Queue.Backend {
	case "sqs":
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		client := awsinfra.NewSQSClient(c)
		todo, err := awsinfra.NewSQSQueue(ctx, client, cfg.Queue.Todo, logger)
		if err != nil {
			return nil, err
		}
		done, err := awsinfra.NewSQSQueue(ctx, client, cfg.Queue.Done, logger)
		if err != nil {
			return nil, err
		}
		b.todo, b.done = todo, done
	case "redis":
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = cli.Close() })
		b.checks["redis"] = func(ctx context.Context) error { return cli.Ping(ctx).Err() }
		b.todo = red.NewJobQueue(cli, cfg.Queue.Todo, cfg.Queue.VisibilityTimeout, logger)
		b.done = red.NewJobQueue(cli, cfg.Queue.Done, cfg.Queue.VisibilityTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}

	switch cfg.Storage.Backend {
	case "s3":
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		b.store = awsinfra.NewS3Store(awsinfra.NewS3Client(c), cfg.Storage.Bucket)
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.checks["postgres"] = pool.Ping
		b.store = pg.NewObjectStore(pool)
	case "filesystem":
		fs, err := storage.NewFileStore(cfg.Storage.Root)
		if err != nil {
			return nil, err
		}
		b.store = fs
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return b, nil
}

// engine bundles the transcription side of the worker.
type engine struct {
	invoker *usecase.TranscriptionInvoker
	writers *writer.Set
	prober  adapter.MediaProber
}

func newEngine(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*engine, error) {
	runner := command.NewExecRunner(logger)

	var (
		te       adapter.TranscriptionEngine
		detector adapter.DeviceDetector
	)
	switch cfg.Engine.Kind {
	case "whispercpp":
		catalog := whisper.NewCatalog(cfg.Engine.ModelsDir, cfg.Engine.DownloadModels)
		te = whisper.NewCPPEngine(whisper.CPPConfig{
			Binary:  cfg.Engine.Binary,
			FFmpeg:  cfg.Engine.FFmpeg,
			Version: cfg.Engine.Version,
			Threads: cfg.Engine.Threads,
		}, catalog, runner, logger)
		detector = whisper.NewDeviceDetector(cfg.Engine.Device, runner)
	case "openai":
		oe, err := whisper.NewOpenAIEngine(whisper.OpenAIConfig{
			APIKey:  cfg.Engine.OpenAI.APIKey,
			BaseURL: cfg.Engine.OpenAI.BaseURL,
			Model:   cfg.Engine.OpenAI.Model,
			Timeout: cfg.Engine.OpenAI.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		te = oe
		detector = whisper.StaticDevice(model.DeviceRemote)
	case "gemini":
		ge, err := ai.NewGeminiEngine(ctx, ai.GeminiConfig{
			APIKey:  cfg.Engine.Gemini.APIKey,
			BaseURL: cfg.Engine.Gemini.BaseURL,
			Model:   cfg.Engine.Gemini.Model,
			FFmpeg:  cfg.Engine.FFmpeg,
		}, runner, logger)
		if err != nil {
			return nil, err
		}
		te = ge
		detector = whisper.StaticDevice(model.DeviceRemote)
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}

	writers := writer.NewSet()
	cache := usecase.NewModelCache(te, detector, logger)
	return &engine{
		invoker: usecase.NewTranscriptionInvoker(te, writers, cache, cfg.Engine.DefaultModel, logger),
		writers: writers,
		prober:  probe.NewFFProbe(cfg.Probe.Binary, runner),
	}, nil
}
