package usecase

import (
	"context"
	"os"
	"sync"
	"time"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ModelCache loads each model at most once per process and device.
type ModelCache struct {
	engine   adapter.TranscriptionEngine
	detector adapter.DeviceDetector
	log      *zerolog.Logger

	mu     sync.Mutex
	device model.Device
	models map[string]*model.ModelHandle
}

func NewModelCache(engine adapter.TranscriptionEngine, detector adapter.DeviceDetector, logger *zerolog.Logger) *ModelCache {
	l := logger.With().Str("component", "ModelCache").Logger()
	return &ModelCache{
		engine:   engine,
		detector: detector,
		log:      &l,
		models:   make(map[string]*model.ModelHandle),
	}
}

// Get returns the cached model for name, loading it on first use.
func (c *ModelCache) Get(ctx context.Context, name string) (*model.ModelHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == "" {
		c.device = c.detector.Detect(ctx)
	}
	key := name + "@" + string(c.device)
	if m, ok := c.models[key]; ok {
		return m, nil
	}

	c.log.Info().Str("model", name).Str("device", string(c.device)).Msg("loading model")
	m, err := c.engine.LoadModel(ctx, name, c.device)
	if err != nil {
		return nil, err
	}
	metrics.IncModelLoad(name, string(c.device))
	c.models[key] = m
	return m, nil
}

// Len reports how many models are loaded.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.models)
}

// TranscriptionInvoker runs the engine and the writers for each media item
// and keeps the audit trail of effective options.
type TranscriptionInvoker struct {
	engine       adapter.TranscriptionEngine
	writer       adapter.TranscriptWriter
	cache        *ModelCache
	defaultModel string
	log          *zerolog.Logger
}

func NewTranscriptionInvoker(
	engine adapter.TranscriptionEngine,
	writer adapter.TranscriptWriter,
	cache *ModelCache,
	defaultModel string,
	logger *zerolog.Logger,
) *TranscriptionInvoker {
	l := logger.With().Str("component", "TranscriptionInvoker").Logger()
	return &TranscriptionInvoker{
		engine:       engine,
		writer:       writer,
		cache:        cache,
		defaultModel: defaultModel,
		log:          &l,
	}
}

// DefaultModel is the model used when no option selects one.
func (t *TranscriptionInvoker) DefaultModel() string { return t.defaultModel }

// EngineInfo identifies the engine for the job log.
func (t *TranscriptionInvoker) EngineInfo() model.EngineInfo { return t.engine.Info() }

// Transcribe runs the model on one media file. Engine failures are
// wrapped as TranscriptionError.
func (t *TranscriptionInvoker) Transcribe(ctx context.Context, mediaPath, modelName string, opts map[string]any) (*model.Transcript, error) {
	m, err := t.cache.Get(ctx, modelName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.TranscriptionError("load_model", err, "load model %q", modelName)
	}

	logging.With(ctx, t.log).Info().Str("media", mediaPath).Str("model", modelName).Interface("options", opts).Msg("running transcription")
	start := time.Now()
	res, err := t.engine.Transcribe(ctx, m, mediaPath, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.TranscriptionError("transcribe", err, "transcribe %s", mediaPath)
	}
	logging.With(ctx, t.log).Info().Str("media", mediaPath).Int("segments", len(res.Segments)).Dur("elapsed", time.Since(start)).Msg("transcription finished")
	return res, nil
}

// Write emits every artifact format for one media item into outputDir.
func (t *TranscriptionInvoker) Write(ctx context.Context, res *model.Transcript, mediaName string, writerOpts map[string]any, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, domain.StorageError("write", err, "create output directory")
	}
	logging.With(ctx, t.log).Info().Str("media", mediaName).Interface("writer_options", writerOpts).Msg("writing output")
	files, err := t.writer.Write(res, mediaName, writerOpts, outputDir)
	if err != nil {
		return nil, domain.TranscriptionError("write", err, "write artifacts for %s", mediaName)
	}
	return files, nil
}

// MediaItem is one fetched and probed media file ready for transcription.
type MediaItem struct {
	Ref       model.MediaRef
	LocalPath string
	Info      *model.MediaInfo
}

// Run transcribes every item in order, writes artifacts into outputDir and
// returns the audit log. Items must be in job.Media order.
func (t *TranscriptionInvoker) Run(ctx context.Context, job *model.Job, items []MediaItem, outputDir string) (*model.RunLog, error) {
	log := &model.RunLog{Engine: t.engine.Info(), Runs: make([]model.Run, 0, len(items))}
	for _, it := range items {
		eff := ResolveOptions(job.Options, it.Ref.Options, t.defaultModel)

		res, err := t.Transcribe(ctx, it.LocalPath, eff.Model, eff.Transcribe)
		if err != nil {
			return nil, err
		}
		if _, err := t.Write(ctx, res, it.Ref.Name, eff.Writer, outputDir); err != nil {
			return nil, err
		}
		if it.Info != nil {
			metrics.AddMediaSeconds(eff.Model, it.Info.Duration)
		}

		log.Runs = append(log.Runs, model.Run{
			Media:      it.Ref.Name,
			MediaInfo:  it.Info,
			Transcribe: eff.AuditTranscribe(),
			Write:      eff.AuditWrite(),
		})
	}
	return log, nil
}
