package errtrack

import (
	"context"
	"errors"

	"speech-to-text/internal/config"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/logging"

	"github.com/honeybadger-io/honeybadger-go"
	"github.com/rs/zerolog"
)

var _ adapter.ErrorReporter = (*HoneybadgerReporter)(nil)

type HoneybadgerReporter struct {
	client *honeybadger.Client
	log    *zerolog.Logger
}

// NewHoneybadgerReporter builds a reporter for apiKey. A nil backend uses
// the hosted Honeybadger API.
func NewHoneybadgerReporter(apiKey, env string, backend honeybadger.Backend, logger *zerolog.Logger) (*HoneybadgerReporter, error) {
	if apiKey == "" {
		return nil, errors.New("honeybadger api key empty")
	}
	cfg := honeybadger.Configuration{APIKey: apiKey, Env: env}
	if backend != nil {
		cfg.Backend = backend
		cfg.Sync = true
	}
	l := logger.With().Str("component", "HoneybadgerReporter").Logger()
	return &HoneybadgerReporter{client: honeybadger.New(cfg), log: &l}, nil
}

// Notify sends err under class with fields as context. The iteration trace id
// is added so tracker entries can be matched with log lines.
func (r *HoneybadgerReporter) Notify(ctx context.Context, class string, err error, fields map[string]any) error {
	hctx := honeybadger.Context{}
	for k, v := range fields {
		hctx[k] = v
	}
	if id := logging.TraceIDFrom(ctx); id != "" {
		hctx["trace_id"] = id
	}
	id, nerr := r.client.Notify(err, hctx, honeybadger.ErrorClass{Name: class})
	if nerr != nil {
		return nerr
	}
	r.log.Debug().Str("notice_id", id).Str("class", class).Msg("error reported")
	return nil
}

// Flush waits for queued notices to be delivered.
func (r *HoneybadgerReporter) Flush() { r.client.Flush() }

// NewReporter returns a Honeybadger reporter when an API key is configured
// and a NoopReporter otherwise.
func NewReporter(cfg config.HoneybadgerConfig, logger *zerolog.Logger) adapter.ErrorReporter {
	if cfg.APIKey == "" {
		logger.Warn().Msg("honeybadger api key not set; error reports are only logged")
		return NewNoopReporter(logger)
	}
	r, err := NewHoneybadgerReporter(cfg.APIKey, cfg.Env, nil, logger)
	if err != nil {
		return NewNoopReporter(logger)
	}
	return r
}
