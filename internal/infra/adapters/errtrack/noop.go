package errtrack

import (
	"context"

	"speech-to-text/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.ErrorReporter = (*NoopReporter)(nil)

// NoopReporter is used when no tracker is configured. It only logs.
type NoopReporter struct {
	log *zerolog.Logger
}

func NewNoopReporter(logger *zerolog.Logger) *NoopReporter {
	l := logger.With().Str("component", "NoopReporter").Logger()
	return &NoopReporter{log: &l}
}

func (r *NoopReporter) Notify(ctx context.Context, class string, err error, fields map[string]any) error {
	r.log.Debug().Str("class", class).Err(err).Fields(fields).Msg("error tracker disabled; notice dropped")
	return nil
}

func (r *NoopReporter) Flush() {}
