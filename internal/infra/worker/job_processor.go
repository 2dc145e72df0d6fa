package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/infra/metrics"
	"speech-to-text/internal/usecase"

	"github.com/rs/zerolog"
)

// State is a step of the job lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateReceived     State = "received"
	StateDownloading  State = "downloading"
	StateTranscribing State = "transcribing"
	StatePublishing   State = "publishing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

type Options struct {
	WaitTime          time.Duration
	WorkDir           string
	KeepFailedWorkDir bool
	DeleteSourceMedia bool
	// ErrorPause is slept after a failed iteration in daemon mode so a
	// broken queue connection does not spin the loop.
	ErrorPause time.Duration
}

// JobProcessor drives one job at a time from the work queue to the
// completion queue. It is the only component that touches both queues.
type JobProcessor struct {
	todo      adapter.Queue
	done      adapter.Queue
	store     adapter.ObjectStore
	decoder   *usecase.JobDecoder
	media     *usecase.MediaGateway
	invoker   *usecase.TranscriptionInvoker
	publisher *usecase.ResultPublisher
	reporter  adapter.ErrorReporter
	opts      Options
	now       func() time.Time
	log       *zerolog.Logger
}

func NewJobProcessor(
	todo, done adapter.Queue,
	store adapter.ObjectStore,
	decoder *usecase.JobDecoder,
	media *usecase.MediaGateway,
	invoker *usecase.TranscriptionInvoker,
	publisher *usecase.ResultPublisher,
	reporter adapter.ErrorReporter,
	opts Options,
	log *zerolog.Logger,
) *JobProcessor {
	l := log.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		todo:      todo,
		done:      done,
		store:     store,
		decoder:   decoder,
		media:     media,
		invoker:   invoker,
		publisher: publisher,
		reporter:  reporter,
		opts:      opts,
		now:       time.Now,
		log:       &l,
	}
}

// Run processes jobs. In daemon mode it loops until ctx is cancelled and
// contains every iteration's error; otherwise it runs one iteration and
// returns its error.
func (p *JobProcessor) Run(ctx context.Context, daemon bool) error {
	if !daemon {
		return p.RunOnce(ctx)
	}
	p.log.Info().Str("queue", p.todo.Name()).Msg("job processor started")
	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("job processor stopping")
			return nil
		}
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil && p.opts.ErrorPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.ErrorPause):
			}
		}
	}
}

// RunOnce receives at most one job and drives it to a terminal state.
func (p *JobProcessor) RunOnce(ctx context.Context) error {
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	p.setState(ctx, StateIdle)

	msgs, err := p.todo.Receive(ctx, 1, p.opts.WaitTime)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.IncReceive(p.todo.Name(), "error")
		return p.fail(ctx, nil, fmt.Errorf("receive from %s: %w", p.todo.Name(), err))
	}
	switch len(msgs) {
	case 0:
		metrics.IncReceive(p.todo.Name(), "empty")
		logging.With(ctx, p.log).Debug().Msg("no job received")
		return nil
	case 1:
		metrics.IncReceive(p.todo.Name(), "one")
	default:
		// Leave them undeleted: they become visible again after their timeout.
		metrics.IncReceive(p.todo.Name(), "protocol_violation")
		return p.fail(ctx, nil, domain.ProtocolError("receive", "asked %s for 1 message, received %d", p.todo.Name(), len(msgs)))
	}

	msg := msgs[0]
	p.setState(ctx, StateReceived)
	// Delete before any work: a job may be lost on crash but never runs twice.
	if err := p.todo.Delete(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fail(ctx, nil, fmt.Errorf("delete message %s: %w", msg.ID, err))
	}

	job, err := p.decoder.Decode(msg.Body)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	ctx = logging.WithJobID(ctx, job.ID)
	logging.With(ctx, p.log).Info().Int("media", len(job.Media)).Msg("job received")

	start := time.Now()
	if err := p.process(ctx, job); err != nil {
		if ctx.Err() != nil {
			logging.With(ctx, p.log).Warn().Err(err).Msg("job interrupted")
			return ctx.Err()
		}
		return p.fail(ctx, job, err)
	}

	if err := p.complete(ctx, job); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fail(ctx, job, err)
	}
	metrics.IncJob(string(StateCompleted), "")
	p.setState(ctx, StateCompleted)
	logging.With(ctx, p.log).Info().Strs("output", job.Output).Dur("duration", time.Since(start)).Msg("job completed")

	if p.opts.DeleteSourceMedia {
		p.deleteSourceMedia(ctx, job)
	}
	return nil
}

// process runs download, probe, transcription and publishing for job.
// Panics are converted into errors carrying the panic stack.
func (p *JobProcessor) process(ctx context.Context, job *model.Job) (err error) {
	workDir := filepath.Join(p.opts.WorkDir, job.ID)
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
		if err != nil && !p.opts.KeepFailedWorkDir {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				logging.With(ctx, p.log).Warn().Err(rmErr).Str("dir", workDir).Msg("could not remove working directory")
			}
		}
	}()

	p.setState(ctx, StateDownloading)
	stage := time.Now()
	items := make([]usecase.MediaItem, 0, len(job.Media))
	for _, ref := range job.Media {
		local, err := p.media.Fetch(ctx, workDir, ref)
		if err != nil {
			return err
		}
		info, err := p.media.Probe(ctx, local)
		if err != nil {
			return err
		}
		items = append(items, usecase.MediaItem{Ref: ref, LocalPath: local, Info: &info})
	}
	metrics.ObserveStage("download", time.Since(stage))

	p.setState(ctx, StateTranscribing)
	stage = time.Now()
	runLog, err := p.invoker.Run(ctx, job, items, usecase.OutputDir(workDir))
	if err != nil {
		return err
	}
	metrics.ObserveStage("transcribe", time.Since(stage))
	if err := job.SetLog(runLog); err != nil {
		return err
	}
	if err := job.MarkFinished(p.now()); err != nil {
		return err
	}

	p.setState(ctx, StatePublishing)
	stage = time.Now()
	if err := p.publisher.Publish(ctx, job, workDir); err != nil {
		return err
	}
	metrics.ObserveStage("publish", time.Since(stage))
	return nil
}

// complete sends the finished job to the completion queue.
func (p *JobProcessor) complete(ctx context.Context, job *model.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := p.done.Send(ctx, body); err != nil {
		metrics.IncSend(p.done.Name(), "error")
		return fmt.Errorf("send completion to %s: %w", p.done.Name(), err)
	}
	metrics.IncSend(p.done.Name(), "completed")
	return nil
}

// deleteSourceMedia runs after completion was sent; failures are only logged.
func (p *JobProcessor) deleteSourceMedia(ctx context.Context, job *model.Job) {
	for _, ref := range job.Media {
		if err := p.store.Delete(ctx, ref.Name); err != nil {
			logging.With(ctx, p.log).Warn().Err(err).Str("key", p.store.Location(ref.Name)).Msg("could not delete source media")
			continue
		}
		logging.With(ctx, p.log).Debug().Str("key", p.store.Location(ref.Name)).Msg("deleted source media")
	}
}

// fail is the single reporting path for a failed iteration: failure record
// to the completion queue (when there is a job), then the error tracker,
// then the log. It returns cause.
func (p *JobProcessor) fail(ctx context.Context, job *model.Job, cause error) error {
	kind := domain.KindOf(cause)
	jobErr := &model.JobError{
		Kind:    string(kind),
		Message: cause.Error(),
		Detail:  errorDetail(cause),
	}
	metrics.IncJob(string(StateFailed), string(kind))
	p.setState(ctx, StateFailed)

	fields := map[string]any{"kind": string(kind)}
	if tid := logging.TraceIDFrom(ctx); tid != "" {
		fields["trace_id"] = tid
	}

	var sendErr error
	if job != nil {
		fields["job_id"] = job.ID
		body, err := json.Marshal(job.FailureRecord(jobErr))
		if err == nil {
			err = p.done.Send(ctx, body)
		}
		if err != nil {
			metrics.IncSend(p.done.Name(), "error")
			sendErr = err
			fields["send_error"] = err.Error()
		} else {
			metrics.IncSend(p.done.Name(), "failed")
		}
	}

	p.notify(ctx, string(kind), cause, fields)

	ev := logging.With(ctx, p.log).Error().Err(cause).Str("kind", string(kind))
	if sendErr != nil {
		ev = ev.AnErr("send_error", sendErr)
	}
	ev.Str("detail", jobErr.Detail).Msg("job failed")
	return cause
}

// notify never lets the tracker break the failure path.
func (p *JobProcessor) notify(ctx context.Context, class string, cause error, fields map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncErrorReport(class, "error")
			logging.With(ctx, p.log).Error().Interface("panic", r).Msg("error reporter panicked")
		}
	}()
	if err := p.reporter.Notify(ctx, class, cause, fields); err != nil {
		metrics.IncErrorReport(class, "error")
		logging.With(ctx, p.log).Error().Err(err).Msg("error reporter failed")
		return
	}
	metrics.IncErrorReport(class, "sent")
}

func (p *JobProcessor) setState(ctx context.Context, s State) {
	metrics.SetState(string(s))
	logging.With(ctx, p.log).Debug().Str("state", string(s)).Msg("state")
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// errorDetail renders the stack trace carried by err, if any.
func errorDetail(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return string(pe.stack)
	}
	return fmt.Sprintf("%+v", err)
}
