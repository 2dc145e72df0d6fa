package usecase

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// doneWait bounds how long ReceiveDone waits on the completion queue.
const doneWait = 10 * time.Second

// JobSubmitter is the operator entry point: it enqueues new jobs and drains
// completion records.
type JobSubmitter struct {
	store adapter.ObjectStore
	todo  adapter.Queue
	done  adapter.Queue
	wait  time.Duration
	log   *zerolog.Logger
}

func NewJobSubmitter(store adapter.ObjectStore, todo, done adapter.Queue, logger *zerolog.Logger) *JobSubmitter {
	l := logger.With().Str("component", "JobSubmitter").Logger()
	return &JobSubmitter{store: store, todo: todo, done: done, wait: doneWait, log: &l}
}

// Create uploads mediaPath and enqueues a job for it. An empty jobID gets a
// fresh UUID; an empty modelName leaves model selection to the worker.
func (s *JobSubmitter) Create(ctx context.Context, mediaPath, jobID, modelName string) (string, error) {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if err := model.ValidateID(jobID); err != nil {
		return "", err
	}

	key := model.SubmittedMediaKey(jobID, filepath.Base(mediaPath))
	s.log.Info().Str("src", mediaPath).Str("dst", s.store.Location(key)).Msg("uploading media")
	if err := s.store.Put(ctx, key, mediaPath); err != nil {
		return "", domain.StorageError("create", err, "upload %s", s.store.Location(key))
	}

	job := model.Job{
		ID:    jobID,
		Media: []model.MediaRef{{Name: key}},
	}
	if modelName != "" {
		job.Options = model.Options{"model": modelName}
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	if err := s.todo.Send(ctx, body); err != nil {
		metrics.IncSend(s.todo.Name(), "error")
		return "", err
	}
	metrics.IncSend(s.todo.Name(), "submitted")
	s.log.Info().Str("job_id", jobID).Str("queue", s.todo.Name()).Msg("job enqueued")
	return jobID, nil
}

// ReceiveDone takes one record off the completion queue. It returns nil, nil
// when the queue is empty.
func (s *JobSubmitter) ReceiveDone(ctx context.Context) (*model.Job, error) {
	msgs, err := s.done.Receive(ctx, 1, s.wait)
	if err != nil {
		metrics.IncReceive(s.done.Name(), "error")
		return nil, err
	}
	switch len(msgs) {
	case 0:
		metrics.IncReceive(s.done.Name(), "empty")
		return nil, nil
	case 1:
		metrics.IncReceive(s.done.Name(), "one")
	default:
		metrics.IncReceive(s.done.Name(), "protocol_violation")
		return nil, domain.ProtocolError("receive_done", "expected at most 1 message, received %d", len(msgs))
	}

	msg := msgs[0]
	if err := s.done.Delete(ctx, msg); err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return nil, domain.InvalidJobError("receive_done", err, "completion record is not a job")
	}
	return &job, nil
}
