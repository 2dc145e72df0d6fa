package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ResultPublisher uploads a job's artifacts and its record to the object store.
type ResultPublisher struct {
	store      adapter.ObjectStore
	extensions map[string]struct{}
	log        *zerolog.Logger
}

// NewResultPublisher only uploads files whose extension is in extensions.
func NewResultPublisher(store adapter.ObjectStore, extensions []string, logger *zerolog.Logger) *ResultPublisher {
	l := logger.With().Str("component", "ResultPublisher").Logger()
	ext := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		ext[strings.ToLower(e)] = struct{}{}
	}
	return &ResultPublisher{store: store, extensions: ext, log: &l}
}

// Artifacts lists the publishable files in outputDir in lexicographic order.
func (p *ResultPublisher) Artifacts(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := p.extensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OutputDir is where the writers put artifacts inside a job working directory.
func OutputDir(workDir string) string { return filepath.Join(workDir, "output") }

// Publish uploads every artifact in the job's output directory to
// {id}/output/{file}, sets job.Output, stores the job record under
// {id}/job.json and removes workDir.
func (p *ResultPublisher) Publish(ctx context.Context, job *model.Job, workDir string) error {
	defer logging.TraceDuration(p.log, "ResultPublisher.Publish")()
	log := logging.With(ctx, p.log)

	outputDir := OutputDir(workDir)
	names, err := p.Artifacts(outputDir)
	if err != nil {
		return domain.StorageError("publish", err, "list output directory")
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		key := job.OutputKey(name)
		log.Info().Str("file", name).Str("dst", p.store.Location(key)).Msg("uploading artifact")
		if err := p.store.Put(ctx, key, filepath.Join(outputDir, name)); err != nil {
			return domain.StorageError("publish", err, "upload %s", p.store.Location(key))
		}
		metrics.IncArtifactUploaded(filepath.Ext(name))
		keys = append(keys, key)
	}
	if err := job.SetOutput(keys); err != nil {
		return domain.StorageError("publish", err, "record output keys")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return domain.StorageError("publish", err, "encode job record")
	}
	if err := p.store.PutBytes(ctx, job.RecordKey(), body, "application/json"); err != nil {
		return domain.StorageError("publish", err, "upload %s", p.store.Location(job.RecordKey()))
	}
	log.Info().Int("artifacts", len(keys)).Str("record", p.store.Location(job.RecordKey())).Msg("published results")
	return p.Cleanup(workDir)
}

// Cleanup removes a job working directory.
func (p *ResultPublisher) Cleanup(workDir string) error {
	if err := os.RemoveAll(workDir); err != nil {
		return domain.StorageError("cleanup", err, "remove %s", workDir)
	}
	return nil
}
