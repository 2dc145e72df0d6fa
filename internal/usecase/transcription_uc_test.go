package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/infra/logging"
)

func TestModelCache_LoadsOncePerName(t *testing.T) {
	eng := &fakeEngine{}
	cache := NewModelCache(eng, fixedDevice(model.DeviceCPU), logging.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(ctx, "small"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if _, err := cache.Get(ctx, "tiny"); err != nil {
		t.Fatal(err)
	}

	if len(eng.loads) != 2 {
		t.Fatalf("loads = %v, want small and tiny once each", eng.loads)
	}
	if eng.loads[0] != "small@cpu" {
		t.Fatalf("first load = %q", eng.loads[0])
	}
	if cache.Len() != 2 {
		t.Fatalf("Len = %d", cache.Len())
	}
}

func TestTranscriptionInvoker_WrapsEngineErrors(t *testing.T) {
	eng := &fakeEngine{transErr: errors.New("CUDA out of memory")}
	inv := NewTranscriptionInvoker(eng, stubWriter{}, NewModelCache(eng, fixedDevice(model.DeviceCPU), logging.Nop()), "small", logging.Nop())

	_, err := inv.Transcribe(context.Background(), "a.wav", "small", nil)
	if !isKind(err, domain.KindTranscription) {
		t.Fatalf("kind = %s, want TranscriptionError (%v)", domain.KindOf(err), err)
	}
	if !errors.Is(err, eng.transErr) {
		t.Fatal("original engine error should stay in the chain")
	}
}

func TestTranscriptionInvoker_LoadFailureIsTranscriptionError(t *testing.T) {
	eng := &fakeEngine{loadErr: errors.New("no such model")}
	inv := NewTranscriptionInvoker(eng, stubWriter{}, NewModelCache(eng, fixedDevice(model.DeviceCPU), logging.Nop()), "small", logging.Nop())

	_, err := inv.Transcribe(context.Background(), "a.wav", "huge", nil)
	if !isKind(err, domain.KindTranscription) {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}

func TestTranscriptionInvoker_CancelledContextIsNotWrapped(t *testing.T) {
	eng := &fakeEngine{transErr: context.Canceled}
	inv := NewTranscriptionInvoker(eng, stubWriter{}, NewModelCache(eng, fixedDevice(model.DeviceCPU), logging.Nop()), "small", logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := inv.Transcribe(ctx, "a.wav", "small", nil)
	if !errors.Is(err, context.Canceled) || domain.KindOf(err) != domain.KindUnexpected {
		t.Fatalf("err = %v", err)
	}
}

func TestTranscriptionInvoker_RunBuildsAuditLog(t *testing.T) {
	eng := &fakeEngine{}
	inv := NewTranscriptionInvoker(eng, stubWriter{}, NewModelCache(eng, fixedDevice(model.DeviceCUDA), logging.Nop()), "small", logging.Nop())

	job := &model.Job{
		ID: "j1",
		Media: []model.MediaRef{
			{Name: "media/j1/a.wav"},
			{Name: "media/j1/b.mp3", Options: model.Options{"model": "tiny", "language": "de"}},
		},
		Options: model.Options{"language": "en", "writer": map[string]any{"max_line_width": 42}},
	}
	items := []MediaItem{
		{Ref: job.Media[0], LocalPath: "/w/a.wav", Info: &model.MediaInfo{Duration: 3.2, Format: "wav", Size: 10}},
		{Ref: job.Media[1], LocalPath: "/w/b.mp3"},
	}
	out := filepath.Join(t.TempDir(), "output")

	log, err := inv.Run(context.Background(), job, items, out)
	if err != nil {
		t.Fatal(err)
	}

	if log.Engine.Name != "fake" || len(log.Runs) != 2 {
		t.Fatalf("log = %+v", log)
	}
	first, second := log.Runs[0], log.Runs[1]
	if first.Media != "media/j1/a.wav" || first.MediaInfo == nil || first.MediaInfo.Format != "wav" {
		t.Fatalf("first run = %+v", first)
	}
	if first.Transcribe["model"] != "small" || first.Transcribe["language"] != "en" || first.Transcribe["word_timestamps"] != true {
		t.Fatalf("first transcribe = %v", first.Transcribe)
	}
	if second.Transcribe["model"] != "tiny" || second.Transcribe["language"] != "de" {
		t.Fatalf("second transcribe = %v", second.Transcribe)
	}
	if first.Write["max_line_width"] != 42 {
		t.Fatalf("first write = %v", first.Write)
	}
	if _, ok := eng.calls[0]["model"]; ok {
		t.Fatal("engine received the model meta-key")
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Fatalf("artifacts = %d, want 5 per media", len(entries))
	}
}

func TestTranscriptionInvoker_WriterFailure(t *testing.T) {
	eng := &fakeEngine{}
	inv := NewTranscriptionInvoker(eng, stubWriter{err: errors.New("disk full")}, NewModelCache(eng, fixedDevice(model.DeviceCPU), logging.Nop()), "small", logging.Nop())

	_, err := inv.Write(context.Background(), &model.Transcript{}, "a.wav", nil, t.TempDir())
	if !isKind(err, domain.KindTranscription) {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}
