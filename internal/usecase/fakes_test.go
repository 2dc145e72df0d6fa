package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
)

// ---- Fakes ----

type fakeEngine struct {
	mu         sync.Mutex
	loads      []string
	calls      []map[string]any
	loadErr    error
	transErr   error
	transcript *model.Transcript
}

var _ adapter.TranscriptionEngine = (*fakeEngine)(nil)

func (f *fakeEngine) Info() model.EngineInfo { return model.EngineInfo{Name: "fake", Version: "1"} }

func (f *fakeEngine) LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.loads = append(f.loads, name+"@"+string(device))
	return &model.ModelHandle{Name: name, Device: device}, nil
}

func (f *fakeEngine) Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.transErr != nil {
		return nil, f.transErr
	}
	if f.transcript != nil {
		return f.transcript, nil
	}
	return &model.Transcript{
		Text:     "hello world",
		Language: "en",
		Segments: []model.Segment{{ID: 0, Start: 0, End: 1.5, Text: "hello world"}},
	}, nil
}

type fixedDevice model.Device

func (d fixedDevice) Detect(context.Context) model.Device { return model.Device(d) }

// stubWriter writes one empty file per extension.
type stubWriter struct {
	err error
}

var _ adapter.TranscriptWriter = stubWriter{}

func (w stubWriter) Extensions() []string { return []string{".vtt", ".srt", ".txt", ".tsv", ".json"} }

func (w stubWriter) Write(t *model.Transcript, mediaName string, opts map[string]any, outputDir string) ([]string, error) {
	if w.err != nil {
		return nil, w.err
	}
	stem := strings.TrimSuffix(filepath.Base(mediaName), filepath.Ext(mediaName))
	var out []string
	for _, ext := range w.Extensions() {
		p := filepath.Join(outputDir, stem+ext)
		if err := os.WriteFile(p, []byte(t.Text), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeProber struct {
	info model.MediaInfo
	err  error
}

func (p fakeProber) Probe(ctx context.Context, path string) (model.MediaInfo, error) {
	return p.info, p.err
}

// failingStore wraps an ObjectStore and fails Put for keys with the given suffix.
type failingStore struct {
	adapter.ObjectStore
	failSuffix string
}

var errUpload = errors.New("upload refused")

func (s failingStore) Put(ctx context.Context, key, src string) error {
	if strings.HasSuffix(key, s.failSuffix) {
		return errUpload
	}
	return s.ObjectStore.Put(ctx, key, src)
}

func isKind(err error, k domain.ErrorKind) bool { return domain.IsKind(err, k) }
