package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/memory"
	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/usecase"
)

// ---- Fakes ----

type fakeEngine struct {
	// TranscribeFunc overrides the canned transcript when set.
	TranscribeFunc func(ctx context.Context, audioPath string) (*model.Transcript, error)
}

func (f *fakeEngine) Info() model.EngineInfo { return model.EngineInfo{Name: "fake", Version: "1"} }

func (f *fakeEngine) LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error) {
	return &model.ModelHandle{Name: name, Device: device}, nil
}

func (f *fakeEngine) Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error) {
	if f.TranscribeFunc != nil {
		return f.TranscribeFunc(ctx, audioPath)
	}
	return &model.Transcript{
		Text:     "hello",
		Language: "en",
		Segments: []model.Segment{{Start: 0, End: 1, Text: "hello"}},
	}, nil
}

type cpuOnly struct{}

func (cpuOnly) Detect(context.Context) model.Device { return model.DeviceCPU }

type stubWriter struct{}

func (stubWriter) Extensions() []string { return []string{".vtt", ".srt", ".txt", ".tsv", ".json"} }

func (w stubWriter) Write(t *model.Transcript, mediaName string, opts map[string]any, outputDir string) ([]string, error) {
	stem := model.ArtifactStem(mediaName)
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

type okProber struct{}

func (okProber) Probe(ctx context.Context, path string) (model.MediaInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return model.MediaInfo{}, err
	}
	return model.MediaInfo{Duration: 1, Format: "wav", Size: st.Size()}, nil
}

type notice struct {
	class  string
	err    error
	fields map[string]any
}

type fakeReporter struct {
	mu      sync.Mutex
	notices []notice
	err     error
	panics  bool
}

func (r *fakeReporter) Notify(ctx context.Context, class string, err error, fields map[string]any) error {
	r.mu.Lock()
	r.notices = append(r.notices, notice{class: class, err: err, fields: fields})
	r.mu.Unlock()
	if r.panics {
		panic("tracker exploded")
	}
	return r.err
}

func (r *fakeReporter) Flush() {}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

// floodQueue always returns two messages.
type floodQueue struct {
	*memory.Queue
	deletes int
}

func (q *floodQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]adapter.Message, error) {
	return []adapter.Message{{ID: "1", Body: []byte(`{}`)}, {ID: "2", Body: []byte(`{}`)}}, nil
}

func (q *floodQueue) Delete(ctx context.Context, msg adapter.Message) error {
	q.deletes++
	return nil
}

// undeletableQueue refuses deletes.
type undeletableQueue struct{ *memory.Queue }

func (q undeletableQueue) Delete(ctx context.Context, msg adapter.Message) error {
	return errors.New("access denied")
}

// ---- Harness ----

type harness struct {
	todo     adapter.Queue
	done     *memory.Queue
	store    *memory.Store
	engine   *fakeEngine
	reporter *fakeReporter
	workDir  string
	proc     *JobProcessor
}

func newHarness(t *testing.T, todo adapter.Queue) *harness {
	t.Helper()
	if todo == nil {
		todo = memory.NewQueue("todo")
	}
	h := &harness{
		todo:     todo,
		done:     memory.NewQueue("done"),
		store:    memory.NewStore(),
		engine:   &fakeEngine{},
		reporter: &fakeReporter{},
		workDir:  t.TempDir(),
	}
	log := logging.Nop()
	dec, err := usecase.NewJobDecoder()
	if err != nil {
		t.Fatal(err)
	}
	writer := stubWriter{}
	h.proc = NewJobProcessor(
		h.todo, h.done, h.store, dec,
		usecase.NewMediaGateway(h.store, okProber{}, log),
		usecase.NewTranscriptionInvoker(h.engine, writer, usecase.NewModelCache(h.engine, cpuOnly{}, log), "small", log),
		usecase.NewResultPublisher(h.store, writer.Extensions(), log),
		h.reporter,
		Options{WorkDir: h.workDir, DeleteSourceMedia: true},
		log,
	)
	h.proc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)) }
	return h
}

func (h *harness) enqueue(t *testing.T, body string) {
	t.Helper()
	if err := h.todo.Send(context.Background(), []byte(body)); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) upload(t *testing.T, key string) {
	t.Helper()
	if err := h.store.PutBytes(context.Background(), key, []byte("RIFF"), ""); err != nil {
		t.Fatal(err)
	}
}
