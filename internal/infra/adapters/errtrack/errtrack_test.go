package errtrack

import (
	"context"
	"errors"
	"sync"
	"testing"

	"speech-to-text/internal/config"
	"speech-to-text/internal/infra/logging"

	"github.com/honeybadger-io/honeybadger-go"
)

type recordingBackend struct {
	mu      sync.Mutex
	notices []*honeybadger.Notice
	err     error
}

func (b *recordingBackend) Notify(_ honeybadger.Feature, payload honeybadger.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := payload.(*honeybadger.Notice); ok {
		b.notices = append(b.notices, n)
	}
	return b.err
}

func TestHoneybadgerReporter_Notify(t *testing.T) {
	backend := &recordingBackend{}
	r, err := NewHoneybadgerReporter("key", "test", backend, logging.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := logging.WithTraceID(context.Background(), "01TRACE")
	if err := r.Notify(ctx, "StorageError", errors.New("boom"), map[string]any{"job_id": "j1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	r.Flush()

	if len(backend.notices) != 1 {
		t.Fatalf("want 1 notice, got %d", len(backend.notices))
	}
	n := backend.notices[0]
	if n.ErrorClass != "StorageError" {
		t.Fatalf("class: got %q", n.ErrorClass)
	}
	if n.Context["job_id"] != "j1" || n.Context["trace_id"] != "01TRACE" {
		t.Fatalf("context: %#v", n.Context)
	}
}

func TestNewHoneybadgerReporter_RequiresKey(t *testing.T) {
	if _, err := NewHoneybadgerReporter("", "test", nil, logging.Nop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestNoopReporter(t *testing.T) {
	r := NewNoopReporter(logging.Nop())
	if err := r.Notify(context.Background(), "X", errors.New("e"), nil); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
	r.Flush()
}

func TestNewReporter_FallsBackToNoop(t *testing.T) {
	r := NewReporter(config.HoneybadgerConfig{Env: "stage"}, logging.Nop())
	if _, ok := r.(*NoopReporter); !ok {
		t.Fatalf("want NoopReporter without api key, got %T", r)
	}
}
