package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/memory"
	"speech-to-text/internal/infra/logging"
)

func TestJobSubmitter_Create(t *testing.T) {
	ctx := context.Background()
	store, todo := memory.NewStore(), memory.NewQueue("todo")
	sub := NewJobSubmitter(store, todo, memory.NewQueue("done"), logging.Nop())

	src := filepath.Join(t.TempDir(), "en.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := sub.Create(ctx, src, "", "tiny")
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 36 {
		t.Fatalf("generated id %q is not a uuid", id)
	}
	if _, ok := store.Object("media/" + id + "/en.wav"); !ok {
		t.Fatalf("media not uploaded, keys = %v", store.Keys())
	}

	bodies := todo.Bodies()
	if len(bodies) != 1 {
		t.Fatalf("queued = %d", len(bodies))
	}
	var job model.Job
	if err := json.Unmarshal(bodies[0], &job); err != nil {
		t.Fatal(err)
	}
	if job.ID != id || len(job.Media) != 1 || job.Media[0].Name != "media/"+id+"/en.wav" || job.Options["model"] != "tiny" {
		t.Fatalf("job = %+v", job)
	}
}

func TestJobSubmitter_CreateRejectsBadID(t *testing.T) {
	sub := NewJobSubmitter(memory.NewStore(), memory.NewQueue("todo"), memory.NewQueue("done"), logging.Nop())
	if _, err := sub.Create(context.Background(), "x.wav", "../etc", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobSubmitter_ReceiveDone(t *testing.T) {
	ctx := context.Background()
	done := memory.NewQueue("done")
	sub := NewJobSubmitter(memory.NewStore(), memory.NewQueue("todo"), done, logging.Nop())
	sub.wait = 0

	job, err := sub.ReceiveDone(ctx)
	if err != nil || job != nil {
		t.Fatalf("empty queue = %v, %v", job, err)
	}

	_ = done.Send(ctx, []byte(`{"id":"j1","media":["a.wav"],"error":{"kind":"StorageError","message":"m"}}`))
	job, err = sub.ReceiveDone(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != "j1" || job.Error == nil || job.Error.Kind != "StorageError" {
		t.Fatalf("job = %+v", job)
	}
	if ready, inflight := done.Len(); ready != 0 || inflight != 0 {
		t.Fatalf("message not deleted: %d ready, %d in flight", ready, inflight)
	}
}

type floodQueue struct{ *memory.Queue }

func (q floodQueue) Receive(ctx context.Context, max int, _ time.Duration) ([]adapter.Message, error) {
	return []adapter.Message{{ID: "1"}, {ID: "2"}}, nil
}

func TestJobSubmitter_ReceiveDoneProtocolError(t *testing.T) {
	sub := NewJobSubmitter(memory.NewStore(), memory.NewQueue("todo"), floodQueue{memory.NewQueue("done")}, logging.Nop())
	_, err := sub.ReceiveDone(context.Background())
	if !isKind(err, domain.KindProtocol) {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}
