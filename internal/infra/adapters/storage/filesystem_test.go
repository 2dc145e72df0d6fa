package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speech-to-text/internal/domain"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	src := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "media/j1/a.wav", src); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "media", "j1", "a.wav")); err != nil {
		t.Fatalf("object not on disk: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "nested", "out.wav")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(ctx, "media/j1/a.wav", dst); err != nil {
		t.Fatalf("get: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "RIFF" {
		t.Fatalf("got %q", b)
	}

	if err := s.PutBytes(ctx, "j1/job.json", []byte(`{"id":"j1"}`), "application/json"); err != nil {
		t.Fatalf("put bytes: %v", err)
	}
	if b, _ := os.ReadFile(filepath.Join(root, "j1", "job.json")); string(b) != `{"id":"j1"}` {
		t.Fatalf("job.json: %q", b)
	}

	if err := s.Delete(ctx, "media/j1/a.wav"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "media/j1/a.wav"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	err = s.Get(context.Background(), "nope.wav", filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("want ErrObjectNotFound, got %v", err)
	}
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		if err := s.PutBytes(context.Background(), key, []byte("x"), ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("key %q: want ErrInvalidArgument, got %v", key, err)
		}
	}
}
