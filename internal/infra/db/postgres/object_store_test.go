//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speech-to-text/internal/domain"
)

func TestObjectStore_Postgres(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	s := NewObjectStore(testPool)

	src := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(src, []byte("RIFF...."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "media/j1/a.wav", src); err != nil {
		t.Fatalf("put: %v", err)
	}
	// overwrite keeps a single row
	if err := s.PutBytes(ctx, "media/j1/a.wav", []byte("RIFF2"), "audio/wav"); err != nil {
		t.Fatalf("put bytes: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out.wav")
	if err := s.Get(ctx, "media/j1/a.wav", dst); err != nil {
		t.Fatalf("get: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "RIFF2" {
		t.Fatalf("got %q", b)
	}

	if err := s.Delete(ctx, "media/j1/a.wav"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, "media/j1/a.wav", dst); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("want ErrObjectNotFound after delete, got %v", err)
	}
}

func TestObjectStore_SeededRows(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	s := NewObjectStore(testPool)
	seedObject(t, "media/j2/b.wav", []byte("seeded"))

	dst := filepath.Join(t.TempDir(), "b.wav")
	if err := s.Get(ctx, "media/j2/b.wav", dst); err != nil {
		t.Fatalf("get seeded row: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "seeded" {
		t.Fatalf("got %q", b)
	}

	if err := s.PutBytes(ctx, "j2/job.json", []byte(`{"id":"j2"}`), "application/json"); err != nil {
		t.Fatalf("put bytes: %v", err)
	}
	body, ct, ok := objectRow(t, "j2/job.json")
	if !ok || string(body) != `{"id":"j2"}` || ct != "application/json" {
		t.Fatalf("row = %q %q %v", body, ct, ok)
	}

	// deleting a missing key is not an error
	if err := s.Delete(ctx, "j2/missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := s.Delete(ctx, "media/j2/b.wav"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := objectRow(t, "media/j2/b.wav"); ok {
		t.Fatal("row still present after delete")
	}
}
