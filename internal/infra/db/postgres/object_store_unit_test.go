//go:build !integration

package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgconn"

	"speech-to-text/internal/domain"
)

func TestObjectStore_Get(t *testing.T) {
	s := NewObjectStore(&mockQuerier{rows: map[string][]byte{"media/a.wav": []byte("RIFF")}})

	dst := filepath.Join(t.TempDir(), "a.wav")
	if err := s.Get(context.Background(), "media/a.wav", dst); err != nil {
		t.Fatalf("get: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "RIFF" {
		t.Fatalf("got %q", b)
	}

	err := s.Get(context.Background(), "missing", dst)
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("want ErrObjectNotFound, got %v", err)
	}
}

func TestObjectStore_MissingTable(t *testing.T) {
	m := &mockQuerier{execErr: &pgconn.PgError{Code: "42P01", Message: `relation "media_objects" does not exist`}}
	s := NewObjectStore(m)
	err := s.PutBytes(context.Background(), "k", []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "init.sql") {
		t.Fatalf("want hint about schema, got %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatal("pg error not wrapped")
	}
}
