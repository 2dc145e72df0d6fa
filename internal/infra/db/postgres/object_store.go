package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/ports/adapter"
)

// Querier is the part of *pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

var _ adapter.ObjectStore = (*ObjectStore)(nil)

// ObjectStore keeps media and artifacts in the media_objects table
// (deploy/postgres/init.sql). It suits small deployments that already run
// Postgres and have no bucket.
type ObjectStore struct {
	db Querier
}

func NewObjectStore(db Querier) *ObjectStore {
	return &ObjectStore{db: db}
}

func (s *ObjectStore) Get(ctx context.Context, key, dst string) error {
	const q = `SELECT body FROM media_objects WHERE key=$1;`
	var body []byte
	if err := s.db.QueryRow(ctx, q, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound)
		}
		return mapPgError(err)
	}
	return os.WriteFile(dst, body, 0o644)
}

func (s *ObjectStore) Put(ctx context.Context, key, src string) error {
	body, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return s.PutBytes(ctx, key, body, "")
}

func (s *ObjectStore) PutBytes(ctx context.Context, key string, body []byte, contentType string) error {
	const q = `
INSERT INTO media_objects (key, body, content_type, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NOW())
ON CONFLICT (key) DO UPDATE SET
  body=EXCLUDED.body, content_type=EXCLUDED.content_type, updated_at=NOW();`
	if _, err := s.db.Exec(ctx, q, key, body, contentType); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM media_objects WHERE key=$1;`
	if _, err := s.db.Exec(ctx, q, key); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *ObjectStore) Location(key string) string { return "postgres://media_objects/" + key }

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("media_objects table missing, apply deploy/postgres/init.sql: %w", err)
		case "54000": // program_limit_exceeded
			return fmt.Errorf("object too large for bytea storage: %w", err)
		}
	}
	return err
}
