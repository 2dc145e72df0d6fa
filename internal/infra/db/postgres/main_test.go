//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

// TestMain connects to TEST_DATABASE_URL when set. Otherwise it starts a
// throwaway postgres container on a free host port. Either way the
// media_objects schema from deploy/postgres is applied before the tests run.
func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	stop := func() {}
	if dsn == "" {
		var err error
		dsn, stop, err = startContainer(ctx)
		if err != nil {
			log.Fatalf("postgres container: %v (is docker running?)", err)
		}
	}

	pool, err := waitForPool(ctx, dsn, 30*time.Second)
	if err != nil {
		stop()
		log.Fatalf("connect %s: %v", dsn, err)
	}
	testPool = pool
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		stop()
		log.Fatalf("apply schema: %v", err)
	}

	code := m.Run()
	pool.Close()
	stop()
	os.Exit(code)
}

func startContainer(ctx context.Context) (string, func(), error) {
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-e", "POSTGRES_DB=media",
		"-e", "POSTGRES_USER=stt",
		"-e", "POSTGRES_PASSWORD=stt",
		"-p", "127.0.0.1::5432",
		"postgres:14",
	).Output()
	if err != nil {
		return "", nil, err
	}
	id := strings.TrimSpace(string(out))
	stop := func() {
		if err := exec.Command("docker", "stop", id).Run(); err != nil {
			log.Printf("stop container %.12s: %v", id, err)
		}
	}

	// "127.0.0.1:49153"
	port, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("docker port: %w", err)
	}
	hostPort := strings.TrimSpace(strings.SplitN(string(port), "\n", 2)[0])
	return fmt.Sprintf("postgres://stt:stt@%s/media?sslmode=disable", hostPort), stop, nil
}

func waitForPool(ctx context.Context, dsn string, limit time.Duration) (*pgxpool.Pool, error) {
	deadline := time.Now().Add(limit)
	for {
		pool, err := NewPgxPool(ctx, dsn, 4)
		if err == nil {
			return pool, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(time.Second)
	}
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, file, _, _ := runtime.Caller(0)
	schema, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "deploy", "postgres", "init.sql"))
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, string(schema))
	return err
}

// cleanup empties media_objects so each test starts from a known table.
func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE media_objects`); err != nil {
		t.Fatalf("truncate media_objects: %v", err)
	}
}

// seedObject inserts a row directly, bypassing the store.
func seedObject(t *testing.T, key string, body []byte) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO media_objects (key, body, content_type) VALUES ($1, $2, 'application/octet-stream')`, key, body)
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

// objectRow reads a row directly. ok is false when the key has no row.
func objectRow(t *testing.T, key string) (body []byte, contentType string, ok bool) {
	t.Helper()
	var ct *string
	err := testPool.QueryRow(context.Background(),
		`SELECT body, content_type FROM media_objects WHERE key = $1`, key).Scan(&body, &ct)
	if err != nil {
		return nil, "", false
	}
	if ct != nil {
		contentType = *ct
	}
	return body, contentType, true
}
