//go:build !integration

package postgres

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// fakeRow returns a canned scan result.
type fakeRow struct {
	body []byte
	err  error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.body
	return nil
}

// mockQuerier records statements and serves rows from a map.
type mockQuerier struct {
	rows    map[string][]byte
	execErr error
	execs   []string
}

func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, sql)
	if m.execErr != nil {
		return nil, m.execErr
	}
	return pgconn.CommandTag("INSERT 0 1"), nil
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	body, ok := m.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{body: body}
}
