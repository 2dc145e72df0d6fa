package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"speech-to-text/internal/infra/logging"
	"speech-to-text/internal/infra/metrics"
)

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name   string
		checks map[string]Check
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"all ok", map[string]Check{"redis": ok}, http.StatusOK},
		{"one down", map[string]Check{"redis": ok, "postgres": down}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(0, tc.checks, logging.Nop())
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tc.want {
				t.Fatalf("status: got %d want %d", rec.Code, tc.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if tc.want != http.StatusOK && body["postgres"] != "connection refused" {
				t.Fatalf("body: %v", body)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.MustRegister()
	metrics.IncJob("completed", "")

	s := NewServer(0, nil, logging.Nop())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stt_jobs_processed_total") {
		t.Fatal("job counter not exported")
	}
}
