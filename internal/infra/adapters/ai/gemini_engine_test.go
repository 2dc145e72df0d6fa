package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/infra/adapters/command"
	"speech-to-text/internal/infra/logging"
)

// fakeFFmpeg writes a few bytes to the output path (its last argument).
type fakeFFmpeg struct {
	size int
	err  error
}

func (f fakeFFmpeg) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	if f.err != nil {
		return command.Result{ExitCode: 1, Stderr: []byte("Invalid data found")}, f.err
	}
	return command.Result{}, os.WriteFile(args[len(args)-1], make([]byte, f.size), 0o644)
}

func newGeminiServer(t *testing.T, answer string, gotBody *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			*gotBody = string(b)
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": answer}},
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiEngine_Transcribe(t *testing.T) {
	answer := `{"language":"en","segments":[{"start":0,"end":1.5,"text":"Hello there."},{"start":1.5,"end":1.2,"text":" General Kenobi."}]}`
	var body string
	srv := newGeminiServer(t, answer, &body)

	ctx := context.Background()
	g, err := NewGeminiEngine(ctx, GeminiConfig{APIKey: "k", BaseURL: srv.URL, Model: "gemini-2.0-flash"}, fakeFFmpeg{size: 16}, logging.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m, err := g.LoadModel(ctx, "small", model.DeviceCPU)
	if err != nil || m.Name != "gemini-2.0-flash" || m.Device != model.DeviceRemote {
		t.Fatalf("load model: %+v %v", m, err)
	}

	tr, err := g.Transcribe(ctx, m, "in.wav", map[string]any{"language": "en", "temperature": 0.0})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.Language != "en" || len(tr.Segments) != 2 {
		t.Fatalf("transcript: %+v", tr)
	}
	if tr.Segments[0].Text != " Hello there." || tr.Text != " Hello there. General Kenobi." {
		t.Fatalf("text: %q / %q", tr.Segments[0].Text, tr.Text)
	}
	if tr.Segments[1].End != 1.5 {
		t.Fatalf("end before start not clamped: %+v", tr.Segments[1])
	}
	if !strings.Contains(body, "audio/flac") {
		t.Fatal("audio not sent inline")
	}
}

func TestGeminiEngine_Errors(t *testing.T) {
	ctx := context.Background()
	srv := newGeminiServer(t, `not json`, nil)

	t.Run("should require an api key", func(t *testing.T) {
		if _, err := NewGeminiEngine(ctx, GeminiConfig{}, fakeFFmpeg{}, logging.Nop()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("should reject unknown options before any work", func(t *testing.T) {
		g, _ := NewGeminiEngine(ctx, GeminiConfig{APIKey: "k", BaseURL: srv.URL}, fakeFFmpeg{size: 1}, logging.Nop())
		_, err := g.Transcribe(ctx, &model.ModelHandle{Name: "gemini-2.0-flash"}, "in.wav", map[string]any{"patience": 1.0})
		if !errors.Is(err, domain.ErrUnsupported) {
			t.Fatalf("want ErrUnsupported, got %v", err)
		}
	})

	t.Run("should refuse audio above the inline limit", func(t *testing.T) {
		g, _ := NewGeminiEngine(ctx, GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxInlineBytes: 8}, fakeFFmpeg{size: 9}, logging.Nop())
		_, err := g.Transcribe(ctx, &model.ModelHandle{Name: "gemini-2.0-flash"}, "in.wav", nil)
		if err == nil || !strings.Contains(err.Error(), "inline limit") {
			t.Fatalf("want inline limit error, got %v", err)
		}
	})

	t.Run("should surface ffmpeg failures", func(t *testing.T) {
		g, _ := NewGeminiEngine(ctx, GeminiConfig{APIKey: "k", BaseURL: srv.URL}, fakeFFmpeg{err: errors.New("exit status 1")}, logging.Nop())
		_, err := g.Transcribe(ctx, &model.ModelHandle{Name: "gemini-2.0-flash"}, "in.wav", nil)
		if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
			t.Fatalf("want ffmpeg stderr in error, got %v", err)
		}
	})

	t.Run("should reject a malformed answer", func(t *testing.T) {
		g, _ := NewGeminiEngine(ctx, GeminiConfig{APIKey: "k", BaseURL: srv.URL}, fakeFFmpeg{size: 1}, logging.Nop())
		if _, err := g.Transcribe(ctx, &model.ModelHandle{Name: "gemini-2.0-flash"}, "in.wav", nil); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
