package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.TranscriptionEngine = (*OpenAIEngine)(nil)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string // remote model used for every local model size
	Timeout time.Duration
}

// OpenAIEngine calls an OpenAI-compatible audio transcription endpoint.
type OpenAIEngine struct {
	cfg    OpenAIConfig
	client *http.Client
	log    *zerolog.Logger
}

func NewOpenAIEngine(cfg OpenAIConfig, logger *zerolog.Logger) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "OpenAIEngine").Logger()
	return &OpenAIEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    &l,
	}, nil
}

func (o *OpenAIEngine) Info() model.EngineInfo {
	return model.EngineInfo{Name: "openai", Version: o.cfg.Model}
}

// LoadModel has nothing to load; local model sizes map to the remote model.
func (o *OpenAIEngine) LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error) {
	remote := o.cfg.Model
	if _, local := knownModels[canonicalName(name)]; !local && name != "" {
		remote = name
	}
	return &model.ModelHandle{Name: remote, Device: model.DeviceRemote}, nil
}

func (o *OpenAIEngine) Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error) {
	p, err := ParseParams(opts)
	if err != nil {
		return nil, err
	}
	if p.BeamSize > 0 || p.BestOf > 0 || p.NoContext || p.NoSpeechThreshold != nil {
		o.log.Debug().Msg("decoding options without a remote equivalent are ignored")
	}

	body, contentType, err := o.multipartBody(m, audioPath, p)
	if err != nil {
		return nil, err
	}
	endpoint := "/audio/transcriptions"
	if p.Translate {
		endpoint = "/audio/translations"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(o.cfg.BaseURL, "/")+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload verboseJSON
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	return payload.transcript(), nil
}

func (o *OpenAIEngine) multipartBody(m *model.ModelHandle, audioPath string, p Params) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", m.Name},
		{"response_format", "verbose_json"},
	}
	if p.Language != "" && !p.Translate {
		fields = append(fields, [2]string{"language", p.Language})
	}
	if p.Temperature != nil {
		fields = append(fields, [2]string{"temperature", formatFloat(*p.Temperature)})
	}
	if p.InitialPrompt != "" {
		fields = append(fields, [2]string{"prompt", p.InitialPrompt})
	}
	if p.WordTimestamps && !p.Translate {
		fields = append(fields,
			[2]string{"timestamp_granularities[]", "word"},
			[2]string{"timestamp_granularities[]", "segment"},
		)
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

type verboseJSON struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// transcript assigns each word to the segment it starts in. Words get a
// leading space so they join the same way whisper words do.
func (v verboseJSON) transcript() *model.Transcript {
	t := &model.Transcript{Text: v.Text, Language: v.Language, Segments: make([]model.Segment, 0, len(v.Segments))}
	for _, s := range v.Segments {
		t.Segments = append(t.Segments, model.Segment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(t.Segments) == 0 && v.Text != "" {
		t.Segments = append(t.Segments, model.Segment{Text: v.Text})
		if n := len(v.Words); n > 0 {
			t.Segments[0].Start, t.Segments[0].End = v.Words[0].Start, v.Words[n-1].End
		}
	}

	seg := 0
	for _, w := range v.Words {
		for seg < len(t.Segments)-1 && w.Start >= t.Segments[seg+1].Start {
			seg++
		}
		if len(t.Segments) == 0 {
			break
		}
		word := w.Word
		if !strings.HasPrefix(word, " ") {
			word = " " + word
		}
		t.Segments[seg].Words = append(t.Segments[seg].Words, model.Word{Word: word, Start: w.Start, End: w.End})
	}
	return t
}
