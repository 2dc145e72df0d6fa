package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/command"
	"speech-to-text/internal/infra/adapters/whisper"

	"github.com/rs/zerolog"
)

var _ adapter.TranscriptionEngine = (*GeminiEngine)(nil)

// Inline request parts are capped at 20 MB by the Gemini API.
const defaultMaxInlineBytes = 20 << 20

type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	FFmpeg         string
	MaxInlineBytes int
}

// GeminiEngine asks a Gemini model for a timestamped transcript. Audio is
// re-encoded to 16 kHz mono FLAC and sent inline.
type GeminiEngine struct {
	client *genai.Client
	cfg    GeminiConfig
	runner command.Runner
	log    *zerolog.Logger
}

func NewGeminiEngine(ctx context.Context, cfg GeminiConfig, runner command.Runner, logger *zerolog.Logger) (*GeminiEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.MaxInlineBytes <= 0 {
		cfg.MaxInlineBytes = defaultMaxInlineBytes
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "GeminiEngine").Logger()
	return &GeminiEngine{client: c, cfg: cfg, runner: runner, log: &l}, nil
}

func (g *GeminiEngine) Info() model.EngineInfo {
	return model.EngineInfo{Name: "gemini", Version: g.cfg.Model}
}

// LoadModel keeps explicit gemini model names and maps whisper sizes to the
// configured model.
func (g *GeminiEngine) LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error) {
	remote := g.cfg.Model
	if strings.HasPrefix(name, "gemini-") {
		remote = name
	}
	return &model.ModelHandle{Name: remote, Device: model.DeviceRemote}, nil
}

func (g *GeminiEngine) Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error) {
	p, err := whisper.ParseParams(opts)
	if err != nil {
		return nil, err
	}
	if p.WordTimestamps {
		g.log.Debug().Msg("word timestamps are not available from gemini; subtitles use segment timings")
	}

	audio, err := g.encode(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptSchema,
	}
	if p.Temperature != nil {
		t := float32(*p.Temperature)
		cfg.Temperature = &t
	}
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt(p)},
			{InlineData: &genai.Blob{MIMEType: "audio/flac", Data: audio}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, m.Name, contents, cfg)
	if err != nil {
		return nil, err
	}
	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	if text == "" {
		return nil, errors.New("gemini: empty response")
	}
	return parseGeminiTranscript(text)
}

func (g *GeminiEngine) encode(ctx context.Context, audioPath string) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "gemini-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary workspace: %w", err)
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "audio.flac")
	res, err := g.runner.Run(ctx, g.cfg.FFmpeg,
		"-hide_banner", "-nostdin", "-y",
		"-i", audioPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-c:a", "flac",
		out,
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg audio conversion failed (exit %d): %s: %w",
			res.ExitCode, strings.TrimSpace(command.Truncate(string(res.Stderr), 2<<10)), err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	if len(b) > g.cfg.MaxInlineBytes {
		return nil, fmt.Errorf("gemini: encoded audio is %d bytes, inline limit is %d", len(b), g.cfg.MaxInlineBytes)
	}
	return b, nil
}

func prompt(p whisper.Params) string {
	var b strings.Builder
	b.WriteString("Transcribe the attached audio verbatim. Split it into segments of at most one or two sentences. ")
	b.WriteString("Give start and end of every segment in seconds from the beginning of the audio. ")
	b.WriteString("Report the spoken language as an ISO 639-1 code.")
	if p.Translate {
		b.WriteString(" Translate every segment into English.")
	} else if p.Language != "" {
		fmt.Fprintf(&b, " The audio is in language %q.", p.Language)
	}
	if p.InitialPrompt != "" {
		fmt.Fprintf(&b, " Context: %s", p.InitialPrompt)
	}
	return b.String()
}

var transcriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"language": {Type: genai.TypeString},
		"segments": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start": {Type: genai.TypeNumber},
					"end":   {Type: genai.TypeNumber},
					"text":  {Type: genai.TypeString},
				},
				Required: []string{"start", "end", "text"},
			},
		},
	},
	Required: []string{"segments"},
}

type geminiTranscript struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// parseGeminiTranscript maps the JSON answer to a transcript. Segment text
// gets a leading space so it joins the way whisper segments do.
func parseGeminiTranscript(raw string) (*model.Transcript, error) {
	var gt geminiTranscript
	if err := json.Unmarshal([]byte(raw), &gt); err != nil {
		return nil, fmt.Errorf("parse gemini transcript: %w", err)
	}
	t := &model.Transcript{Language: gt.Language, Segments: make([]model.Segment, 0, len(gt.Segments))}
	var text strings.Builder
	for i, s := range gt.Segments {
		if s.End < s.Start {
			s.End = s.Start
		}
		seg := " " + strings.TrimSpace(s.Text)
		t.Segments = append(t.Segments, model.Segment{ID: i, Start: s.Start, End: s.End, Text: seg})
		text.WriteString(seg)
	}
	t.Text = text.String()
	return t, nil
}
