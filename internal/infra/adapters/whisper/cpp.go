package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/command"

	"github.com/rs/zerolog"
)

var _ adapter.TranscriptionEngine = (*CPPEngine)(nil)

type CPPConfig struct {
	Binary  string // whisper-cli
	FFmpeg  string // used to resample input to 16 kHz mono PCM
	Version string
	Threads int
}

// CPPEngine runs the whisper.cpp command line tool.
type CPPEngine struct {
	cfg     CPPConfig
	catalog *Catalog
	runner  command.Runner
	log     *zerolog.Logger
}

func NewCPPEngine(cfg CPPConfig, catalog *Catalog, runner command.Runner, logger *zerolog.Logger) *CPPEngine {
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	l := logger.With().Str("component", "CPPEngine").Logger()
	return &CPPEngine{cfg: cfg, catalog: catalog, runner: runner, log: &l}
}

func (e *CPPEngine) Info() model.EngineInfo {
	return model.EngineInfo{Name: "whisper.cpp", Version: e.cfg.Version}
}

// LoadModel resolves the ggml file for name, downloading it if allowed.
func (e *CPPEngine) LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error) {
	path, err := e.catalog.Ensure(ctx, name)
	if err != nil {
		return nil, err
	}
	return &model.ModelHandle{Name: name, Device: device, Path: path}, nil
}

// Transcribe resamples audioPath, runs whisper.cpp with full JSON output
// and parses the result.
func (e *CPPEngine) Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error) {
	p, err := ParseParams(opts)
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary workspace: %w", err)
	}
	defer os.RemoveAll(tmp)

	wav := filepath.Join(tmp, "input-16k-mono.wav")
	if res, err := e.runner.Run(ctx, e.cfg.FFmpeg, ffmpegArgs(audioPath, wav)...); err != nil {
		return nil, fmt.Errorf("ffmpeg audio conversion failed (exit %d): %s: %w",
			res.ExitCode, strings.TrimSpace(command.Truncate(string(res.Stderr), 2<<10)), err)
	}

	outBase := filepath.Join(tmp, "transcript")
	res, err := e.runner.Run(ctx, e.cfg.Binary, cppArgs(m, wav, outBase, p, e.cfg.Threads)...)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp failed (exit %d): %s: %w",
			res.ExitCode, strings.TrimSpace(command.Truncate(string(res.Stderr), 2<<10)), err)
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp completed but its JSON output is missing: %w", err)
	}
	return parseCPPOutput(raw, p.WordTimestamps)
}

func ffmpegArgs(in, out string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		out,
	}
}

func cppArgs(m *model.ModelHandle, wav, outBase string, p Params, threads int) []string {
	lang := p.Language
	if lang == "" {
		lang = "auto"
	}
	args := []string{
		"-m", m.Path,
		"-f", wav,
		"-l", lang,
		"-of", outBase,
		"-ojf",
		"-np",
	}
	if p.Translate {
		args = append(args, "-tr")
	}
	if p.Temperature != nil {
		args = append(args, "-tp", formatFloat(*p.Temperature))
	}
	if p.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(p.BeamSize))
	}
	if p.BestOf > 0 {
		args = append(args, "-bo", strconv.Itoa(p.BestOf))
	}
	if p.InitialPrompt != "" {
		args = append(args, "--prompt", p.InitialPrompt)
	}
	if p.NoContext {
		args = append(args, "-mc", "0")
	}
	if p.NoSpeechThreshold != nil {
		args = append(args, "-nth", formatFloat(*p.NoSpeechThreshold))
	}
	if threads > 0 {
		args = append(args, "-t", strconv.Itoa(threads))
	}
	if m.Device != model.DeviceCUDA {
		args = append(args, "-ng")
	}
	return args
}

type cppOffsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type cppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets cppOffsets `json:"offsets"`
		Text    string     `json:"text"`
		Tokens  []struct {
			Text    string     `json:"text"`
			Offsets cppOffsets `json:"offsets"`
			P       float64    `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func seconds(ms int64) float64 { return float64(ms) / 1000 }

// parseCPPOutput maps whisper.cpp -ojf output to a transcript. Word timings
// are rebuilt from tokens: a token starting with a space opens a new word.
func parseCPPOutput(raw []byte, withWords bool) (*model.Transcript, error) {
	var out cppOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper.cpp output: %w", err)
	}

	t := &model.Transcript{Language: out.Result.Language, Segments: make([]model.Segment, 0, len(out.Transcription))}
	var text strings.Builder
	for i, s := range out.Transcription {
		seg := model.Segment{
			ID:    i,
			Start: seconds(s.Offsets.From),
			End:   seconds(s.Offsets.To),
			Text:  s.Text,
		}
		text.WriteString(s.Text)

		if withWords {
			var probs []float64
			flush := func() {
				if len(probs) == 0 {
					return
				}
				var sum float64
				for _, p := range probs {
					sum += p
				}
				seg.Words[len(seg.Words)-1].Probability = sum / float64(len(probs))
				probs = probs[:0]
			}
			for _, tok := range s.Tokens {
				if strings.HasPrefix(tok.Text, "[_") || tok.Text == "" {
					continue
				}
				if len(seg.Words) == 0 || strings.HasPrefix(tok.Text, " ") {
					flush()
					seg.Words = append(seg.Words, model.Word{
						Word:  tok.Text,
						Start: seconds(tok.Offsets.From),
						End:   seconds(tok.Offsets.To),
					})
				} else {
					w := &seg.Words[len(seg.Words)-1]
					w.Word += tok.Text
					w.End = seconds(tok.Offsets.To)
				}
				probs = append(probs, tok.P)
			}
			flush()
		}
		t.Segments = append(t.Segments, seg)
	}
	t.Text = text.String()
	return t, nil
}
