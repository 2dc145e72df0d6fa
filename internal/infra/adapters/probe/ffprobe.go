package probe

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/command"
)

var _ adapter.MediaProber = (*FFProbe)(nil)

// FFProbe inspects media files with ffprobe.
type FFProbe struct {
	binary string
	runner command.Runner
}

func NewFFProbe(binary string, runner command.Runner) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{binary: binary, runner: runner}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

// Probe reports duration, container format and size of path. A file
// ffprobe rejects yields an InvalidMediaError; a missing ffprobe binary
// is returned as a plain error.
func (p *FFProbe) Probe(ctx context.Context, path string) (model.MediaInfo, error) {
	res, err := p.runner.Run(ctx, p.binary, "-v", "error", "-show_format", "-of", "json", path)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || res.ExitCode > 0 {
			return model.MediaInfo{}, domain.InvalidMediaError("probe", err, "%s is not a media file: %s",
				path, strings.TrimSpace(command.Truncate(string(res.Stderr), 1<<10)))
		}
		return model.MediaInfo{}, err
	}
	return parseFFProbe(res.Stdout, path)
}

func parseFFProbe(out []byte, path string) (model.MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return model.MediaInfo{}, domain.InvalidMediaError("probe", err, "unreadable ffprobe output for %s", path)
	}
	if raw.Format.FormatName == "" {
		return model.MediaInfo{}, domain.InvalidMediaError("probe", nil, "ffprobe found no container format in %s", path)
	}

	info := model.MediaInfo{Format: strings.Split(raw.Format.FormatName, ",")[0]}
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return model.MediaInfo{}, domain.InvalidMediaError("probe", err, "bad duration %q for %s", raw.Format.Duration, path)
		}
		info.Duration = d
	}
	if raw.Format.Size != "" {
		s, err := strconv.ParseInt(raw.Format.Size, 10, 64)
		if err != nil {
			return model.MediaInfo{}, domain.InvalidMediaError("probe", err, "bad size %q for %s", raw.Format.Size, path)
		}
		info.Size = s
	}
	return info, nil
}
