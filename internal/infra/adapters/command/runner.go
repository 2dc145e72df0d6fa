package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Result is the captured outcome of one process run.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner abstracts process execution so adapters can be tested with fakes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	log *zerolog.Logger
}

func NewExecRunner(logger *zerolog.Logger) *ExecRunner {
	l := logger.With().Str("component", "ExecRunner").Logger()
	return &ExecRunner{log: &l}
}

// Run executes name with args, capturing output. A non-zero exit yields an
// *exec.ExitError together with the populated Result. When the binary
// cannot be started ExitCode is -1.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	start := time.Now()
	r.log.Debug().Str("cmd_line", strings.Join(append([]string{name}, args...), " ")).Msg("running command")

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		r.log.Debug().Str("cmd", name).Int("exit_code", res.ExitCode).Dur("duration", time.Since(start)).
			Str("stderr", Truncate(stderr.String(), 8<<10)).Err(err).Msg("command failed")
		return res, err
	}
	r.log.Debug().Str("cmd", name).Dur("duration", time.Since(start)).Int("stdout_bytes", stdout.Len()).Msg("command ok")
	return res, nil
}

// Truncate caps s at max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
