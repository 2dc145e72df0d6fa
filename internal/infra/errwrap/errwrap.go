package errwrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"speech-to-text/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// ExitNotRunnable is returned when the command could not be started,
// following the shell convention for "command not found".
const ExitNotRunnable = 127

// CommandError describes a wrapped command that exited non-zero.
type CommandError struct {
	Cmd        []string
	ReturnCode int
	Err        error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q returned non-zero exit status %d", strings.Join(e.Cmd, " "), e.ReturnCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Wrapper runs a child command with inherited stdio and reports failures.
type Wrapper struct {
	reporter adapter.ErrorReporter
	log      *zerolog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewWrapper(reporter adapter.ErrorReporter, logger *zerolog.Logger) *Wrapper {
	l := logger.With().Str("component", "ErrWrap").Logger()
	return &Wrapper{
		reporter: reporter,
		log:      &l,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Run executes argv and returns the exit code to bubble up. A cancelled
// context (operator interrupt) returns 0 without reporting.
func (w *Wrapper) Run(ctx context.Context, argv []string) int {
	if len(argv) == 0 {
		w.log.Error().Msg("no command given")
		return 2
	}
	w.log.Info().Strs("cmd", argv).Msg("command and args")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = w.Stdin, w.Stdout, w.Stderr

	err := cmd.Run()
	if err == nil {
		w.log.Info().Strs("cmd", argv).Int("returncode", 0).Msg("command completed")
		return 0
	}
	if ctx.Err() != nil {
		w.log.Info().Strs("cmd", argv).Msg("interrupted, exiting")
		return 0
	}

	code := ExitNotRunnable
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	cerr := &CommandError{Cmd: argv, ReturnCode: code, Err: err}
	fields := map[string]any{
		"message":    cerr.Error(),
		"cmd":        argv,
		"returncode": code,
	}
	w.log.Error().Err(err).Fields(fields).Msg("command failed")
	if rerr := w.reporter.Notify(ctx, "CommandError", cerr, fields); rerr != nil {
		w.log.Error().Err(rerr).Msg("error reporter failed")
	}
	w.reporter.Flush()
	return code
}
