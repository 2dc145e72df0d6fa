package domain

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	// Common domain errors
	ErrObjectNotFound  = errors.New("object not found")
	ErrFieldAlreadySet = errors.New("field already set")
	ErrInvalidJobID    = errors.New("invalid job id")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnsupported     = errors.New("unsupported option")
)

// ErrorKind classifies failures for logging, metrics and the error tracker.
type ErrorKind string

const (
	KindProtocol      ErrorKind = "ProtocolError"
	KindInvalidMedia  ErrorKind = "InvalidMediaError"
	KindTranscription ErrorKind = "TranscriptionError"
	KindStorage       ErrorKind = "StorageError"
	KindInvalidJob    ErrorKind = "InvalidJobError"
	KindUnexpected    ErrorKind = "UnexpectedError"
)

// Error is the tagged error carried through job processing.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// newError records the call stack at the construction site so failure
// records can carry a trace (printed with %+v).
func newError(kind ErrorKind, op string, err error, format string, args ...any) error {
	return pkgerrors.WithStack(&Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	})
}

func ProtocolError(op, format string, args ...any) error {
	return newError(KindProtocol, op, nil, format, args...)
}

func InvalidMediaError(op string, err error, format string, args ...any) error {
	return newError(KindInvalidMedia, op, err, format, args...)
}

func TranscriptionError(op string, err error, format string, args ...any) error {
	return newError(KindTranscription, op, err, format, args...)
}

func StorageError(op string, err error, format string, args ...any) error {
	return newError(KindStorage, op, err, format, args...)
}

func InvalidJobError(op string, err error, format string, args ...any) error {
	return newError(KindInvalidJob, op, err, format, args...)
}

// KindOf returns the kind of the first domain error in err's chain,
// or KindUnexpected when none is found.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
