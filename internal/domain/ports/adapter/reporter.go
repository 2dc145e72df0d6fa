package adapter

import "context"

// ErrorReporter forwards failures to an external error-tracking service.
// Implementations must not block for long; delivery is best effort.
type ErrorReporter interface {
	Notify(ctx context.Context, class string, err error, fields map[string]any) error
	Flush()
}
