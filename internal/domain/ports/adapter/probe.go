package adapter

import (
	"context"

	"speech-to-text/internal/domain/model"
)

// MediaProber inspects a local media file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (model.MediaInfo, error)
}
