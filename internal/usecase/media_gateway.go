package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// MediaGateway materializes job media from the object store and probes it.
type MediaGateway struct {
	store  adapter.ObjectStore
	prober adapter.MediaProber
	log    *zerolog.Logger
}

func NewMediaGateway(store adapter.ObjectStore, prober adapter.MediaProber, logger *zerolog.Logger) *MediaGateway {
	l := logger.With().Str("component", "MediaGateway").Logger()
	return &MediaGateway{store: store, prober: prober, log: &l}
}

// LocalPath maps a media key to its path inside workDir. Keys that would
// escape workDir are rejected.
func LocalPath(workDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(name, "/")))
	if name == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.ErrInvalidArgument
	}
	return filepath.Join(workDir, clean), nil
}

// Fetch downloads ref into workDir, mirroring the key's relative structure.
func (g *MediaGateway) Fetch(ctx context.Context, workDir string, ref model.MediaRef) (string, error) {
	dst, err := LocalPath(workDir, ref.Name)
	if err != nil {
		return "", domain.StorageError("fetch", err, "media key %q is not a valid relative path", ref.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", domain.StorageError("fetch", err, "create working directory")
	}

	g.log.Info().Str("key", ref.Name).Str("src", g.store.Location(ref.Name)).Str("dst", dst).Msg("downloading media")
	if err := g.store.Get(ctx, ref.Name, dst); err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return "", domain.StorageError("fetch", err, "media %s does not exist", g.store.Location(ref.Name))
		}
		return "", domain.StorageError("fetch", err, "download %s", g.store.Location(ref.Name))
	}
	return dst, nil
}

// Probe reports duration, container format and size of a local media file.
func (g *MediaGateway) Probe(ctx context.Context, path string) (model.MediaInfo, error) {
	info, err := g.prober.Probe(ctx, path)
	if err != nil {
		if domain.IsKind(err, domain.KindInvalidMedia) {
			metrics.IncProbe("invalid")
			return model.MediaInfo{}, err
		}
		// the probe itself could not run; that is a system problem, not bad media
		metrics.IncProbe("error")
		return model.MediaInfo{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	metrics.IncProbe("ok")
	g.log.Debug().Str("path", path).Float64("duration", info.Duration).Str("format", info.Format).Int64("size", info.Size).Msg("probed media")
	return info, nil
}
