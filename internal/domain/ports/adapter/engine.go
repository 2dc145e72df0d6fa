package adapter

import (
	"context"

	"speech-to-text/internal/domain/model"
)

// TranscriptionEngine is the port for the speech-to-text model.
type TranscriptionEngine interface {
	Info() model.EngineInfo
	// LoadModel resolves (and if needed fetches) a model for a device.
	LoadModel(ctx context.Context, name string, device model.Device) (*model.ModelHandle, error)
	// Transcribe runs the model on one audio file with the effective options.
	Transcribe(ctx context.Context, m *model.ModelHandle, audioPath string, opts map[string]any) (*model.Transcript, error)
}

// DeviceDetector picks the compute device for local models.
type DeviceDetector interface {
	Detect(ctx context.Context) model.Device
}

// TranscriptWriter emits artifact files for one media item.
type TranscriptWriter interface {
	// Write writes every supported format for mediaName into outputDir and
	// returns the written paths.
	Write(t *model.Transcript, mediaName string, opts map[string]any, outputDir string) ([]string, error)
	// Extensions lists the artifact extensions (with dot) this writer emits.
	Extensions() []string
}
