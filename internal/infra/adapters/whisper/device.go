package whisper

import (
	"context"
	"strings"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
	"speech-to-text/internal/infra/adapters/command"
)

var (
	_ adapter.DeviceDetector = StaticDevice("")
	_ adapter.DeviceDetector = (*NvidiaDetector)(nil)
)

// StaticDevice always reports the same device.
type StaticDevice model.Device

func (d StaticDevice) Detect(context.Context) model.Device { return model.Device(d) }

// NvidiaDetector picks cuda when nvidia-smi lists a GPU, cpu otherwise.
type NvidiaDetector struct {
	runner command.Runner
}

func NewNvidiaDetector(runner command.Runner) *NvidiaDetector {
	return &NvidiaDetector{runner: runner}
}

func (d *NvidiaDetector) Detect(ctx context.Context) model.Device {
	res, err := d.runner.Run(ctx, "nvidia-smi", "-L")
	if err != nil || !strings.Contains(string(res.Stdout), "GPU") {
		return model.DeviceCPU
	}
	return model.DeviceCUDA
}

// NewDeviceDetector maps the engine.device setting to a detector.
func NewDeviceDetector(setting string, runner command.Runner) adapter.DeviceDetector {
	switch strings.ToLower(setting) {
	case "cuda", "gpu":
		return StaticDevice(model.DeviceCUDA)
	case "cpu":
		return StaticDevice(model.DeviceCPU)
	default:
		return NewNvidiaDetector(runner)
	}
}
