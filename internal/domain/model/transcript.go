package model

// Word is one timed word inside a segment.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability,omitempty"`
}

// Segment is one timed span of transcript text. Times are in seconds.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the structured result of one engine call.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// HasWords reports whether word-level timings are available.
func (t *Transcript) HasWords() bool {
	for _, s := range t.Segments {
		if len(s.Words) > 0 {
			return true
		}
	}
	return false
}

// Device is the compute target a model is loaded for.
type Device string

const (
	DeviceCPU    Device = "cpu"
	DeviceCUDA   Device = "cuda"
	DeviceRemote Device = "remote"
)

// ModelHandle is a loaded (or resolved) speech-to-text model.
type ModelHandle struct {
	Name   string
	Device Device
	// Path is the local model file for engines that run locally.
	Path string
}
