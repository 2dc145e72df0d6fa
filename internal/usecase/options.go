package usecase

import "speech-to-text/internal/domain/model"

const (
	optModel          = "model"
	optWriter         = "writer"
	optWordTimestamps = "word_timestamps"
)

// writerKeys are the output-formatting options. When they appear at the top
// level of an option set they are treated as writer options.
var writerKeys = []string{
	"highlight_words",
	"max_line_count",
	"max_line_width",
	"max_words_per_line",
}

// EffectiveOptions is the fully merged option set for one media item.
type EffectiveOptions struct {
	Model      string
	Transcribe map[string]any
	Writer     map[string]any
}

// ResolveOptions merges media-level options over job-level options.
//
// The model and writer meta-keys are pulled out of the transcription set.
// Any writer option forces word_timestamps on, because line-level writers
// lay out lines from word timings. Inputs are not modified.
func ResolveOptions(jobOpts, mediaOpts model.Options, defaultModel string) EffectiveOptions {
	merged := make(map[string]any, len(jobOpts)+len(mediaOpts))
	for k, v := range jobOpts {
		merged[k] = v
	}
	for k, v := range mediaOpts {
		merged[k] = v
	}

	for _, k := range writerKeys {
		delete(merged, k)
	}
	delete(merged, optWriter)

	writer := writerOptions(jobOpts)
	for k, v := range writerOptions(mediaOpts) {
		writer[k] = v
	}

	modelName := defaultModel
	if v, ok := merged[optModel].(string); ok && v != "" {
		modelName = v
	}
	delete(merged, optModel)

	if len(writer) > 0 {
		merged[optWordTimestamps] = true
	}

	return EffectiveOptions{
		Model:      modelName,
		Transcribe: merged,
		Writer:     writer,
	}
}

// writerOptions collects the writer options of one level: top-level writer
// keys first, then the nested writer map.
func writerOptions(opts model.Options) map[string]any {
	out := map[string]any{}
	for _, k := range writerKeys {
		if v := opts[k]; v != nil {
			out[k] = v
		}
	}
	mergeWriter(out, opts[optWriter])
	return out
}

func mergeWriter(dst map[string]any, v any) {
	var m map[string]any
	switch w := v.(type) {
	case map[string]any:
		m = w
	case model.Options:
		m = w
	default:
		return
	}
	for k, val := range m {
		if val == nil {
			continue
		}
		dst[k] = val
	}
}

// AuditTranscribe is the transcribe section of a run record: the model
// plus every option passed to the engine.
func (e EffectiveOptions) AuditTranscribe() map[string]any {
	out := make(map[string]any, len(e.Transcribe)+1)
	for k, v := range e.Transcribe {
		out[k] = v
	}
	out[optModel] = e.Model
	return out
}

// AuditWrite is the write section of a run record.
func (e EffectiveOptions) AuditWrite() map[string]any {
	out := make(map[string]any, len(e.Writer))
	for k, v := range e.Writer {
		out[k] = v
	}
	return out
}
