package model

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"speech-to-text/internal/domain"
)

// Options is a free-form option mapping as it travels on the wire.
type Options map[string]any

// Clone returns a shallow copy. Nested maps are copied one level deep so
// that callers can edit a writer sub-map without touching the original.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	out := make(Options, len(o))
	for k, v := range o {
		if m, ok := asMap(v); ok {
			cp := make(map[string]any, len(m))
			for mk, mv := range m {
				cp[mk] = mv
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Options:
		return map[string]any(m), true
	}
	return nil, false
}

// MediaRef points at one source media object. Name is the object key and
// also the file's relative path inside the job working directory.
type MediaRef struct {
	Name    string  `json:"name"`
	Options Options `json:"options,omitempty"`
}

// UnmarshalJSON accepts either a bare key string or an object.
func (m *MediaRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		m.Name = name
		m.Options = nil
		return nil
	}
	type plain MediaRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = MediaRef(p)
	return nil
}

// ArtifactStem is the file name, without extension, that the artifacts of
// the media object name are written under.
func ArtifactStem(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ArtifactConflict reports the first pair of media items whose artifacts
// would share a file name.
func (j *Job) ArtifactConflict() (first, second string, ok bool) {
	seen := make(map[string]string, len(j.Media))
	for _, m := range j.Media {
		stem := ArtifactStem(m.Name)
		if prev, dup := seen[stem]; dup {
			return prev, m.Name, true
		}
		seen[stem] = m.Name
	}
	return "", "", false
}

// MediaInfo is what the media probe reports for a file.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Size     int64   `json:"size"`
}

// EngineInfo identifies the transcription engine used for a job.
type EngineInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Run is the audit record of one media item's transcription.
type Run struct {
	Media      string         `json:"media"`
	MediaInfo  *MediaInfo     `json:"media_info,omitempty"`
	Transcribe map[string]any `json:"transcribe"`
	Write      map[string]any `json:"write"`
}

// RunLog is the technical metadata attached to a job by the invoker.
type RunLog struct {
	Engine EngineInfo `json:"engine"`
	Runs   []Run      `json:"runs"`
}

// JobError is the failure detail attached to a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Job is one transcription request. It is mutated in place by the
// pipeline stages; Output, Log, Finished and Error are write-once.
type Job struct {
	ID       string     `json:"id"`
	Media    []MediaRef `json:"media"`
	Options  Options    `json:"options,omitempty"`
	Output   []string   `json:"output,omitempty"`
	Log      *RunLog    `json:"log,omitempty"`
	Finished *time.Time `json:"finished,omitempty"`
	Error    *JobError  `json:"error,omitempty"`
}

// ValidateID rejects ids that could escape a storage prefix or working directory.
func ValidateID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidJobID, id)
	}
	return nil
}

// SetOutput records the uploaded artifact keys.
func (j *Job) SetOutput(keys []string) error {
	if j.Output != nil {
		return fmt.Errorf("output: %w", domain.ErrFieldAlreadySet)
	}
	j.Output = append(make([]string, 0, len(keys)), keys...)
	return nil
}

// SetLog records the transcription audit trail.
func (j *Job) SetLog(l *RunLog) error {
	if j.Log != nil {
		return fmt.Errorf("log: %w", domain.ErrFieldAlreadySet)
	}
	j.Log = l
	return nil
}

// MarkFinished stamps the completion time in UTC.
func (j *Job) MarkFinished(t time.Time) error {
	if j.Finished != nil {
		return fmt.Errorf("finished: %w", domain.ErrFieldAlreadySet)
	}
	utc := t.UTC()
	j.Finished = &utc
	return nil
}

// SetError records the failure detail.
func (j *Job) SetError(e *JobError) error {
	if j.Error != nil {
		return fmt.Errorf("error: %w", domain.ErrFieldAlreadySet)
	}
	j.Error = e
	return nil
}

// FailureRecord returns the copy of the job that is sent to the completion
// queue on failure: it carries the error and never output or finished.
func (j *Job) FailureRecord(e *JobError) *Job {
	cp := *j
	cp.Output = nil
	cp.Finished = nil
	cp.Error = nil
	_ = cp.SetError(e)
	return &cp
}

// StoragePrefix is the object-store prefix owned by this job.
func (j *Job) StoragePrefix() string { return j.ID }

// OutputKey is the object key for an uploaded artifact.
func (j *Job) OutputKey(filename string) string {
	return path.Join(j.ID, "output", filename)
}

// RecordKey is the object key of the persisted job JSON.
func (j *Job) RecordKey() string {
	return path.Join(j.ID, "job.json")
}

// SubmittedMediaKey is where the job-creation entry point uploads a file.
func SubmittedMediaKey(jobID, filename string) string {
	return path.Join("media", jobID, filename)
}
