package whisper

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"speech-to-text/internal/domain"
)

// Transcription option keys understood by the engines.
const (
	OptLanguage                = "language"
	OptTask                    = "task"
	OptTemperature             = "temperature"
	OptBeamSize                = "beam_size"
	OptBestOf                  = "best_of"
	OptInitialPrompt           = "initial_prompt"
	OptConditionOnPreviousText = "condition_on_previous_text"
	OptNoSpeechThreshold       = "no_speech_threshold"
	OptWordTimestamps          = "word_timestamps"
	OptFP16                    = "fp16"
	OptVerbose                 = "verbose"
)

// Params is the typed view of a transcription option map.
type Params struct {
	Language          string
	Translate         bool
	Temperature       *float64
	BeamSize          int
	BestOf            int
	InitialPrompt     string
	NoContext         bool
	NoSpeechThreshold *float64
	WordTimestamps    bool
}

// ParseParams validates an option map. Unknown keys and tasks wrap
// domain.ErrUnsupported.
func ParseParams(opts map[string]any) (Params, error) {
	var p Params
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := opts[k]
		if v == nil {
			continue
		}
		var err error
		switch k {
		case OptLanguage:
			p.Language, err = asString(k, v)
		case OptTask:
			var task string
			if task, err = asString(k, v); err == nil {
				switch task {
				case "transcribe":
				case "translate":
					p.Translate = true
				default:
					err = fmt.Errorf("%w: task %q", domain.ErrUnsupported, task)
				}
			}
		case OptTemperature:
			var f float64
			if f, err = asFloat(k, v); err == nil {
				p.Temperature = &f
			}
		case OptBeamSize:
			p.BeamSize, err = asInt(k, v)
		case OptBestOf:
			p.BestOf, err = asInt(k, v)
		case OptInitialPrompt:
			p.InitialPrompt, err = asString(k, v)
		case OptConditionOnPreviousText:
			var b bool
			if b, err = asBool(k, v); err == nil {
				p.NoContext = !b
			}
		case OptNoSpeechThreshold:
			var f float64
			if f, err = asFloat(k, v); err == nil {
				p.NoSpeechThreshold = &f
			}
		case OptWordTimestamps:
			p.WordTimestamps, err = asBool(k, v)
		case OptFP16, OptVerbose:
			// precision and console output are decided by the engine build
		default:
			err = fmt.Errorf("%w: %q", domain.ErrUnsupported, k)
		}
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
	return s, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: want bool, got %T", key, v)
	}
	return b, nil
}

func asFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%s: want number, got %T", key, v)
}

func asInt(key string, v any) (int, error) {
	f, err := asFloat(key, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: want integer, got %v", key, f)
	}
	return int(f), nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
