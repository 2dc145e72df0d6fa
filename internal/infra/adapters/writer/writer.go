package writer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"speech-to-text/internal/domain/model"
	"speech-to-text/internal/domain/ports/adapter"
)

var _ adapter.TranscriptWriter = (*Set)(nil)

// Format renders a transcript into one file type.
type Format interface {
	Ext() string
	Render(w io.Writer, t *model.Transcript, opts Options) error
}

// Options are the layout controls shared by the subtitle formats.
// Zero values mean "not set".
type Options struct {
	MaxLineWidth    int
	MaxLineCount    int
	MaxWordsPerLine int
	HighlightWords  bool
}

// ParseOptions reads writer options from a decoded option map.
func ParseOptions(m map[string]any) (Options, error) {
	var o Options
	var err error
	if o.MaxLineWidth, err = intOpt(m, "max_line_width"); err != nil {
		return o, err
	}
	if o.MaxLineCount, err = intOpt(m, "max_line_count"); err != nil {
		return o, err
	}
	if o.MaxWordsPerLine, err = intOpt(m, "max_words_per_line"); err != nil {
		return o, err
	}
	if v, ok := m["highlight_words"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return o, fmt.Errorf("highlight_words: want bool, got %T", v)
		}
		o.HighlightWords = b
	}
	return o, nil
}

func intOpt(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s: want integer, got %v", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%s: want integer, got %T", key, v)
}

// Set writes every configured format for a media item.
type Set struct {
	formats []Format
}

// NewSet returns the full artifact set: vtt, srt, txt, tsv and json.
func NewSet() *Set {
	return &Set{formats: []Format{VTT{}, SRT{}, TXT{}, TSV{}, JSON{}}}
}

func (s *Set) Extensions() []string {
	out := make([]string, len(s.formats))
	for i, f := range s.formats {
		out[i] = f.Ext()
	}
	return out
}

// Write renders t into outputDir as {stem}{ext} for each format, where stem
// is mediaName's base name without extension.
func (s *Set) Write(t *model.Transcript, mediaName string, opts map[string]any, outputDir string) ([]string, error) {
	o, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}
	stem := model.ArtifactStem(mediaName)

	written := make([]string, 0, len(s.formats))
	for _, f := range s.formats {
		path := filepath.Join(outputDir, stem+f.Ext())
		if err := writeFile(path, func(w io.Writer) error { return f.Render(w, t, o) }); err != nil {
			return written, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := render(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatTimestamp renders seconds as [HH:]MM:SS<marker>mmm.
func FormatTimestamp(seconds float64, alwaysIncludeHours bool, decimalMarker string) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.RoundToEven(seconds * 1000))
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1_000
	ms -= secs * 1_000

	hoursMarker := ""
	if alwaysIncludeHours || hours > 0 {
		hoursMarker = fmt.Sprintf("%02d:", hours)
	}
	return fmt.Sprintf("%s%02d:%02d%s%03d", hoursMarker, minutes, secs, decimalMarker, ms)
}
