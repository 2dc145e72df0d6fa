package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"speech-to-text/internal/domain/model"
)

// VTT writes WebVTT subtitles.
type VTT struct{}

func (VTT) Ext() string { return ".vtt" }

func (VTT) Render(w io.Writer, t *model.Transcript, o Options) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	ts := func(s float64) string { return FormatTimestamp(s, false, ".") }
	for _, c := range Cues(t, o, ts) {
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n", c.Start, c.End, c.Text); err != nil {
			return err
		}
	}
	return nil
}

// SRT writes SubRip subtitles.
type SRT struct{}

func (SRT) Ext() string { return ".srt" }

func (SRT) Render(w io.Writer, t *model.Transcript, o Options) error {
	ts := func(s float64) string { return FormatTimestamp(s, true, ",") }
	for i, c := range Cues(t, o, ts) {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", i+1, c.Start, c.End, c.Text); err != nil {
			return err
		}
	}
	return nil
}

// TXT writes one line per segment.
type TXT struct{}

func (TXT) Ext() string { return ".txt" }

func (TXT) Render(w io.Writer, t *model.Transcript, _ Options) error {
	for _, s := range t.Segments {
		if _, err := fmt.Fprintln(w, strings.TrimSpace(s.Text)); err != nil {
			return err
		}
	}
	return nil
}

// TSV writes start and end in integer milliseconds followed by the text.
type TSV struct{}

func (TSV) Ext() string { return ".tsv" }

func (TSV) Render(w io.Writer, t *model.Transcript, _ Options) error {
	if _, err := io.WriteString(w, "start\tend\ttext\n"); err != nil {
		return err
	}
	for _, s := range t.Segments {
		text := strings.ReplaceAll(strings.TrimSpace(s.Text), "\t", " ")
		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\n", toMillis(s.Start), toMillis(s.End), text); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(sec float64) int64 { return int64(math.RoundToEven(sec * 1000)) }

// JSON writes the whole transcript.
type JSON struct{}

func (JSON) Ext() string { return ".json" }

func (JSON) Render(w io.Writer, t *model.Transcript, _ Options) error {
	return json.NewEncoder(w).Encode(t)
}
