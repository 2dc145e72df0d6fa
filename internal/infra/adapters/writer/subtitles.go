package writer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"speech-to-text/internal/domain/model"
)

// Cue is one subtitle block with formatted timestamps.
type Cue struct {
	Start string
	End   string
	Text  string
}

const (
	unlimited    = 1000
	longPauseSec = 3.0
)

// Cues lays out subtitle blocks. Without word timings every segment is one
// cue. With word timings, words are packed into lines of at most
// MaxLineWidth characters and MaxWordsPerLine words. Segment boundaries are
// kept unless both MaxLineWidth and MaxLineCount are set, in which case a
// cue ends after MaxLineCount lines or at a pause longer than three seconds.
func Cues(t *model.Transcript, o Options, ts func(float64) string) []Cue {
	if len(t.Segments) == 0 || len(t.Segments[0].Words) == 0 {
		cues := make([]Cue, 0, len(t.Segments))
		for _, s := range t.Segments {
			cues = append(cues, Cue{
				Start: ts(s.Start),
				End:   ts(s.End),
				Text:  strings.ReplaceAll(strings.TrimSpace(s.Text), "-->", "->"),
			})
		}
		return cues
	}

	var cues []Cue
	for _, sub := range packWords(t.Segments, o) {
		start, end := ts(sub[0].Start), ts(sub[len(sub)-1].End)
		text := joinWords(sub)
		if !o.HighlightWords {
			cues = append(cues, Cue{Start: start, End: end, Text: text})
			continue
		}
		last := start
		for i, w := range sub {
			ws, we := ts(w.Start), ts(w.End)
			if last != ws {
				cues = append(cues, Cue{Start: last, End: ws, Text: text})
			}
			cues = append(cues, Cue{Start: ws, End: we, Text: highlight(sub, i)})
			last = we
		}
	}
	return cues
}

func packWords(segments []model.Segment, o Options) [][]model.Word {
	preserveSegments := o.MaxLineCount == 0 || o.MaxLineWidth == 0
	maxWidth := o.MaxLineWidth
	if maxWidth == 0 {
		maxWidth = unlimited
	}
	maxWords := o.MaxWordsPerLine
	if maxWords == 0 {
		maxWords = unlimited
	}

	var (
		subs      [][]model.Word
		subtitle  []model.Word
		lineLen   int
		lineCount = 1
		last      = segments[0].Start
	)
	if len(segments[0].Words) > 0 {
		last = segments[0].Words[0].Start
	}

	for _, seg := range segments {
		for chunk := 0; chunk < len(seg.Words); chunk += maxWords {
			end := chunk + maxWords
			if end > len(seg.Words) {
				end = len(seg.Words)
			}
			for i, w := range seg.Words[chunk:end] {
				longPause := !preserveSegments && w.Start-last > longPauseSec
				hasRoom := lineLen+utf8.RuneCountInString(w.Word) <= maxWidth
				segBreak := i == 0 && len(subtitle) > 0 && preserveSegments

				if lineLen > 0 && hasRoom && !longPause && !segBreak {
					lineLen += utf8.RuneCountInString(w.Word)
				} else {
					w.Word = strings.TrimSpace(w.Word)
					switch {
					case (len(subtitle) > 0 && o.MaxLineCount > 0 && (longPause || lineCount >= o.MaxLineCount)) || segBreak:
						subs = append(subs, subtitle)
						subtitle = nil
						lineCount = 1
					case lineLen > 0:
						lineCount++
						w.Word = "\n" + w.Word
					}
					lineLen = utf8.RuneCountInString(strings.TrimSpace(w.Word))
				}
				subtitle = append(subtitle, w)
				last = w.Start
			}
		}
	}
	if len(subtitle) > 0 {
		subs = append(subs, subtitle)
	}
	return subs
}

func joinWords(words []model.Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w.Word)
	}
	return b.String()
}

// highlight underlines word i, keeping its leading whitespace outside the tag.
func highlight(words []model.Word, i int) string {
	var b strings.Builder
	for j, w := range words {
		if j != i {
			b.WriteString(w.Word)
			continue
		}
		trimmed := strings.TrimLeftFunc(w.Word, unicode.IsSpace)
		b.WriteString(w.Word[:len(w.Word)-len(trimmed)])
		b.WriteString("<u>")
		b.WriteString(trimmed)
		b.WriteString("</u>")
	}
	return b.String()
}
