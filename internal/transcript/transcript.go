// Package transcript holds time-coded transcript segments and the
// normalization applied before they are aligned to chapters. Caption
// parsers for the formats yt-dlp writes (WebVTT and YouTube json3) live
// alongside and produce the same Segment type.
package transcript

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one timed caption as fetched. Start is seconds from the
// beginning of the video. Segments of a transcript are ordered by Start,
// which may repeat.
type Segment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// UnmarshalJSON accepts start as either a JSON number or a numeric
// string, since transcript services disagree on the encoding.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start json.RawMessage `json:"start"`
		Text  string          `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Text = raw.Text
	s.Start = 0

	if len(raw.Start) == 0 || string(raw.Start) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw.Start, &f); err == nil {
		s.Start = f
		return nil
	}

	var str string
	if err := json.Unmarshal(raw.Start, &str); err != nil {
		return fmt.Errorf("segment start: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("segment start %q: %w", str, err)
	}
	s.Start = f
	return nil
}

// Line is a normalized segment: same timing, cleaned text.
type Line struct {
	Start float64
	Text  string
}

// String renders the line as a "timestamp - text" token, with the
// timestamp in whole seconds ("12s - hello").
func (l Line) String() string {
	return fmt.Sprintf("%.0fs - %s", l.Start, l.Text)
}

// annotationRe matches bracketed non-speech annotations like [Music].
var annotationRe = regexp.MustCompile(`\[[^\]]*\]`)

// whitespaceRe matches any run of whitespace, newlines included.
var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText removes bracketed annotations, collapses whitespace runs to
// a single space, and trims the result.
func CleanText(s string) string {
	s = annotationRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Normalize cleans every segment. The output has exactly one Line per
// input Segment, in input order; segments that clean to nothing yield an
// empty Text rather than being dropped.
func Normalize(segs []Segment) []Line {
	lines := make([]Line, len(segs))
	for i, s := range segs {
		lines[i] = Line{Start: s.Start, Text: CleanText(s.Text)}
	}
	return lines
}

// RenderLines renders each non-empty line as a "timestamp - text" token.
func RenderLines(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Text == "" {
			continue
		}
		out = append(out, l.String())
	}
	return out
}

// Texts returns the cleaned text of each line, in order, including
// empty ones.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// PlainText joins the non-empty cleaned texts of segs with single spaces.
func PlainText(segs []Segment) string {
	var parts []string
	for _, l := range Normalize(segs) {
		if l.Text != "" {
			parts = append(parts, l.Text)
		}
	}
	return strings.Join(parts, " ")
}
