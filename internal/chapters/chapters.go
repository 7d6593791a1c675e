// Package chapters parses creator-authored chapter markers ("1:30 - Main
// Topic") into validated offsets and titles.
//
// Parsing is all-or-nothing: a chapter list with one malformed entry is
// rejected as a whole, because aligning a transcript against a partial
// chapter set silently misattributes every segment after the gap.
package chapters

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nugget/recap/internal/timecode"
)

// ErrChapterParse is wrapped by every *ParseError.
var ErrChapterParse = errors.New("chapter parse error")

// Marker is a named boundary within a video. Construct with NewMarker or
// Parse; the zero value is a valid marker at 0:00 with an empty title.
type Marker struct {
	offset int
	title  string
}

// NewMarker validates timestamp with [timecode.Parse] and returns the
// marker. The title is trimmed.
func NewMarker(timestamp, title string) (Marker, error) {
	secs, err := timecode.Parse(timestamp)
	if err != nil {
		return Marker{}, err
	}
	return Marker{offset: secs, title: strings.TrimSpace(title)}, nil
}

// Offset returns the marker's start in seconds.
func (m Marker) Offset() int { return m.offset }

// Title returns the marker's title.
func (m Marker) Title() string { return m.title }

// String renders the marker as "MM:SS Title".
func (m Marker) String() string {
	return timecode.Format(m.offset) + " " + m.title
}

// LineError describes one chapter line that failed to parse.
type LineError struct {
	Index int
	Line  string
	Err   error
}

// ParseError aggregates every malformed line of a chapter list.
type ParseError struct {
	Lines []LineError
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrChapterParse.Error())
	sb.WriteString(fmt.Sprintf(": %d malformed line(s)", len(e.Lines)))
	for _, l := range e.Lines {
		sb.WriteString(fmt.Sprintf("; line %d %q: %v", l.Index, l.Line, l.Err))
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrChapterParse.
func (e *ParseError) Unwrap() error { return ErrChapterParse }

// lineRe matches a leading timestamp, an optional separator, and a title.
var lineRe = regexp.MustCompile(`^\s*(\d{1,2}:\d{2}(?::\d{2})?)(?:\s*[-–—|]\s*|\s+)(\S.*?)\s*$`)

// Titles that are only separators, or that begin with the tail of a
// timestamp ("1:30:4 Title"), mean the line was not a clean match.
var (
	separatorTitleRe = regexp.MustCompile(`^[-–—:|\s]+$`)
	timeFragmentRe   = regexp.MustCompile(`^(?::|\d+:)`)
)

var (
	errNoMatch  = errors.New("expected <timestamp> [separator] <title>")
	errBadTitle = errors.New("title is empty or a timestamp fragment")
)

// Parse converts raw chapter lines into markers in the same order. If any
// line is malformed, Parse returns a *ParseError listing all of them and
// no markers.
func Parse(raw []string) ([]Marker, error) {
	markers := make([]Marker, 0, len(raw))
	var bad []LineError

	for i, line := range raw {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			bad = append(bad, LineError{Index: i, Line: line, Err: errNoMatch})
			continue
		}
		if separatorTitleRe.MatchString(m[2]) || timeFragmentRe.MatchString(m[2]) {
			bad = append(bad, LineError{Index: i, Line: line, Err: errBadTitle})
			continue
		}
		marker, err := NewMarker(m[1], m[2])
		if err != nil {
			bad = append(bad, LineError{Index: i, Line: line, Err: err})
			continue
		}
		markers = append(markers, marker)
	}

	if len(bad) > 0 {
		return nil, &ParseError{Lines: bad}
	}
	return markers, nil
}

// descriptionLineRe finds description lines that begin with a timestamp.
var descriptionLineRe = regexp.MustCompile(`^\s*\d{1,2}:\d{2}(?::\d{2})?\s`)

// Extract scans a video description and returns every line that starts
// with a timestamp followed by whitespace, trimmed, in order. Lines that
// do not start with a timestamp are not chapter lines and are ignored.
func Extract(description string) []string {
	var out []string
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimRight(line, "\r")
		if !descriptionLineRe.MatchString(line) {
			continue
		}
		out = append(out, strings.TrimSpace(line))
	}
	return out
}
