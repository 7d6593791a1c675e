// Package align assigns normalized transcript lines to chapters.
//
// The merge walks the transcript once with a cursor over the chapters in
// declaration order. The cursor only moves forward: when a creator lists
// a chapter whose offset is earlier than its predecessor's, declaration
// order wins and later lines never return to an earlier bucket.
package align

import (
	"errors"
	"strings"

	"github.com/nugget/recap/internal/chapters"
	"github.com/nugget/recap/internal/timecode"
	"github.com/nugget/recap/internal/transcript"
)

// ErrEmptyTranscript is returned when chapters are present but the
// transcript has no segments to assign to them.
var ErrEmptyTranscript = errors.New("transcript is empty but chapters are present")

// Bucket holds the transcript lines assigned to one chapter. For a
// chapterless video there is exactly one bucket with nil Title and Offset.
type Bucket struct {
	Title  *string
	Offset *int
	Lines  []transcript.Line
}

// Segments returns the cleaned text of every assigned line, in order.
func (b Bucket) Segments() []string {
	return transcript.Texts(b.Lines)
}

// Text joins the non-empty segments with single spaces.
func (b Bucket) Text() string {
	parts := make([]string, 0, len(b.Lines))
	for _, l := range b.Lines {
		if l.Text != "" {
			parts = append(parts, l.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Heading renders "MM:SS Title" for a chapter bucket and "" for the
// chapterless bucket.
func (b Bucket) Heading() string {
	if b.Title == nil {
		return ""
	}
	offset := 0
	if b.Offset != nil {
		offset = *b.Offset
	}
	return timecode.Format(offset) + " " + *b.Title
}

// Alignment is the result of Align. Callers branch on Chaptered rather
// than inspecting bucket titles.
type Alignment struct {
	Buckets   []Bucket
	chaptered bool
}

// Chaptered reports whether the buckets correspond to chapter markers.
// When false there is exactly one untitled bucket covering the whole
// transcript.
func (a Alignment) Chaptered() bool { return a.chaptered }

// SegmentCount returns the number of lines across all buckets.
func (a Alignment) SegmentCount() int {
	n := 0
	for _, b := range a.Buckets {
		n += len(b.Lines)
	}
	return n
}

// Align partitions lines into one bucket per marker, in declaration
// order. Each line goes to exactly one bucket. Lines that precede the
// first marker's offset go to the first bucket; chapters that receive no
// lines still get an (empty) bucket.
func Align(lines []transcript.Line, markers []chapters.Marker) (Alignment, error) {
	if len(markers) == 0 {
		all := make([]transcript.Line, len(lines))
		copy(all, lines)
		return Alignment{Buckets: []Bucket{{Lines: all}}}, nil
	}

	if len(lines) == 0 {
		return Alignment{}, ErrEmptyTranscript
	}

	buckets := make([]Bucket, len(markers))
	for i, m := range markers {
		title := m.Title()
		offset := m.Offset()
		buckets[i] = Bucket{Title: &title, Offset: &offset}
	}

	cur := 0
	for _, l := range lines {
		for cur+1 < len(markers) && float64(markers[cur+1].Offset()) <= l.Start {
			cur++
		}
		buckets[cur].Lines = append(buckets[cur].Lines, l)
	}

	return Alignment{Buckets: buckets, chaptered: true}, nil
}
