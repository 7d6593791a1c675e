package transcript

import (
	"regexp"
	"strings"
)

// vttHeaderRe matches the WEBVTT file header and optional metadata lines.
var vttHeaderRe = regexp.MustCompile(`^WEBVTT\b.*$`)

// timingLineRe matches VTT timing cues like "00:00:01.234 --> 00:00:03.456"
// with optional position/alignment metadata after the timestamps. The
// hour field is optional in WebVTT.
var timingLineRe = regexp.MustCompile(`^((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})\s*-->\s*((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})`)

// htmlTagRe matches tags commonly found in VTT files (<font>, <c>, <i>,
// and the inline <00:00:01.000> word timings of auto-generated captions).
var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// cueIDRe matches numeric cue identifiers.
var cueIDRe = regexp.MustCompile(`^\d+$`)

// metadataLineRe matches VTT metadata lines like "Kind:" and "Language:".
var metadataLineRe = regexp.MustCompile(`^(Kind|Language|NOTE|STYLE|REGION)\b`)

// ParseVTT converts WebVTT caption content into timed segments, one per
// cue that contributes new text. Auto-generated captions repeat the
// previous line at the top of each rolling cue; a line identical to the
// last emitted line is skipped so every spoken line appears once.
func ParseVTT(raw string) []Segment {
	if raw == "" {
		return nil
	}

	lines := strings.Split(raw, "\n")
	var segs []Segment
	var cueText []string
	cueStart := -1.0
	inCue := false
	prevLine := ""

	flush := func() {
		if cueStart >= 0 && len(cueText) > 0 {
			segs = append(segs, Segment{Start: cueStart, Text: strings.Join(cueText, " ")})
		}
		cueText = nil
	}

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")

		if m := timingLineRe.FindStringSubmatch(line); m != nil {
			flush()
			cueStart = float64(parseTimestampMs(m[1])) / 1000
			inCue = true
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// A blank line ends the cue payload.
			inCue = false
			continue
		}

		if !inCue {
			// Outside a cue payload: headers, metadata, cue IDs.
			if vttHeaderRe.MatchString(line) || metadataLineRe.MatchString(line) {
				continue
			}
			if cueIDRe.MatchString(trimmed) && nextIsTiming(lines, i) {
				continue
			}
			if cueStart < 0 {
				continue
			}
		}

		text := strings.TrimSpace(htmlTagRe.ReplaceAllString(trimmed, ""))
		if text == "" || text == prevLine {
			continue
		}
		cueText = append(cueText, text)
		prevLine = text
	}
	flush()

	return segs
}

// nextIsTiming reports whether the line after index i is a timing line.
func nextIsTiming(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	return timingLineRe.MatchString(strings.TrimRight(lines[i+1], "\r"))
}

// parseTimestampMs parses "HH:MM:SS.mmm" or "MM:SS.mmm" into milliseconds.
// Malformed input yields 0; callers pre-validate with timingLineRe.
func parseTimestampMs(ts string) int {
	ts = strings.TrimSpace(ts)
	dot := strings.LastIndexByte(ts, '.')
	if dot < 0 {
		return 0
	}
	ms := atoi(ts[dot+1:])

	total := 0
	for _, f := range strings.Split(ts[:dot], ":") {
		total = total*60 + atoi(f)
	}
	return total*1000 + ms
}

// atoi converts a numeric string to int without error handling
// (the regex pre-validates format).
func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
