// Package timecode converts between colon-separated video timestamps
// ("2:05", "1:02:03") and whole seconds.
package timecode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTimeFormat is returned (wrapped) when a timestamp does not
// have the M:S or H:M:S shape, or a minute/second field is out of range.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// Parse converts "M:S" or "H:M:S" into seconds. Every field must be one
// or two ASCII digits. Minutes and seconds must be below 60; hours are
// unbounded within two digits.
func Parse(s string) (int, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	vals := make([]int, len(fields))
	for i, f := range fields {
		n, ok := parseField(f)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		vals[i] = n
	}

	// The last two fields are always minutes and seconds.
	m, sec := vals[len(vals)-2], vals[len(vals)-1]
	if m >= 60 || sec >= 60 {
		return 0, fmt.Errorf("%w: %q (minutes and seconds must be below 60)", ErrInvalidTimeFormat, s)
	}

	total := m*60 + sec
	if len(vals) == 3 {
		total += vals[0] * 3600
	}
	return total, nil
}

// parseField accepts one or two ASCII digits.
func parseField(f string) (int, bool) {
	if len(f) == 0 || len(f) > 2 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Format renders seconds as "H:MM:SS" when at least an hour, otherwise
// "MM:SS". Negative input is clamped to zero.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatSeconds is Format for fractional transcript offsets. The
// fraction is truncated.
func FormatSeconds(f float64) string {
	return Format(int(f))
}
