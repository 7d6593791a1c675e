package timecode

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"0:00", 0},
		{"2:05", 125},
		{"02:05", 125},
		{"1:02:03", 3723},
		{"01:02:03", 3723},
		{"10:00", 600},
		{"59:59", 3599},
		{"99:59:59", 99*3600 + 59*60 + 59},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"125",
		"1:2:3:4",
		"1:",
		":30",
		"1::30",
		"123:00",
		"1:60",
		"1:75:00",
		"1:00:60",
		"a:bc",
		" 1:00",
		"1:0x",
		"-1:00",
	}

	for _, in := range inputs {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q) should fail", in)
			continue
		}
		if !errors.Is(err, ErrInvalidTimeFormat) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidTimeFormat", in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{125, "02:05"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3723, "1:02:03"},
		{36000, "10:00:00"},
		{-4, "00:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 59, 60, 61, 3599, 3600, 3661, 86399} {
		got, err := Parse(Format(secs))
		if err != nil {
			t.Fatalf("Parse(Format(%d)) error: %v", secs, err)
		}
		if got != secs {
			t.Errorf("Parse(Format(%d)) = %d", secs, got)
		}
	}
}

func TestFormatSeconds_Truncates(t *testing.T) {
	if got := FormatSeconds(125.9); got != "02:05" {
		t.Errorf("FormatSeconds(125.9) = %q, want %q", got, "02:05")
	}
}
