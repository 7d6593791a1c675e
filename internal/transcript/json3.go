package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// json3Doc is the subset of YouTube's json3 timed-text format we read.
type json3Doc struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 converts YouTube json3 captions into segments. Events that
// carry no text (window definitions, bare newlines) are skipped.
func ParseJSON3(data []byte) ([]Segment, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json3: %w", err)
	}

	segs := make([]Segment, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var b strings.Builder
		for _, s := range ev.Segs {
			b.WriteString(s.UTF8)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		segs = append(segs, Segment{
			Start: float64(ev.StartMs) / 1000,
			Text:  text,
		})
	}
	return segs, nil
}
