package prompts

import (
	"strings"
	"testing"
)

var testMeta = VideoMeta{
	Title:       "Go Concurrency Patterns",
	Channel:     "GopherCon",
	PublishDate: "2024-05-01",
}

func TestVideoSummaryPrompt(t *testing.T) {
	tests := []struct {
		name        string
		meta        VideoMeta
		sections    []Section
		detail      string
		wantContain []string
		wantAbsent  []string
	}{
		{
			name: "chaptered",
			meta: testMeta,
			sections: []Section{
				{Heading: "00:00 Intro", Text: "0s - hello"},
				{Heading: "01:30 Channels", Text: "90s - channels are typed"},
			},
			detail: DetailSummary,
			wantContain: []string{
				"Video title: Go Concurrency Patterns",
				"Channel: GopherCon",
				"Published: 2024-05-01",
				"Chapter: 00:00 Intro\n0s - hello\n\nChapter: 01:30 Channels\n90s - channels are typed",
				`one "##" heading per chapter`,
			},
			wantAbsent: []string{"speech recognition", "roughly 500 characters"},
		},
		{
			name:        "no chapters",
			meta:        testMeta,
			sections:    []Section{{Text: "0s - just talking"}},
			wantContain: []string{"0s - just talking", "one-paragraph overview"},
			wantAbsent:  []string{"Chapter:", "heading per chapter"},
		},
		{
			name:        "auto-generated and brief",
			meta:        VideoMeta{Title: "T", AutoGenerated: true},
			sections:    []Section{{Text: "x"}},
			detail:      DetailBrief,
			wantContain: []string{"speech recognition", "roughly 500 characters", "Channel: unknown", "Published: unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VideoSummaryPrompt(tt.meta, tt.sections, tt.detail)
			for _, want := range tt.wantContain {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q\n%s", want, got)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("prompt should not contain %q", absent)
				}
			}
		})
	}
}

func TestChunkSummaryPrompt(t *testing.T) {
	got := ChunkSummaryPrompt(testMeta, "01:30 Channels", "some transcript text", "", 2, 5)
	for _, want := range []string{"part 2 of 5", "some transcript text", `chapter "01:30 Channels"`, "Go Concurrency Patterns"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(got, "Focus on:") {
		t.Error("prompt without focus should not contain a focus section")
	}

	got = ChunkSummaryPrompt(testMeta, "", "text", "benchmark methodology", 1, 1)
	if !strings.Contains(got, "Focus on: benchmark methodology") {
		t.Error("prompt missing focus section")
	}
	if strings.Contains(got, "belongs to the chapter") {
		t.Error("chapterless chunk should not name a chapter")
	}
}

func TestReducePrompt(t *testing.T) {
	tests := []struct {
		name        string
		focus       string
		detail      string
		wantContain []string
		wantAbsent  []string
	}{
		{
			name:        "default detail",
			detail:      DetailSummary,
			wantContain: []string{"first summary\n\n---\n\nsecond summary", "2000-3000 characters"},
			wantAbsent:  []string{"Focus on:", "roughly 500"},
		},
		{
			name:        "brief with focus",
			focus:       "error handling",
			detail:      DetailBrief,
			wantContain: []string{"Focus on: error handling", "roughly 500 characters"},
			wantAbsent:  []string{"2000-3000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReducePrompt(testMeta, []string{"first summary", "second summary"}, tt.focus, tt.detail)
			for _, want := range tt.wantContain {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q", want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("prompt should not contain %q", absent)
				}
			}
		})
	}
}

func TestRenderSections_Empty(t *testing.T) {
	if got := RenderSections(nil); got != "" {
		t.Errorf("RenderSections(nil) = %q", got)
	}
}
