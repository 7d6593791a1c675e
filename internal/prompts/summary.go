package prompts

import (
	"fmt"
	"strings"
)

// VideoMeta is the video context shared by every summary prompt.
type VideoMeta struct {
	Title         string
	Channel       string
	PublishDate   string // YYYY-MM-DD, may be empty
	AutoGenerated bool
}

// Section is one rendered chapter of a transcript. Heading is empty for
// a video without chapters.
type Section struct {
	Heading string
	Text    string
}

// Detail levels accepted by ReducePrompt and VideoSummaryPrompt.
const (
	DetailBrief   = "brief"
	DetailSummary = "summary"
)

const videoHeaderTemplate = `Video title: %s
Channel: %s
Published: %s
`

// autoGeneratedNote warns the model that caption text came from speech
// recognition.
const autoGeneratedNote = `Note: this transcript was generated automatically by speech recognition.
Expect misheard words, missing punctuation, and misspelled names; infer the
intended meaning rather than quoting errors.
`

const videoSummaryTemplate = `You are summarizing a video from its transcript. Each transcript line
starts with its offset in seconds.

%s%s
%s

Write a summary of the video in Markdown. %s`

const chapteredInstruction = `Use one "##" heading per chapter, in
the order given, with the chapter timestamp in the heading, followed by the
key points of that chapter as bullets. Finish with a short "## Takeaways"
section.`

const unchapteredInstruction = `Start with a one-paragraph overview,
then list the key points in the order they appear, then a short
"## Takeaways" section.`

// briefSuffix is appended when the caller asks for a brief summary.
const briefSuffix = `

Be very concise. Produce a summary of roughly 500 characters with just the
essential takeaway points.`

func header(meta VideoMeta) string {
	date := meta.PublishDate
	if date == "" {
		date = "unknown"
	}
	channel := meta.Channel
	if channel == "" {
		channel = "unknown"
	}
	return fmt.Sprintf(videoHeaderTemplate, meta.Title, channel, date)
}

func note(meta VideoMeta) string {
	if meta.AutoGenerated {
		return "\n" + autoGeneratedNote
	}
	return ""
}

// RenderSections lays out sections as the transcript body of a summary
// prompt: each chaptered section under a "Chapter:" line, sections
// separated by blank lines.
func RenderSections(sections []Section) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if s.Heading != "" {
			sb.WriteString("Chapter: ")
			sb.WriteString(s.Heading)
			sb.WriteString("\n")
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// VideoSummaryPrompt returns the single-pass prompt for a transcript that
// fits the prompt budget.
func VideoSummaryPrompt(meta VideoMeta, sections []Section, detail string) string {
	chaptered := len(sections) > 0 && sections[0].Heading != ""
	instruction := unchapteredInstruction
	if chaptered {
		instruction = chapteredInstruction
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(videoSummaryTemplate,
		header(meta), note(meta), RenderSections(sections), instruction))
	if detail == DetailBrief {
		sb.WriteString(briefSuffix)
	}
	return sb.String()
}

// chunkSummaryTemplate is the map-phase prompt. Format verbs:
// 1: video header, 2: chunk index, 3: total chunks, 4: chapter line,
// 5: transcript chunk text.
const chunkSummaryTemplate = `%s
Summarize this section of the video transcript (part %d of %d).%s

Extract the key points, arguments, and noteworthy details. Preserve specific
numbers, names, dates, and claims. Aim for roughly 1/5 the length of the input.

Transcript section:
%s

Summary:`

// chunkFocusSection is appended to the chunk summary prompt when the caller
// specifies a focus topic.
const chunkFocusSection = `

Focus on: %s
Preserve specific details relevant to this focus area. Content unrelated to the
focus can be mentioned briefly but should not dominate the summary.`

// ChunkSummaryPrompt returns the map-phase prompt for one bounded chunk of
// a long transcript. heading names the chapter the chunk belongs to and may
// be empty.
func ChunkSummaryPrompt(meta VideoMeta, heading, chunk, focus string, chunkIndex, totalChunks int) string {
	chapter := ""
	if heading != "" {
		chapter = "\nThis section belongs to the chapter \"" + heading + "\"."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(chunkSummaryTemplate, header(meta), chunkIndex, totalChunks, chapter, chunk))
	if focus != "" {
		sb.WriteString(fmt.Sprintf(chunkFocusSection, focus))
	}
	return sb.String()
}

// reduceSummaryTemplate combines the map-phase summaries. Format verbs:
// 1: video header, 2: auto-generated note, 3: joined section summaries.
const reduceSummaryTemplate = `%s%s
Combine these section summaries into a single coherent Markdown summary of
the full video. Maintain chronological flow, keep chapter headings where the
sections carry them, and eliminate redundancy.

Section summaries:
%s

Combined summary:`

const reduceFocusSection = `

Focus on: %s
Prioritize threads and details relevant to this focus area when assembling
the combined summary.`

const reduceSummarySection = `

Produce a thorough summary of 2000-3000 characters. Cover all major topics
and preserve key details.`

// ReducePrompt returns the reduce-phase prompt. detail selects the output
// length (DetailBrief for ~500 chars, anything else for ~2-3K chars).
func ReducePrompt(meta VideoMeta, summaries []string, focus, detail string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(reduceSummaryTemplate, header(meta), note(meta),
		strings.Join(summaries, "\n\n---\n\n")))
	if focus != "" {
		sb.WriteString(fmt.Sprintf(reduceFocusSection, focus))
	}
	if detail == DetailBrief {
		sb.WriteString(briefSuffix)
	} else {
		sb.WriteString(reduceSummarySection)
	}
	return sb.String()
}
