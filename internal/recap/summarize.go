package recap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/nugget/recap/internal/chunk"
	"github.com/nugget/recap/internal/llm"
	"github.com/nugget/recap/internal/prompts"
	"github.com/nugget/recap/internal/transcript"
	"github.com/nugget/recap/internal/usage"
)

// maxParallelChunks limits the number of concurrent LLM calls during
// the map phase to avoid saturating a local Ollama instance.
const maxParallelChunks = 4

// ErrNoContent is returned when a transcript has no text to summarize.
var ErrNoContent = errors.New("transcript has no text to summarize")

// SummaryRequest selects what to summarize and how.
type SummaryRequest struct {
	URL string

	// Focus, when non-empty, steers the map-reduce phases toward a topic.
	Focus string

	// Detail is prompts.DetailSummary (default) or prompts.DetailBrief.
	Detail string
}

// Summary is the result of Summarize.
type Summary struct {
	Info    Info   `json:"video"`
	Summary string `json:"summary"`
	Model   string `json:"model"`

	// Chunks is the number of map-phase prompts, or 0 when the
	// transcript fit a single prompt.
	Chunks int `json:"chunks"`
}

// Summarize fetches the video and writes a Markdown summary of it.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (*Summary, error) {
	p, err := s.Load(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return s.SummarizePrepared(ctx, p, req.Focus, req.Detail)
}

// SummarizePrepared summarizes an already prepared video. Transcripts
// whose rendered sections fit the prompt budget are summarized in one
// call; longer ones, and any summary with a focus, go through map-reduce.
func (s *Service) SummarizePrepared(ctx context.Context, p *Prepared, focus, detail string) (*Summary, error) {
	if detail == "" {
		detail = prompts.DetailSummary
	}
	sections := p.Sections()
	body := prompts.RenderSections(sections)

	out := &Summary{Info: p.Info(), Model: s.cfg.SummaryModel}
	ctx = usage.WithVideo(ctx, p.Video.ID)

	if utf8.RuneCountInString(body) <= s.cfg.PromptBudget && focus == "" {
		if p.Alignment.SegmentCount() == 0 {
			return nil, ErrNoContent
		}
		s.logger.Info("summarizing video",
			"id", p.Video.ID,
			"chars", len(body),
			"chaptered", p.Alignment.Chaptered(),
			"detail", detail,
		)
		text, err := s.complete(ctx, opSummarize, s.cfg.SummaryModel, prompts.VideoSummaryPrompt(p.Meta(), sections, detail))
		if err != nil {
			return nil, fmt.Errorf("summarize: %w", err)
		}
		out.Summary = text
		return out, nil
	}

	parts := s.mapParts(p)
	if len(parts) == 0 {
		return nil, ErrNoContent
	}
	text, err := s.mapReduce(ctx, p.Meta(), parts, focus, detail)
	if err != nil {
		return nil, err
	}
	out.Summary = text
	out.Chunks = len(parts)
	return out, nil
}

// part is one map-phase input: a bounded chunk of one chapter.
type part struct {
	heading string
	text    string
}

// mapParts chunks every bucket's rendered lines at the prompt budget.
// Chunks never span chapters.
func (s *Service) mapParts(p *Prepared) []part {
	var parts []part
	for _, b := range p.Alignment.Buckets {
		heading := b.Heading()
		for _, c := range chunk.Split(transcript.RenderLines(b.Lines), s.cfg.PromptBudget) {
			parts = append(parts, part{heading: heading, text: c})
		}
	}
	return parts
}

// mapReduce summarizes each part in parallel (capped at
// maxParallelChunks), then combines the part summaries in a reduce step.
func (s *Service) mapReduce(ctx context.Context, meta prompts.VideoMeta, parts []part, focus, detail string) (string, error) {
	s.logger.Info("starting map-reduce summarization",
		"title", meta.Title,
		"chunks", len(parts),
		"detail", detail,
		"has_focus", focus != "",
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	summaries := make([]string, len(parts))
	sem := make(chan struct{}, maxParallelChunks)
	errs := make(chan error, len(parts))
	var wg sync.WaitGroup

	for i, pt := range parts {
		wg.Add(1)
		go func(idx int, pt part) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}

			prompt := prompts.ChunkSummaryPrompt(meta, pt.heading, pt.text, focus, idx+1, len(parts))
			result, err := s.complete(ctx, opSummarizeChunk, s.cfg.SummaryModel, prompt)
			if err != nil {
				errs <- fmt.Errorf("chunk %d: %w", idx+1, err)
				cancel()
				return
			}
			summaries[idx] = result
		}(i, pt)
	}

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return "", fmt.Errorf("map phase: %w", err)
	}

	s.logger.Debug("running reduce phase", "summaries", len(summaries))

	result, err := s.complete(ctx, opSummarizeReduce, s.cfg.SummaryModel, prompts.ReducePrompt(meta, summaries, focus, detail))
	if err != nil {
		return "", fmt.Errorf("reduce phase: %w", err)
	}
	return result, nil
}

// Operation labels for usage records.
const (
	opSummarize       = "summarize"
	opSummarizeChunk  = "summarize_chunk"
	opSummarizeReduce = "summarize_reduce"
	opCondense        = "condense"
	opAnswer          = "answer"
)

func (s *Service) complete(ctx context.Context, op, model, prompt string) (string, error) {
	return llm.Complete(usage.WithOperation(ctx, op), s.llm, model, "", prompt, s.cfg.Options)
}
