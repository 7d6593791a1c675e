// Package recap runs the video pipeline: fetch a transcript, align it to
// the video's chapters, and either summarize it with an LLM or index it
// for question answering.
package recap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/recap/internal/align"
	"github.com/nugget/recap/internal/chapters"
	"github.com/nugget/recap/internal/embeddings"
	"github.com/nugget/recap/internal/llm"
	"github.com/nugget/recap/internal/media"
	"github.com/nugget/recap/internal/prompts"
	"github.com/nugget/recap/internal/retrieval"
	"github.com/nugget/recap/internal/timecode"
	"github.com/nugget/recap/internal/transcript"
)

// Config controls model selection and text budgets.
type Config struct {
	// SummaryModel writes summaries.
	SummaryModel string

	// QAModel condenses follow-up questions and writes answers.
	// Default: SummaryModel.
	QAModel string

	// PromptBudget is the largest transcript body, in characters, sent in a
	// single prompt. Longer transcripts are summarized map-reduce style
	// in chunks of at most this size. Default: 50000.
	PromptBudget int

	// EmbedBudget is the chunk size for retrieval documents.
	// Default: 500.
	EmbedBudget int

	// Search tunes retrieval for question answering.
	Search retrieval.SearchOptions

	// Options are the sampling parameters for every LLM call.
	Options llm.Options
}

// DefaultConfig returns the defaults used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		PromptBudget: 50000,
		EmbedBudget:  500,
		Search:       retrieval.SearchOptions{K: 10, FetchK: 20, Lambda: 0.5},
		Options:      llm.DefaultOptions,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.QAModel == "" {
		c.QAModel = c.SummaryModel
	}
	if c.PromptBudget <= 0 {
		c.PromptBudget = d.PromptBudget
	}
	if c.EmbedBudget <= 0 {
		c.EmbedBudget = d.EmbedBudget
	}
	if c.Search.K <= 0 {
		c.Search.K = d.Search.K
	}
	if c.Search.FetchK <= 0 {
		c.Search.FetchK = d.Search.FetchK
	}
	if c.Search.Lambda <= 0 {
		c.Search.Lambda = d.Search.Lambda
	}
	if c.Options.MaxTokens <= 0 {
		c.Options.MaxTokens = d.Options.MaxTokens
	}
}

// Fetcher loads a video by URL. *media.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*media.Video, error)
}

// Service ties the fetcher, chat model, and embedder together.
type Service struct {
	cfg      Config
	fetcher  Fetcher
	llm      llm.Client
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// New creates a Service. embedder may be nil when question answering is
// not used.
func New(cfg Config, fetcher Fetcher, llmClient llm.Client, embedder embeddings.Embedder, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		llm:      llmClient,
		embedder: embedder,
		logger:   logger.With("component", "recap"),
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Prepared is a fetched video with its transcript normalized and aligned
// to its chapters.
type Prepared struct {
	Video     *media.Video
	Markers   []chapters.Marker
	Alignment align.Alignment
}

// Prepare normalizes the transcript, parses the chapter lines and aligns
// the two. A malformed chapter line fails the whole video.
func Prepare(v *media.Video) (*Prepared, error) {
	markers, err := chapters.Parse(v.Chapters)
	if err != nil {
		return nil, err
	}
	a, err := align.Align(transcript.Normalize(v.Segments), markers)
	if err != nil {
		return nil, err
	}
	return &Prepared{Video: v, Markers: markers, Alignment: a}, nil
}

// Load fetches and prepares the video at rawURL.
func (s *Service) Load(ctx context.Context, rawURL string) (*Prepared, error) {
	v, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	p, err := Prepare(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	s.logger.Debug("video prepared",
		"id", v.ID,
		"segments", p.Alignment.SegmentCount(),
		"chapters", len(p.Markers),
	)
	return p, nil
}

// Meta returns the prompt header fields for the video.
func (p *Prepared) Meta() prompts.VideoMeta {
	return prompts.VideoMeta{
		Title:         p.Video.Title,
		Channel:       p.Video.Channel,
		PublishDate:   p.Video.UploadDate,
		AutoGenerated: p.Video.AutoGenerated,
	}
}

// Sections renders each bucket as a prompt section: its heading and its
// "Ns - text" lines joined by spaces.
func (p *Prepared) Sections() []prompts.Section {
	out := make([]prompts.Section, len(p.Alignment.Buckets))
	for i, b := range p.Alignment.Buckets {
		out[i] = prompts.Section{
			Heading: b.Heading(),
			Text:    strings.Join(transcript.RenderLines(b.Lines), " "),
		}
	}
	return out
}

// ChapterInfo describes one aligned chapter.
type ChapterInfo struct {
	Timestamp string `json:"timestamp"`
	Offset    int    `json:"offset"`
	Title     string `json:"title"`
	Segments  int    `json:"segments"`
	Chars     int    `json:"chars"`
}

// Info summarizes a prepared video without calling a model.
type Info struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Title         string        `json:"title"`
	Channel       string        `json:"channel,omitempty"`
	PublishDate   string        `json:"publish_date,omitempty"`
	Duration      float64       `json:"duration,omitempty"`
	Language      string        `json:"language"`
	AutoGenerated bool          `json:"auto_generated"`
	Chaptered     bool          `json:"chaptered"`
	Segments      int           `json:"segments"`
	Chars         int           `json:"chars"`
	Chapters      []ChapterInfo `json:"chapters"`
}

// Info reports the video's metadata and how its transcript was split
// across chapters.
func (p *Prepared) Info() Info {
	v := p.Video
	info := Info{
		ID:            v.ID,
		URL:           v.URL,
		Title:         v.Title,
		Channel:       v.Channel,
		PublishDate:   v.UploadDate,
		Duration:      v.Duration,
		Language:      v.Language,
		AutoGenerated: v.AutoGenerated,
		Chaptered:     p.Alignment.Chaptered(),
		Segments:      p.Alignment.SegmentCount(),
		Chapters:      []ChapterInfo{},
	}
	for i, b := range p.Alignment.Buckets {
		chars := len(b.Text())
		info.Chars += chars
		if !p.Alignment.Chaptered() {
			continue
		}
		m := p.Markers[i]
		info.Chapters = append(info.Chapters, ChapterInfo{
			Timestamp: timecode.Format(m.Offset()),
			Offset:    m.Offset(),
			Title:     m.Title(),
			Segments:  len(b.Lines),
			Chars:     chars,
		})
	}
	return info
}

// VideoInfo fetches and aligns the video without summarizing it.
func (s *Service) VideoInfo(ctx context.Context, rawURL string) (Info, error) {
	p, err := s.Load(ctx, rawURL)
	if err != nil {
		return Info{}, err
	}
	return p.Info(), nil
}
