// Package media fetches a video's metadata, transcript and chapter lines
// using yt-dlp, with an optional SQLite cache and an on-disk transcript
// archive.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/nugget/recap/internal/chapters"
	"github.com/nugget/recap/internal/httpkit"
	"github.com/nugget/recap/internal/timecode"
	"github.com/nugget/recap/internal/transcript"
)

var (
	// ErrNoTranscript is returned when a video has no subtitle track in
	// the requested language, manual or automatic.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrInvalidURL is returned for URLs yt-dlp cannot be pointed at.
	ErrInvalidURL = errors.New("invalid video url")
)

// maxTrackBytes bounds a downloaded subtitle track.
const maxTrackBytes = 32 << 20

// Config holds settings for the media client.
type Config struct {
	// YtDlpPath is the path to the yt-dlp binary. If empty, the binary
	// is located via exec.LookPath.
	YtDlpPath string

	// CookiesFile is an optional Netscape-format cookie file for
	// auth-required content.
	CookiesFile string

	// SubtitleLanguage is the preferred subtitle language code (default "en").
	SubtitleLanguage string

	// TranscriptDir, when set, receives a markdown copy of every fetched
	// transcript with YAML frontmatter.
	TranscriptDir string

	// CacheMaxAge bounds how old a cached video may be (default 24h).
	CacheMaxAge time.Duration
}

// Cache stores fetched videos between requests.
type Cache interface {
	Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
}

// Video is everything recap needs to know about one video.
type Video struct {
	ID            string               `json:"id"`
	Source        string               `json:"source"`
	URL           string               `json:"url"`
	Title         string               `json:"title"`
	Channel       string               `json:"channel,omitempty"`
	UploadDate    string               `json:"upload_date,omitempty"` // YYYY-MM-DD
	Duration      float64              `json:"duration,omitempty"`
	Description   string               `json:"description,omitempty"`
	Chapters      []string             `json:"chapters,omitempty"` // raw chapter lines
	Language      string               `json:"language"`
	AutoGenerated bool                 `json:"auto_generated"`
	Segments      []transcript.Segment `json:"segments"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// CacheKey identifies the video in the cache, e.g. "youtube:dQw4w9WgXcQ".
func (v *Video) CacheKey() string { return v.Source + ":" + v.ID }

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client fetches videos.
type Client struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client
	cache  Cache
	run    runFunc
	now    func() time.Time
}

// New creates a media client. cache may be nil.
func New(cfg Config, cache Cache, logger *slog.Logger) *Client {
	if cfg.SubtitleLanguage == "" {
		cfg.SubtitleLanguage = "en"
	}
	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = 24 * time.Hour
	}
	if cfg.YtDlpPath == "" {
		if p, err := exec.LookPath("yt-dlp"); err == nil {
			cfg.YtDlpPath = p
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "media"),
		http: httpkit.NewClient(
			httpkit.WithTimeout(2*time.Minute),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
		cache: cache,
		run:   execRun,
		now:   time.Now,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOutput := strings.TrimSpace(stderr.String())
		if len(errOutput) > 500 {
			errOutput = errOutput[:500]
		}
		return nil, fmt.Errorf("%w: %s", err, errOutput)
	}
	return stdout.Bytes(), nil
}

// Fetch returns the video at rawURL, from cache when a fresh copy exists.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Video, error) {
	source, id := extractSource(rawURL)
	if source == "unknown" || id == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	key := source + ":" + id

	if v := c.cached(ctx, key); v != nil {
		c.logger.Debug("video cache hit", "key", key)
		return v, nil
	}

	v, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if v.ID == "" {
		v.ID = id
	}
	v.Source = source

	if c.cfg.TranscriptDir != "" {
		if path, err := c.saveTranscript(v); err != nil {
			c.logger.Warn("failed to archive transcript", "url", rawURL, "error", err)
		} else {
			c.logger.Debug("transcript archived", "path", path)
		}
	}

	if c.cache != nil {
		if payload, err := json.Marshal(v); err == nil {
			if err := c.cache.Put(ctx, v.CacheKey(), payload); err != nil {
				c.logger.Warn("video cache write failed", "key", key, "error", err)
			}
		}
	}
	return v, nil
}

func (c *Client) cached(ctx context.Context, key string) *Video {
	if c.cache == nil {
		return nil
	}
	payload, ok, err := c.cache.Get(ctx, key, c.cfg.CacheMaxAge)
	if err != nil {
		c.logger.Warn("video cache read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var v Video
	if err := json.Unmarshal(payload, &v); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil
	}
	return &v
}

// ytdlpJSON is the subset of yt-dlp --dump-single-json output we parse.
type ytdlpJSON struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	Channel           string                  `json:"channel"`
	Uploader          string                  `json:"uploader"`
	Duration          float64                 `json:"duration"`
	UploadDate        string                  `json:"upload_date"`
	Description       string                  `json:"description"`
	WebpageURL        string                  `json:"webpage_url"`
	Subtitles         map[string][]ytdlpTrack `json:"subtitles"`
	AutomaticCaptions map[string][]ytdlpTrack `json:"automatic_captions"`
	Chapters          []ytdlpChapter          `json:"chapters"`
}

type ytdlpTrack struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type ytdlpChapter struct {
	StartTime float64 `json:"start_time"`
	Title     string  `json:"title"`
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Video, error) {
	if c.cfg.YtDlpPath == "" {
		return nil, fmt.Errorf("yt-dlp not found (install yt-dlp or set media.yt_dlp_path)")
	}

	meta, err := c.runYtDlp(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	sel, err := selectTrack(meta.Subtitles, meta.AutomaticCaptions, c.cfg.SubtitleLanguage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	c.logger.Info("selected subtitle track",
		"id", meta.ID,
		"language", sel.language,
		"format", sel.track.Ext,
		"auto_generated", sel.auto,
	)

	segs, err := c.downloadTrack(ctx, sel.track)
	if err != nil {
		return nil, fmt.Errorf("download %s subtitles: %w", sel.language, err)
	}

	description := meta.Description
	if description == "" {
		if d, err := c.ScrapeDescription(ctx, firstNonEmpty(meta.WebpageURL, rawURL)); err != nil {
			c.logger.Warn("description scrape failed", "url", rawURL, "error", err)
		} else {
			description = d
		}
	}

	return &Video{
		ID:            meta.ID,
		URL:           firstNonEmpty(meta.WebpageURL, rawURL),
		Title:         meta.Title,
		Channel:       firstNonEmpty(meta.Channel, meta.Uploader),
		UploadDate:    formatDate(meta.UploadDate),
		Duration:      meta.Duration,
		Description:   description,
		Chapters:      chapterLines(description, meta.Chapters),
		Language:      sel.language,
		AutoGenerated: sel.auto,
		Segments:      segs,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) runYtDlp(ctx context.Context, rawURL string) (*ytdlpJSON, error) {
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
	}
	if c.cfg.CookiesFile != "" {
		args = append(args, "--cookies", c.cfg.CookiesFile)
	}
	args = append(args, rawURL)

	c.logger.Info("running yt-dlp", "url", rawURL)

	out, err := c.run(ctx, c.cfg.YtDlpPath, args...)
	if err != nil {
		return nil, err
	}

	var meta ytdlpJSON
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return &meta, nil
}

func (c *Client) downloadTrack(ctx context.Context, t ytdlpTrack) ([]transcript.Segment, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httpkit.CheckResponse("subtitles", resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var segs []transcript.Segment
	switch t.Ext {
	case "json3":
		segs, err = transcript.ParseJSON3(body)
		if err != nil {
			return nil, err
		}
	default:
		segs = transcript.ParseVTT(string(body))
	}
	if len(segs) == 0 {
		return nil, ErrNoTranscript
	}
	return segs, nil
}

// chapterLines returns the raw chapter lines for a video: the timestamped
// lines of its description, or yt-dlp's chapter list rendered the same
// way when the description has none.
func chapterLines(description string, ytChapters []ytdlpChapter) []string {
	if lines := chapters.Extract(description); len(lines) > 0 {
		return lines
	}
	var lines []string
	for _, ch := range ytChapters {
		title := strings.TrimSpace(ch.Title)
		if title == "" {
			continue
		}
		lines = append(lines, timecode.Format(int(ch.StartTime))+" "+title)
	}
	return lines
}
