package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nugget/recap/internal/transcript"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (f *fakeCache) Get(_ context.Context, key string, _ time.Duration) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.data[key]
	return p, ok, nil
}

func (f *fakeCache) Put(_ context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = payload
	f.puts++
	return nil
}

const json3Body = `{"events":[
	{"tStartMs":0,"dDurationMs":1000,"aAppend":1},
	{"tStartMs":0,"dDurationMs":4000,"segs":[{"utf8":"hello"},{"utf8":" there"}]},
	{"tStartMs":90500,"dDurationMs":3000,"segs":[{"utf8":"[Music] main part"}]},
	{"tStartMs":91000,"segs":[{"utf8":"\n"}]}
]}`

const watchPage = `<!DOCTYPE html><html><head><title>x</title></head><body>
<script>var other = {"foo": 1};</script>
<script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"abc123","shortDescription":"Scraped \"desc\"\n0:00 Opening\n2:10 Ending","isCrawlable":true}};</script>
</body></html>`

// newTestServer serves a json3 track, a vtt track and a watch page.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subs.json3":
			fmt.Fprint(w, json3Body)
		case "/subs.vtt":
			fmt.Fprint(w, "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nfrom vtt\n")
		case "/watch":
			fmt.Fprint(w, watchPage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeYtDlp returns a runFunc that prints meta as yt-dlp JSON and counts calls.
func fakeYtDlp(t *testing.T, meta map[string]any, calls *int) runFunc {
	t.Helper()
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls++
		if name != "yt-dlp" {
			t.Errorf("ran %q, want yt-dlp", name)
		}
		if args[len(args)-1] == "" {
			t.Error("yt-dlp called without url")
		}
		return json.Marshal(meta)
	}
}

func newTestClient(cfg Config, cache Cache, run runFunc) *Client {
	cfg.YtDlpPath = "yt-dlp"
	c := New(cfg, cache, testLogger())
	c.run = run
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetch(t *testing.T) {
	srv := newTestServer(t)
	meta := map[string]any{
		"id":          "abc123",
		"title":       "A Video",
		"uploader":    "Some Uploader",
		"duration":    330,
		"upload_date": "20260222",
		"description": "Timestamps\n0:00 Intro\n1:30 Main part\nthanks",
		"webpage_url": "https://www.youtube.com/watch?v=abc123",
		"subtitles": map[string]any{
			"en": []map[string]string{
				{"ext": "vtt", "url": srv.URL + "/subs.vtt"},
				{"ext": "json3", "url": srv.URL + "/subs.json3"},
			},
		},
	}

	var calls int
	cache := newFakeCache()
	c := newTestClient(Config{}, cache, fakeYtDlp(t, meta, &calls))

	v, err := c.Fetch(context.Background(), "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if v.ID != "abc123" || v.Source != "youtube" {
		t.Errorf("id/source = %q/%q", v.ID, v.Source)
	}
	if v.Title != "A Video" || v.Channel != "Some Uploader" {
		t.Errorf("title/channel = %q/%q", v.Title, v.Channel)
	}
	if v.UploadDate != "2026-02-22" {
		t.Errorf("UploadDate = %q", v.UploadDate)
	}
	if v.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("URL = %q", v.URL)
	}
	if v.Language != "en" || v.AutoGenerated {
		t.Errorf("language/auto = %q/%v", v.Language, v.AutoGenerated)
	}
	wantChapters := []string{"0:00 Intro", "1:30 Main part"}
	if fmt.Sprint(v.Chapters) != fmt.Sprint(wantChapters) {
		t.Errorf("Chapters = %q, want %q", v.Chapters, wantChapters)
	}

	// json3 preferred over vtt.
	if len(v.Segments) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(v.Segments), v.Segments)
	}
	if v.Segments[0].Text != "hello there" || v.Segments[1].Start != 90.5 {
		t.Errorf("segments = %+v", v.Segments)
	}

	if cache.puts != 1 {
		t.Errorf("cache puts = %d, want 1", cache.puts)
	}
	if _, ok := cache.data["youtube:abc123"]; !ok {
		t.Errorf("cache keys = %v, want youtube:abc123", cache.data)
	}
}

func TestFetch_CacheHit(t *testing.T) {
	cached := Video{
		ID:       "abc123",
		Source:   "youtube",
		Title:    "Cached",
		Language: "en",
		Segments: []transcript.Segment{{Start: 0, Text: "from cache"}},
	}
	payload, _ := json.Marshal(cached)
	cache := newFakeCache()
	cache.data["youtube:abc123"] = payload

	var calls int
	c := newTestClient(Config{}, cache, fakeYtDlp(t, nil, &calls))

	v, err := c.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if calls != 0 {
		t.Errorf("yt-dlp ran %d times on a cache hit", calls)
	}
	if v.Title != "Cached" || v.Segments[0].Text != "from cache" {
		t.Errorf("got %+v", v)
	}
}

func TestFetch_CorruptCacheEntryRefetches(t *testing.T) {
	srv := newTestServer(t)
	cache := newFakeCache()
	cache.data["youtube:abc123"] = []byte("{not json")

	meta := map[string]any{
		"id":          "abc123",
		"title":       "Fresh",
		"description": "no chapters",
		"subtitles": map[string]any{
			"en": []map[string]string{{"ext": "vtt", "url": srv.URL + "/subs.vtt"}},
		},
	}
	var calls int
	c := newTestClient(Config{}, cache, fakeYtDlp(t, meta, &calls))

	v, err := c.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if calls != 1 || v.Title != "Fresh" {
		t.Errorf("calls = %d, title = %q", calls, v.Title)
	}
	if len(v.Segments) != 1 || v.Segments[0].Text != "from vtt" {
		t.Errorf("segments = %+v", v.Segments)
	}
}

func TestFetch_AutoCaptionsAndScrapedDescription(t *testing.T) {
	srv := newTestServer(t)
	meta := map[string]any{
		"id":          "abc123",
		"title":       "Auto",
		"channel":     "Chan",
		"webpage_url": srv.URL + "/watch",
		"automatic_captions": map[string]any{
			"en-orig": []map[string]string{{"ext": "json3", "url": srv.URL + "/subs.json3"}},
		},
	}
	var calls int
	c := newTestClient(Config{}, nil, fakeYtDlp(t, meta, &calls))

	v, err := c.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !v.AutoGenerated || v.Language != "en-orig" {
		t.Errorf("auto/language = %v/%q", v.AutoGenerated, v.Language)
	}
	if !strings.HasPrefix(v.Description, `Scraped "desc"`) {
		t.Errorf("Description = %q", v.Description)
	}
	want := []string{"0:00 Opening", "2:10 Ending"}
	if fmt.Sprint(v.Chapters) != fmt.Sprint(want) {
		t.Errorf("Chapters = %q, want %q", v.Chapters, want)
	}
}

func TestFetch_Errors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("invalid url", func(t *testing.T) {
		var calls int
		c := newTestClient(Config{}, nil, fakeYtDlp(t, nil, &calls))
		_, err := c.Fetch(context.Background(), "not a url")
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("error = %v, want ErrInvalidURL", err)
		}
		if calls != 0 {
			t.Error("yt-dlp ran for an invalid url")
		}
	})

	t.Run("no transcript in language", func(t *testing.T) {
		meta := map[string]any{
			"id": "abc123",
			"subtitles": map[string]any{
				"de": []map[string]string{{"ext": "vtt", "url": srv.URL + "/subs.vtt"}},
			},
		}
		var calls int
		c := newTestClient(Config{}, nil, fakeYtDlp(t, meta, &calls))
		_, err := c.Fetch(context.Background(), "https://youtu.be/abc123")
		if !errors.Is(err, ErrNoTranscript) {
			t.Errorf("error = %v, want ErrNoTranscript", err)
		}
	})

	t.Run("track download fails", func(t *testing.T) {
		meta := map[string]any{
			"id": "abc123",
			"subtitles": map[string]any{
				"en": []map[string]string{{"ext": "vtt", "url": srv.URL + "/missing.vtt"}},
			},
		}
		var calls int
		c := newTestClient(Config{}, nil, fakeYtDlp(t, meta, &calls))
		_, err := c.Fetch(context.Background(), "https://youtu.be/abc123")
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("error = %v, want 404", err)
		}
	})

	t.Run("yt-dlp fails", func(t *testing.T) {
		c := newTestClient(Config{}, nil, func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exit status 1: ERROR: Video unavailable")
		})
		_, err := c.Fetch(context.Background(), "https://youtu.be/abc123")
		if err == nil || !strings.Contains(err.Error(), "Video unavailable") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestSelectTrack(t *testing.T) {
	track := func(ext string) []ytdlpTrack { return []ytdlpTrack{{Ext: ext, URL: "u-" + ext}} }

	tests := []struct {
		name     string
		manual   map[string][]ytdlpTrack
		auto     map[string][]ytdlpTrack
		wantLang string
		wantAuto bool
		wantExt  string
		wantErr  bool
	}{
		{
			name:     "manual exact",
			manual:   map[string][]ytdlpTrack{"en": track("vtt"), "en-GB": track("json3")},
			auto:     map[string][]ytdlpTrack{"en": track("json3")},
			wantLang: "en",
			wantExt:  "vtt",
		},
		{
			name:     "manual regional variant beats auto",
			manual:   map[string][]ytdlpTrack{"en-US": track("vtt"), "en-GB": track("vtt")},
			auto:     map[string][]ytdlpTrack{"en": track("json3")},
			wantLang: "en-GB",
			wantExt:  "vtt",
		},
		{
			name:     "auto fallback",
			manual:   map[string][]ytdlpTrack{"fr": track("vtt")},
			auto:     map[string][]ytdlpTrack{"en": append(track("vtt"), track("json3")...)},
			wantLang: "en",
			wantAuto: true,
			wantExt:  "json3",
		},
		{
			name:     "unsupported format skipped",
			manual:   map[string][]ytdlpTrack{"en": track("srv3")},
			auto:     map[string][]ytdlpTrack{"en": track("vtt")},
			wantLang: "en",
			wantAuto: true,
			wantExt:  "vtt",
		},
		{
			name:    "nothing matches",
			manual:  map[string][]ytdlpTrack{"fr": track("vtt")},
			auto:    map[string][]ytdlpTrack{"english": track("vtt")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectTrack(tt.manual, tt.auto, "en")
			if tt.wantErr {
				if !errors.Is(err, ErrNoTranscript) {
					t.Errorf("error = %v, want ErrNoTranscript", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectTrack error: %v", err)
			}
			if got.language != tt.wantLang || got.auto != tt.wantAuto || got.track.Ext != tt.wantExt {
				t.Errorf("got %s auto=%v ext=%s, want %s auto=%v ext=%s",
					got.language, got.auto, got.track.Ext, tt.wantLang, tt.wantAuto, tt.wantExt)
			}
		})
	}
}

func TestChapterLines(t *testing.T) {
	yt := []ytdlpChapter{{StartTime: 0, Title: "Start"}, {StartTime: 75.9, Title: " Later "}, {StartTime: 90}}

	if got := chapterLines("0:00 From description", yt); fmt.Sprint(got) != "[0:00 From description]" {
		t.Errorf("description chapters = %q", got)
	}

	got := chapterLines("no timestamps here", yt)
	want := []string{"00:00 Start", "01:15 Later"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("yt-dlp chapters = %q, want %q", got, want)
	}

	if got := chapterLines("", nil); len(got) != 0 {
		t.Errorf("chapterLines(empty) = %q", got)
	}
}

func TestExtractDescription(t *testing.T) {
	desc, ok, err := extractDescription(strings.NewReader(watchPage))
	if err != nil || !ok {
		t.Fatalf("extractDescription = %v, %v", ok, err)
	}
	if desc != "Scraped \"desc\"\n0:00 Opening\n2:10 Ending" {
		t.Errorf("desc = %q", desc)
	}

	_, ok, err = extractDescription(strings.NewReader("<html><script>var x = 1;</script></html>"))
	if err != nil || ok {
		t.Errorf("page without description: ok=%v err=%v", ok, err)
	}
}

func TestExtractSource(t *testing.T) {
	tests := []struct {
		url        string
		wantSource string
		wantID     string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "youtube", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/shorts/abcDEF12345", "youtube", "abcDEF12345"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/channel/xyz", "youtube", ""},
		{"https://vimeo.com/123456789", "vimeo", "123456789"},
		{"https://www.twitch.tv/videos/987654321", "twitch", "987654321"},
		{"https://example.com/podcasts/episode-42/", "example.com", "episode-42"},
		{"not a url", "unknown", ""},
	}

	for _, tt := range tests {
		source, id := extractSource(tt.url)
		if source != tt.wantSource || id != tt.wantID {
			t.Errorf("extractSource(%q) = %q, %q; want %q, %q", tt.url, source, id, tt.wantSource, tt.wantID)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	durations := map[float64]string{0: "0:00", 65: "1:05", 90.5: "1:30", 3661: "1:01:01"}
	for in, want := range durations {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}

	dates := map[string]string{"20260222": "2026-02-22", "2026": "2026", "": ""}
	for in, want := range dates {
		if got := formatDate(in); got != want {
			t.Errorf("formatDate(%q) = %q, want %q", in, got, want)
		}
	}

	if got := sanitizeFilename("some file/with:bad chars"); got != "some_file_with_bad_chars" {
		t.Errorf("sanitizeFilename = %q", got)
	}
	if got := firstNonEmpty("", "", "c"); got != "c" {
		t.Errorf("firstNonEmpty = %q", got)
	}
}

func TestSaveTranscript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	c := newTestClient(Config{TranscriptDir: dir}, nil, nil)

	v := &Video{
		ID:            "abc123",
		Source:        "youtube",
		URL:           "https://www.youtube.com/watch?v=abc123",
		Title:         "Test: Video Title",
		Channel:       "Test Channel",
		UploadDate:    "2026-02-22",
		Duration:      330,
		Chapters:      []string{"0:00 Intro", "1:30 Main"},
		Language:      "en",
		AutoGenerated: true,
		Segments: []transcript.Segment{
			{Start: 0, Text: "hello [Music]"},
			{Start: 1.4, Text: "[Applause]"},
			{Start: 92, Text: "main   part"},
		},
		FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	path, err := c.saveTranscript(v)
	if err != nil {
		t.Fatalf("saveTranscript error: %v", err)
	}
	if filepath.Base(path) != "youtube-abc123.md" {
		t.Errorf("filename = %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	body := string(data)
	if !strings.HasSuffix(body, "---\n\n0s - hello\n92s - main part\n") {
		t.Errorf("body = %q", body)
	}

	h, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive error: %v", err)
	}
	if h.Title != v.Title || h.Duration != "5:30" || h.Date != "2026-02-22" {
		t.Errorf("header = %+v", h)
	}
	if !h.AutoGenerated || len(h.Chapters) != 2 || !h.FetchedAt.Equal(v.FetchedAt) {
		t.Errorf("header = %+v", h)
	}
}

func TestFetch_WritesArchive(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	meta := map[string]any{
		"id":          "abc123",
		"title":       "Archived",
		"description": "x",
		"subtitles": map[string]any{
			"en": []map[string]string{{"ext": "vtt", "url": srv.URL + "/subs.vtt"}},
		},
	}
	var calls int
	c := newTestClient(Config{TranscriptDir: dir}, nil, fakeYtDlp(t, meta, &calls))

	if _, err := c.Fetch(context.Background(), "https://youtu.be/abc123"); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "youtube-abc123.md")); err != nil {
		t.Errorf("archive not written: %v", err)
	}
}

func TestReadArchive_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.md")
	if err := os.WriteFile(path, []byte("no frontmatter"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadArchive(path); err == nil {
		t.Error("ReadArchive should fail without frontmatter")
	}
}
