package media

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nugget/recap/internal/transcript"
)

// ArchiveHeader is the YAML frontmatter of an archived transcript.
type ArchiveHeader struct {
	Title         string    `yaml:"title"`
	Channel       string    `yaml:"channel,omitempty"`
	URL           string    `yaml:"url"`
	Source        string    `yaml:"source"`
	Date          string    `yaml:"date,omitempty"`
	Duration      string    `yaml:"duration,omitempty"`
	Language      string    `yaml:"language"`
	AutoGenerated bool      `yaml:"auto_generated"`
	Chapters      []string  `yaml:"chapters,omitempty"`
	FetchedAt     time.Time `yaml:"fetched_at"`
}

// saveTranscript writes the transcript to TranscriptDir as markdown with
// YAML frontmatter, one "Ns - text" line per segment. Returns the path.
func (c *Client) saveTranscript(v *Video) (string, error) {
	dir := c.cfg.TranscriptDir
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	fm := ArchiveHeader{
		Title:         v.Title,
		Channel:       v.Channel,
		URL:           v.URL,
		Source:        v.Source,
		Date:          v.UploadDate,
		Language:      v.Language,
		AutoGenerated: v.AutoGenerated,
		Chapters:      v.Chapters,
		FetchedAt:     v.FetchedAt,
	}
	if v.Duration > 0 {
		fm.Duration = formatDuration(v.Duration)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	enc.Close()
	buf.WriteString("---\n\n")
	for _, line := range transcript.RenderLines(transcript.Normalize(v.Segments)) {
		buf.WriteString(line)
		buf.WriteString("\n")
	}

	path := filepath.Join(dir, sanitizeFilename(v.Source+"-"+v.ID)+".md")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// ReadArchive parses the frontmatter of an archived transcript file.
func ReadArchive(path string) (ArchiveHeader, error) {
	var fm ArchiveHeader
	data, err := os.ReadFile(path)
	if err != nil {
		return fm, fmt.Errorf("read archive: %w", err)
	}
	rest, ok := bytes.CutPrefix(data, []byte("---\n"))
	if !ok {
		return fm, fmt.Errorf("%s: missing frontmatter", path)
	}
	head, _, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return fm, fmt.Errorf("%s: unterminated frontmatter", path)
	}
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return fm, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}
	return fm, nil
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename replaces characters that are unsafe in filenames.
func sanitizeFilename(s string) string {
	return unsafeFilenameRe.ReplaceAllString(s, "_")
}
