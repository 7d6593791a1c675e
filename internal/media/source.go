package media

import (
	"fmt"
	"net/url"
	"strings"
)

// extractSource parses a URL to determine the source platform and video ID.
func extractSource(rawURL string) (source, id string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown", ""
	}

	host := strings.ToLower(u.Hostname())

	switch {
	case host == "youtu.be":
		source = "youtube"
		id = strings.TrimPrefix(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		source = "youtube"
		id = u.Query().Get("v")
		if id == "" {
			// /shorts/<id>, /live/<id>, /embed/<id>
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "live" || parts[0] == "embed") {
				id = parts[1]
			}
		}
	case strings.HasSuffix(host, "twitch.tv"):
		source = "twitch"
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = parts[len(parts)-1]
	case strings.Contains(host, "vimeo.com"):
		source = "vimeo"
		id = strings.TrimPrefix(u.Path, "/")
	default:
		source = strings.TrimPrefix(host, "www.")
		parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		if len(parts) > 0 {
			id = parts[len(parts)-1]
		}
	}

	return source, id
}

// formatDuration converts seconds to "H:MM:SS" or "M:SS" format.
func formatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatDate converts yt-dlp's "YYYYMMDD" date format to "YYYY-MM-DD".
func formatDate(yyyymmdd string) string {
	if len(yyyymmdd) != 8 {
		return yyyymmdd
	}
	return yyyymmdd[:4] + "-" + yyyymmdd[4:6] + "-" + yyyymmdd[6:8]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
