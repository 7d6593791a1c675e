package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nugget/recap/internal/httpkit"
)

// shortDescriptionKey marks the description inside the watch page's
// embedded player response.
const shortDescriptionKey = `"shortDescription":`

// maxPageBytes bounds a downloaded watch page.
const maxPageBytes = 8 << 20

// ScrapeDescription loads a watch page and returns the video description
// embedded in its inline player data. It is the fallback when yt-dlp
// returns no description.
func (c *Client) ScrapeDescription(ctx context.Context, watchURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", watchURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httpkit.CheckResponse("watch page", resp); err != nil {
		return "", err
	}

	desc, ok, err := extractDescription(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no description found in %s", watchURL)
	}
	return desc, nil
}

// extractDescription walks the page's <script> elements and decodes the
// first shortDescription string value it finds.
func extractDescription(r io.Reader) (string, bool, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false, fmt.Errorf("parse html: %w", err)
	}

	var found string
	var ok bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if ok {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					if s, hit := decodeShortDescription(c.Data); hit {
						found, ok = s, true
						return
					}
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found, ok, nil
}

// decodeShortDescription decodes the JSON string literal that follows
// the shortDescription key in script.
func decodeShortDescription(script string) (string, bool) {
	i := strings.Index(script, shortDescriptionKey)
	if i < 0 {
		return "", false
	}
	dec := json.NewDecoder(strings.NewReader(script[i+len(shortDescriptionKey):]))
	var s string
	if err := dec.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}
