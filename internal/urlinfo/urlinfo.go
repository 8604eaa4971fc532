// Package urlinfo fetches lightweight metadata about a target page.
// Everything here is best-effort: the create path works fine without it.
package urlinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const (
	maxTitleLen = 256
	maxBodySize = 512 << 10
)

type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{client: client}
}

// FetchTitle downloads the target page and extracts its <title>. It
// returns "" when the page is not HTML or carries no title.
func (f *Fetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	const op = "urlinfo.Fetcher.FetchTitle"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: failed to fetch %q: %w", op, url, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/html") {
		return "", nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%s: failed to parse %q: %w", op, url, err)
	}

	title := strings.TrimSpace(findTitle(doc))
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	return title, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return n.FirstChild.Data
		}
		return ""
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}

	return ""
}
