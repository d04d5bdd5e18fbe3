package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fetchPageText downloads the page at pageURL and extracts visible body
// text, truncated to maxPageSize bytes. Errors are returned so the caller
// can fall back to the search snippet.
func (b *BraveSearch) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "forge/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	// Cap the read so a huge page cannot blow up memory.
	limited := io.LimitReader(resp.Body, int64(b.maxPageSize)*8)
	doc, err := goquery.NewDocumentFromReader(limited)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, header, footer, noscript").Remove()

	var sb strings.Builder
	doc.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	})

	text := sb.String()
	if len(text) > b.maxPageSize {
		text = text[:b.maxPageSize]
	}
	return text, nil
}
