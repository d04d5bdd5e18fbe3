// Package tool provides the retrieval collaborator: a Brave Search API
// client implementing step.Retrieval, with optional page-content
// enrichment of the returned documents.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/agents-forge/forge/step"
)

// BraveSearch queries the Brave Search API.
type BraveSearch struct {
	apiKey      string
	baseURL     string
	count       int
	country     string
	lang        string
	client      *http.Client
	fetchPages  bool
	maxPageSize int
}

var _ step.Retrieval = (*BraveSearch)(nil)

// BraveOption configures a BraveSearch.
type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the API endpoint, mainly for tests.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) {
		b.baseURL = baseURL
	}
}

// WithBraveCount sets the number of results to return (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		if count < 1 {
			count = 1
		}
		if count > 20 {
			count = 20
		}
		b.count = count
	}
}

// WithBraveCountry sets the country code for search results (e.g. "US").
func WithBraveCountry(country string) BraveOption {
	return func(b *BraveSearch) {
		b.country = country
	}
}

// WithBraveLang sets the language code for search results (e.g. "en").
func WithBraveLang(lang string) BraveOption {
	return func(b *BraveSearch) {
		b.lang = lang
	}
}

// WithBraveHTTPClient replaces the HTTP client.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *BraveSearch) {
		b.client = c
	}
}

// WithPageContent fetches each result page and replaces its snippet with
// extracted body text, capped at maxBytes per page.
func WithPageContent(maxBytes int) BraveOption {
	return func(b *BraveSearch) {
		b.fetchPages = true
		if maxBytes > 0 {
			b.maxPageSize = maxBytes
		}
	}
}

// NewBraveSearch creates the collaborator. If apiKey is empty, it is read
// from the BRAVE_API_KEY environment variable.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	b := &BraveSearch{
		apiKey:      apiKey,
		baseURL:     "https://api.search.brave.com/res/v1/web/search",
		count:       5,
		country:     "US",
		lang:        "en",
		client:      http.DefaultClient,
		maxPageSize: 4096,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// braveResponse is the subset of the API response we consume.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements step.Retrieval.
func (b *BraveSearch) Search(ctx context.Context, query string) ([]step.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", b.count))
	if b.country != "" {
		params.Set("country", b.country)
	}
	if b.lang != "" {
		params.Set("search_lang", b.lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError("brave.search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, step.NewUpstreamError(step.UpstreamUnavailable, "brave.search",
			fmt.Errorf("api returned status %d", resp.StatusCode))
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, step.NewUpstreamError(step.UpstreamUnavailable, "brave.search",
			fmt.Errorf("failed to decode response: %w", err))
	}

	results := make([]step.SearchResult, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		sr := step.SearchResult{Title: r.Title, URL: r.URL, Content: r.Description}
		if b.fetchPages {
			if text, err := b.fetchPageText(ctx, r.URL); err == nil && text != "" {
				sr.Content = text
			}
		}
		results = append(results, sr)
	}
	return results, nil
}

// classifyHTTPError maps transport failures onto the upstream taxonomy.
func classifyHTTPError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return step.NewUpstreamError(step.UpstreamTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return step.NewUpstreamError(step.UpstreamUnavailable, op, err)
}
