// Package websearch implements the agents.WebSearcher facade against the
// Brave Search API, grounded on the reference system's
// internal/mcp/adapters brave_search adapter (its BraveSearchConfig
// defaults and /res/v1/web/search response shape), generalized here to
// return plain result structs instead of an MCP tool-call envelope.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/agents"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
)

// Config configures the Brave Search client.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	SafeSearch  string
	CountryCode string
	Language    string
}

// DefaultConfig mirrors the reference adapter's DefaultBraveSearchConfig
// defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     "https://api.search.brave.com/res/v1",
		Timeout:     30 * time.Second,
		SafeSearch:  "moderate",
		CountryCode: "us",
		Language:    "en",
	}
}

// Client implements agents.WebSearcher against the Brave Search API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type braveWebResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements agents.WebSearcher.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]agents.WebResult, error) {
	endpoint := fmt.Sprintf("%s/web/search?q=%s&count=%d&safesearch=%s&country=%s&search_lang=%s",
		c.cfg.BaseURL, url.QueryEscape(query), limit, c.cfg.SafeSearch, c.cfg.CountryCode, c.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "building brave search request")
	}
	req.Header.Set("X-Subscription-Token", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "brave search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, apperrors.New(apperrors.KindUpstreamTransient, fmt.Sprintf("brave search returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.KindUpstreamTerminal, fmt.Sprintf("brave search returned status %d", resp.StatusCode))
	}

	var parsed braveWebResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTerminal, err, "decoding brave search response")
	}

	out := make([]agents.WebResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		out = append(out, agents.WebResult{URL: r.URL, Title: r.Title, Content: r.Description})
	}
	return out, nil
}
