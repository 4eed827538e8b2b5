package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

type Config struct {
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" default:"https://google.serper.dev"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxResults int           `envconfig:"MAX_RESULTS" split_words:"true" default:"5"`
}

// Hit is one organic search result.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Source returns the hostname of the hit, e.g. "linkedin.com".
func (h Hit) Source() string {
	u, err := url.Parse(h.Link)
	if err != nil || u.Host == "" {
		return "web"
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// Client talks to the Serper.dev search REST API.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("serper base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid serper url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("serper api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type searchResponse struct {
	Organic []Hit `json:"organic"`
}

// Search runs one web search. An empty result slice is a valid outcome, not
// an error.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}

	body, err := json.Marshal(searchRequest{Q: query, Num: c.maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("serper http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := parsed.Organic
	if len(hits) > c.maxResults {
		hits = hits[:c.maxResults]
	}
	return hits, nil
}
