package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/multistep"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey string
	// Depth controls Tavily's search_depth parameter (basic or advanced).
	Depth string
	// Endpoint overrides the search URL.
	Endpoint string
	client   *http.Client
}

var _ multistep.SearchProvider = (*Tavily)(nil)

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, &http.Client{Timeout: 10 * time.Second})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewTavilyWithClient(apiKey string, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{APIKey: apiKey, Depth: depth, Endpoint: tavilyEndpoint, client: client}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// Search posts a query to Tavily. Tavily's relevance score is kept on each result.
func (t *Tavily) Search(ctx context.Context, query string) ([]multistep.SearchResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	payload, err := json.Marshal(tavilyRequest{Query: query, SearchDepth: t.Depth, MaxResults: defaultMaxResults})
	if err != nil {
		return nil, err
	}

	resp, err := doWithBackoff(ctx, t.client, "tavily", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "tavily"); err != nil {
		return nil, err
	}

	var response struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]multistep.SearchResult, 0, min(len(response.Results), defaultMaxResults))
	for _, r := range response.Results {
		results = append(results, multistep.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
		if len(results) >= defaultMaxResults {
			break
		}
	}
	return results, nil
}
